// Package store holds the client-local authoritative snapshot of board events
// and the reconciliation rules that merge push-channel messages into it.
//
// Apply is a pure function of (snapshot, message). Every rule is idempotent or
// a safe no-op on stale and duplicate input, so the store tolerates
// at-least-once delivery and reordering without a global sequence number.
package store

import (
	"time"

	"github.com/parsaabbasian/unispot-sync/internal/models"
)

// Snapshot is the ordered event collection, most recent first. It is treated
// as immutable: Apply returns a fresh slice and never mutates its input.
type Snapshot []models.Event

// Replace builds a snapshot from an authoritative full fetch. The fetch is a
// full replace, not a merge: events absent from it are gone, events present
// come back even if previously deleted.
func Replace(events []models.Event) Snapshot {
	snap := make(Snapshot, len(events))
	copy(snap, events)
	return snap
}

// Apply merges one inbound message into the snapshot, returning the new
// snapshot and a change descriptor for UI notification. A nil descriptor
// means nothing noteworthy happened (stale, duplicate, unknown id, or
// ambient metadata).
func Apply(snap Snapshot, msg models.Message) (Snapshot, *models.Change) {
	switch m := msg.(type) {
	case models.NewEvent:
		return applyNew(snap, m)
	case models.VerifyEvent:
		return applyVerify(snap, m)
	case models.UpdateEvent:
		return applyUpdate(snap, m)
	case models.DeleteEvent:
		return applyDelete(snap, m)
	case models.UserCount:
		// Ambient connection metadata; handled by the facade, not the store.
		return snap, nil
	default:
		return snap, nil
	}
}

func applyNew(snap Snapshot, m models.NewEvent) (Snapshot, *models.Change) {
	// Duplicate delivery, or the echo of a submission the full fetch already
	// reflected.
	if indexOf(snap, m.Event.ID) >= 0 {
		return snap, nil
	}

	next := make(Snapshot, 0, len(snap)+1)
	next = append(next, m.Event)
	next = append(next, snap...)

	return next, &models.Change{
		Kind:     models.ChangeCreated,
		EventID:  m.Event.ID,
		Title:    m.Event.Title,
		Category: m.Event.Category,
		At:       time.Now().UTC(),
	}
}

func applyVerify(snap Snapshot, m models.VerifyEvent) (Snapshot, *models.Change) {
	i := indexOf(snap, m.ID)
	if i < 0 {
		// Event not yet known here. Acceptable lost update.
		return snap, nil
	}

	ev := snap[i]

	// Strictly-greater guard: an out-of-order or redelivered count must never
	// regress the counter.
	if m.VerifiedCount <= ev.VerifiedCount {
		if m.UserName == "" || lastVerifier(ev) == m.UserName {
			return snap, nil
		}
		next := clone(snap)
		next[i].Verifiers = appendVerifier(ev.Verifiers, m.UserName)
		return next, nil
	}

	next := clone(snap)
	next[i].VerifiedCount = m.VerifiedCount
	if m.UserName != "" {
		next[i].Verifiers = appendVerifier(ev.Verifiers, m.UserName)
	}

	return next, &models.Change{
		Kind:     models.ChangeVerified,
		EventID:  ev.ID,
		Title:    ev.Title,
		Category: ev.Category,
		UserName: m.UserName,
		At:       time.Now().UTC(),
	}
}

func applyUpdate(snap Snapshot, m models.UpdateEvent) (Snapshot, *models.Change) {
	i := indexOf(snap, m.ID)
	if i < 0 {
		return snap, nil
	}

	next := clone(snap)
	ev := &next[i]
	if m.Title != nil {
		ev.Title = *m.Title
	}
	if m.Description != nil {
		ev.Description = *m.Description
	}
	if m.Category != nil {
		ev.Category = *m.Category
	}
	if m.VerifiedCount != nil {
		ev.VerifiedCount = *m.VerifiedCount
	}
	if m.StartTime != nil {
		ev.StartTime = *m.StartTime
	}
	if m.EndTime != nil {
		ev.EndTime = *m.EndTime
	}
	if m.IsApproved != nil {
		ev.IsApproved = *m.IsApproved
	}

	return next, &models.Change{
		Kind:     models.ChangeUpdated,
		EventID:  ev.ID,
		Title:    ev.Title,
		Category: ev.Category,
		At:       time.Now().UTC(),
	}
}

func applyDelete(snap Snapshot, m models.DeleteEvent) (Snapshot, *models.Change) {
	i := indexOf(snap, m.ID)
	if i < 0 {
		return snap, nil
	}

	// Capture before removal so the notification can name what vanished.
	removed := snap[i]

	next := make(Snapshot, 0, len(snap)-1)
	next = append(next, snap[:i]...)
	next = append(next, snap[i+1:]...)

	return next, &models.Change{
		Kind:     models.ChangeDeleted,
		EventID:  removed.ID,
		Title:    removed.Title,
		Category: removed.Category,
		At:       time.Now().UTC(),
	}
}

// PruneExpired drops events whose validity window has closed. Returns the
// surviving snapshot and the number of events removed.
func PruneExpired(snap Snapshot, now time.Time) (Snapshot, int) {
	next := make(Snapshot, 0, len(snap))
	for _, ev := range snap {
		if !ev.Expired(now) {
			next = append(next, ev)
		}
	}
	return next, len(snap) - len(next)
}

func indexOf(snap Snapshot, id uint) int {
	for i := range snap {
		if snap[i].ID == id {
			return i
		}
	}
	return -1
}

func lastVerifier(ev models.Event) string {
	if len(ev.Verifiers) == 0 {
		return ""
	}
	return ev.Verifiers[len(ev.Verifiers)-1]
}

// appendVerifier copies before appending so the prior snapshot stays intact.
func appendVerifier(verifiers []string, name string) []string {
	next := make([]string, len(verifiers), len(verifiers)+1)
	copy(next, verifiers)
	return append(next, name)
}

func clone(snap Snapshot) Snapshot {
	next := make(Snapshot, len(snap))
	copy(next, snap)
	return next
}
