package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsaabbasian/unispot-sync/internal/models"
)

func event(id uint, title string) models.Event {
	return models.Event{
		ID:       id,
		Title:    title,
		Category: "food",
		EndTime:  time.Now().Add(2 * time.Hour),
	}
}

func TestApplyNewPrepends(t *testing.T) {
	snap := Replace([]models.Event{event(1, "free pizza")})

	next, change := Apply(snap, models.NewEvent{Event: event(2, "pop-up market")})

	require.Len(t, next, 2)
	assert.Equal(t, uint(2), next[0].ID, "new events go to the front")
	assert.Equal(t, uint(1), next[1].ID)

	require.NotNil(t, change)
	assert.Equal(t, models.ChangeCreated, change.Kind)
	assert.Equal(t, "pop-up market", change.Title)
}

func TestApplyNewDuplicateIsNoOp(t *testing.T) {
	snap := Replace([]models.Event{event(1, "free pizza")})

	next, change := Apply(snap, models.NewEvent{Event: event(1, "free pizza")})

	assert.Len(t, next, 1)
	assert.Nil(t, change)
}

func TestApplyVerifyNeverRegresses(t *testing.T) {
	snap := Replace([]models.Event{{ID: 1, Title: "free pizza", VerifiedCount: 0}})

	// Deliveries arrive out of order: 5, then a stale 3, then 7.
	snap, change := Apply(snap, models.VerifyEvent{ID: 1, VerifiedCount: 5, UserName: "amir"})
	require.NotNil(t, change)
	assert.Equal(t, 5, snap[0].VerifiedCount)

	snap, change = Apply(snap, models.VerifyEvent{ID: 1, VerifiedCount: 3, UserName: "dana"})
	assert.Nil(t, change, "stale counts produce no notification")
	assert.Equal(t, 5, snap[0].VerifiedCount, "count must not move backwards")

	snap, change = Apply(snap, models.VerifyEvent{ID: 1, VerifiedCount: 7, UserName: "lee"})
	require.NotNil(t, change)
	assert.Equal(t, models.ChangeVerified, change.Kind)
	assert.Equal(t, "lee", change.UserName)
	assert.Equal(t, 7, snap[0].VerifiedCount)
	assert.Equal(t, []string{"amir", "dana", "lee"}, snap[0].Verifiers)
}

func TestApplyVerifyStaleDoesNotDuplicateLastVerifier(t *testing.T) {
	snap := Replace([]models.Event{{ID: 1, VerifiedCount: 4, Verifiers: []string{"amir"}}})

	next, change := Apply(snap, models.VerifyEvent{ID: 1, VerifiedCount: 4, UserName: "amir"})

	assert.Nil(t, change)
	assert.Equal(t, []string{"amir"}, next[0].Verifiers)
}

func TestApplyVerifyEqualCountIsStale(t *testing.T) {
	snap := Replace([]models.Event{{ID: 1, VerifiedCount: 4}})

	next, change := Apply(snap, models.VerifyEvent{ID: 1, VerifiedCount: 4, UserName: ""})

	assert.Nil(t, change)
	assert.Equal(t, 4, next[0].VerifiedCount)
}

func TestApplyVerifyUnknownEventIsNoOp(t *testing.T) {
	snap := Replace([]models.Event{event(1, "free pizza")})

	next, change := Apply(snap, models.VerifyEvent{ID: 99, VerifiedCount: 1})

	assert.Nil(t, change)
	assert.Equal(t, snap, next)
}

func TestApplyUpdatePatchesOnlyPresentFields(t *testing.T) {
	snap := Replace([]models.Event{{
		ID:            1,
		Title:         "free pizza",
		Description:   "outside the library",
		Category:      "food",
		VerifiedCount: 3,
	}})

	title := "free pizza and pop"
	approved := true
	next, change := Apply(snap, models.UpdateEvent{ID: 1, Title: &title, IsApproved: &approved})

	require.NotNil(t, change)
	assert.Equal(t, models.ChangeUpdated, change.Kind)
	assert.Equal(t, "free pizza and pop", next[0].Title)
	assert.True(t, next[0].IsApproved)
	assert.Equal(t, "outside the library", next[0].Description, "absent fields stay untouched")
	assert.Equal(t, "food", next[0].Category)
	assert.Equal(t, 3, next[0].VerifiedCount)
}

func TestApplyDeleteCapturesRemovedEvent(t *testing.T) {
	snap := Replace([]models.Event{event(1, "free pizza"), event(2, "pop-up market")})

	next, change := Apply(snap, models.DeleteEvent{ID: 1})

	require.Len(t, next, 1)
	assert.Equal(t, uint(2), next[0].ID)

	require.NotNil(t, change)
	assert.Equal(t, models.ChangeDeleted, change.Kind)
	assert.Equal(t, "free pizza", change.Title, "deletion names what vanished")
}

func TestApplyDeleteUnknownIsNoOp(t *testing.T) {
	snap := Replace([]models.Event{event(1, "free pizza")})

	next, change := Apply(snap, models.DeleteEvent{ID: 42})

	assert.Nil(t, change)
	assert.Len(t, next, 1)
}

func TestApplyUserCountLeavesSnapshotAlone(t *testing.T) {
	snap := Replace([]models.Event{event(1, "free pizza")})

	next, change := Apply(snap, models.UserCount{Count: 12})

	assert.Nil(t, change)
	assert.Equal(t, snap, next)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	original := Replace([]models.Event{{ID: 1, VerifiedCount: 1, Verifiers: []string{"amir"}}})

	_, _ = Apply(original, models.VerifyEvent{ID: 1, VerifiedCount: 2, UserName: "dana"})

	assert.Equal(t, 1, original[0].VerifiedCount)
	assert.Equal(t, []string{"amir"}, original[0].Verifiers)
}

func TestReplaceResurrectsDeletedEvents(t *testing.T) {
	snap := Replace([]models.Event{event(1, "free pizza")})
	snap, _ = Apply(snap, models.DeleteEvent{ID: 1})
	require.Empty(t, snap)

	// The next authoritative fetch still contains the event; full replace
	// wins over local state.
	snap = Replace([]models.Event{event(1, "free pizza")})
	assert.Len(t, snap, 1)
}

func TestPruneExpired(t *testing.T) {
	now := time.Now()
	snap := Replace([]models.Event{
		{ID: 1, Title: "over", EndTime: now.Add(-time.Hour)},
		{ID: 2, Title: "running", EndTime: now.Add(time.Hour)},
		{ID: 3, Title: "open ended"},
	})

	next, removed := PruneExpired(snap, now)

	assert.Equal(t, 1, removed)
	require.Len(t, next, 2)
	assert.Equal(t, uint(2), next[0].ID)
	assert.Equal(t, uint(3), next[1].ID, "zero end time never expires")
}

func TestFullScenario(t *testing.T) {
	snap := Replace(nil)

	snap, _ = Apply(snap, models.NewEvent{Event: event(1, "free pizza")})
	snap, _ = Apply(snap, models.NewEvent{Event: event(2, "study group")})
	snap, _ = Apply(snap, models.VerifyEvent{ID: 1, VerifiedCount: 1, UserName: "amir"})
	snap, _ = Apply(snap, models.VerifyEvent{ID: 1, VerifiedCount: 1, UserName: "amir"}) // redelivery
	snap, _ = Apply(snap, models.DeleteEvent{ID: 2})

	require.Len(t, snap, 1)
	assert.Equal(t, uint(1), snap[0].ID)
	assert.Equal(t, 1, snap[0].VerifiedCount)
	assert.Equal(t, []string{"amir"}, snap[0].Verifiers)
}
