// Package sync composes the connection manager, event store, vote ledger and
// geofence gate into the single object consumers hold: current snapshot,
// connection status, and the two mutating operations.
package sync

import (
	"context"
	"fmt"
	"strings"
	stdsync "sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/parsaabbasian/unispot-sync/internal/api"
	"github.com/parsaabbasian/unispot-sync/internal/geofence"
	"github.com/parsaabbasian/unispot-sync/internal/identity"
	"github.com/parsaabbasian/unispot-sync/internal/ledger"
	"github.com/parsaabbasian/unispot-sync/internal/locate"
	"github.com/parsaabbasian/unispot-sync/internal/models"
	"github.com/parsaabbasian/unispot-sync/internal/store"
	"github.com/parsaabbasian/unispot-sync/internal/stream"
	"github.com/parsaabbasian/unispot-sync/internal/telemetry"
	"github.com/parsaabbasian/unispot-sync/pkg/config"
	appErrors "github.com/parsaabbasian/unispot-sync/pkg/errors"
)

// How many recent changes the activity feed retains.
const activityLimit = 10

// APIClient is the REST surface the facade consumes.
type APIClient interface {
	FetchEvents(ctx context.Context, lat, lng float64, radiusM int) ([]models.Event, error)
	CreateEvent(ctx context.Context, submit api.SubmitRequest) (*models.Event, error)
	VerifyEvent(ctx context.Context, id uint, userName, userEmail string) error
	StreamURL() string
}

// ChannelManager is the push-channel lifecycle surface.
type ChannelManager interface {
	Start(ctx context.Context)
	Stop()
	Resume()
	Status() models.ConnStatus
}

// ChannelFactory builds a channel manager from wiring config, letting tests
// substitute a fake without a real network.
type ChannelFactory func(cfg stream.Config) ChannelManager

// Options wires the facade's collaborators.
type Options struct {
	API      APIClient
	Ledger   ledger.Ledger
	Fence    *geofence.Validator
	Locator  locate.Provider
	Identity identity.Identity

	Boundary     config.BoundaryConfig
	FetchRadiusM int
	Backoff      config.BackoffConfig

	Channel  ChannelFactory
	OnChange func(models.Change)

	Metrics *telemetry.Metrics
	Logger  *zap.Logger
}

// Sync is the facade. All snapshot mutation happens on the channel callback
// path under one mutex, preserving run-to-completion ordering; readers get
// copies, never references into the snapshot.
type Sync struct {
	apiClient    APIClient
	votes        ledger.Ledger
	fence        *geofence.Validator
	locator      locate.Provider
	id           identity.Identity
	boundary     config.BoundaryConfig
	fetchRadiusM int
	validate     *validator.Validate
	metrics      *telemetry.Metrics
	logger       *zap.Logger
	onChange     func(models.Change)

	manager ChannelManager

	mu       stdsync.RWMutex
	snapshot store.Snapshot
	viewers  int
	activity []models.Change
	status   models.ConnStatus
}

// New builds a facade. API, Ledger, Fence and Locator are required.
func New(opts Options) *Sync {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FetchRadiusM <= 0 {
		opts.FetchRadiusM = 5000
	}
	if opts.Channel == nil {
		opts.Channel = func(cfg stream.Config) ChannelManager {
			return stream.NewManager(cfg)
		}
	}

	s := &Sync{
		apiClient:    opts.API,
		votes:        opts.Ledger,
		fence:        opts.Fence,
		locator:      opts.Locator,
		id:           opts.Identity,
		boundary:     opts.Boundary,
		fetchRadiusM: opts.FetchRadiusM,
		validate:     validator.New(),
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		onChange:     opts.OnChange,
		status:       models.ConnStatus{State: models.StateDisconnected},
	}

	s.manager = opts.Channel(stream.Config{
		URL:       opts.API.StreamURL(),
		BaseDelay: opts.Backoff.BaseDelay,
		MaxDelay:  opts.Backoff.MaxDelay,
		OnMessage: s.handleMessage,
		OnState:   s.handleState,
		Metrics:   opts.Metrics,
		Logger:    opts.Logger,
	})

	return s
}

// Start performs the initial full fetch and opens the push channel. A failed
// fetch degrades to an empty snapshot; the stream will fill it in.
func (s *Sync) Start(ctx context.Context) {
	events, err := s.apiClient.FetchEvents(ctx, s.boundary.Lat, s.boundary.Lng, s.fetchRadiusM)
	if err != nil {
		s.logger.Warn("initial fetch failed, starting with empty snapshot", zap.Error(err))
		events = nil
	}
	s.ReplaceSnapshot(events)

	s.manager.Start(ctx)
}

// Stop tears down the push channel. The ledger stays open; its owner closes it.
func (s *Sync) Stop() {
	s.manager.Stop()
}

// Resume signals that the host application returned to the foreground.
func (s *Sync) Resume() {
	s.manager.Resume()
}

// ReplaceSnapshot installs an authoritative full fetch: a full replace, not a
// merge, so it may resurrect an event deleted from the previous snapshot.
func (s *Sync) ReplaceSnapshot(events []models.Event) {
	s.mu.Lock()
	s.snapshot = store.Replace(events)
	n := len(s.snapshot)
	s.mu.Unlock()
	s.metrics.SetSnapshotSize(n)
}

// Refresh re-runs the full fetch on demand.
func (s *Sync) Refresh(ctx context.Context) error {
	events, err := s.apiClient.FetchEvents(ctx, s.boundary.Lat, s.boundary.Lng, s.fetchRadiusM)
	if err != nil {
		return err
	}
	s.ReplaceSnapshot(events)
	return nil
}

// Events returns a copy of the current snapshot, most recent first.
func (s *Sync) Events() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// Filtered narrows the snapshot by category ("all" disables the filter) and
// a free-text query over title, description, category and creator name.
func (s *Sync) Filtered(category, query string) []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)
	out := make([]models.Event, 0, len(s.snapshot))
	for _, ev := range s.snapshot {
		if category != "" && category != "all" && ev.Category != category {
			continue
		}
		if query != "" && !matchesQuery(ev, query) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Find locates an event by id, for deep links into the feed.
func (s *Sync) Find(id uint) (models.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ev := range s.snapshot {
		if ev.ID == id {
			return ev, true
		}
	}
	return models.Event{}, false
}

// Status reports the push-channel state for UI display.
func (s *Sync) Status() models.ConnStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Viewers reports the server-pushed active viewer count.
func (s *Sync) Viewers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewers
}

// Activity returns the recent change feed, newest first.
func (s *Sync) Activity() []models.Change {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Change, len(s.activity))
	copy(out, s.activity)
	return out
}

// HasVoted reports whether the local identity already endorsed the event.
func (s *Sync) HasVoted(ctx context.Context, id uint) (bool, error) {
	return s.votes.HasVoted(ctx, id)
}

// SubmitEvent validates the submission, gates it on the geofence using both
// the pin and the observed position, and posts it. The authoritative echo
// arrives asynchronously via the push channel; nothing is inserted locally.
func (s *Sync) SubmitEvent(ctx context.Context, submit api.SubmitRequest) error {
	if submit.CreatorName == "" {
		submit.CreatorName = s.id.Name
	}
	if submit.CreatorEmail == "" {
		submit.CreatorEmail = s.id.Email
	}

	if err := s.validate.Struct(submit); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission")
	}

	if r := s.fence.Check(submit.Latitude, submit.Longitude); !r.Inside {
		return appErrors.Clone(appErrors.ErrOutOfBounds,
			fmt.Sprintf("pin is outside the campus boundary (%.2f km from campus)", r.DistanceKm))
	}

	pos, err := s.locator.Current(ctx)
	if err != nil {
		return err
	}
	if r := s.fence.Check(pos.Lat, pos.Lng); !r.Inside {
		return appErrors.Clone(appErrors.ErrOutOfBounds,
			fmt.Sprintf("you are %.2f km from campus; submissions are limited to the campus area", r.DistanceKm))
	}

	if _, err := s.apiClient.CreateEvent(ctx, submit); err != nil {
		return err
	}

	s.logger.Info("event submitted", zap.String("title", submit.Title), zap.String("category", submit.Category))
	return nil
}

// VerifyEvent endorses an event once per identity. The ledger, not the UI,
// suppresses duplicates; the count bump arrives via the push channel.
func (s *Sync) VerifyEvent(ctx context.Context, id uint) error {
	voted, err := s.votes.HasVoted(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "vote ledger lookup failed")
	}
	if voted {
		return appErrors.ErrAlreadyVerified
	}

	if err := s.apiClient.VerifyEvent(ctx, id, s.id.Name, s.id.Email); err != nil {
		return err
	}

	if err := s.votes.RecordVote(ctx, id); err != nil {
		// The server accepted the vote; a ledger write failure must not undo
		// that. Log it and accept the risk of one duplicate attempt later.
		s.logger.Error("failed to record vote in ledger", zap.Uint("event_id", id), zap.Error(err))
	}
	s.metrics.ObserveVote()

	s.logger.Info("event verified", zap.Uint("event_id", id), zap.String("user", s.id.Name))
	return nil
}

// PruneExpired drops events whose validity window has closed, mirroring the
// server's time filter for long-lived clients. Returns how many were removed.
func (s *Sync) PruneExpired(now time.Time) int {
	s.mu.Lock()
	next, removed := store.PruneExpired(s.snapshot, now)
	s.snapshot = next
	n := len(next)
	s.mu.Unlock()

	s.metrics.SetSnapshotSize(n)
	if removed > 0 {
		s.logger.Info("pruned expired events", zap.Int("removed", removed))
	}
	return removed
}

// handleMessage is the single mutation path for stream input. The channel
// manager delivers messages sequentially, and the mutex extends that
// run-to-completion guarantee to API readers.
func (s *Sync) handleMessage(msg models.Message) {
	if count, ok := msg.(models.UserCount); ok {
		s.mu.Lock()
		s.viewers = count.Count
		s.mu.Unlock()
		s.metrics.SetActiveViewers(count.Count)
		return
	}

	s.mu.Lock()
	next, change := store.Apply(s.snapshot, msg)
	s.snapshot = next
	n := len(next)
	if change != nil {
		s.activity = prependChange(s.activity, *change)
	}
	s.mu.Unlock()

	s.metrics.SetSnapshotSize(n)
	if change != nil && s.onChange != nil {
		s.onChange(*change)
	}
}

func (s *Sync) handleState(st models.ConnStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func matchesQuery(ev models.Event, query string) bool {
	return strings.Contains(strings.ToLower(ev.Title), query) ||
		strings.Contains(strings.ToLower(ev.Description), query) ||
		strings.Contains(strings.ToLower(ev.Category), query) ||
		(ev.CreatorName != "" && strings.Contains(strings.ToLower(ev.CreatorName), query))
}

func prependChange(activity []models.Change, change models.Change) []models.Change {
	next := make([]models.Change, 0, activityLimit)
	next = append(next, change)
	for _, c := range activity {
		if len(next) == activityLimit {
			break
		}
		next = append(next, c)
	}
	return next
}
