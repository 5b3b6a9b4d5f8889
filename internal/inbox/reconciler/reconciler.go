// Package reconciler keeps the client-side notification list, unread count
// and selection for one authenticated session.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/hoken-app/insurance-portal/internal/platform/logger"
	"github.com/hoken-app/insurance-portal/internal/platform/metrics"
	"github.com/hoken-app/insurance-portal/pkg/sdk"
)

// Gateway is the notification API. *sdk.NotificationService satisfies it.
type Gateway interface {
	FetchAll(ctx context.Context, userID string) ([]sdk.Notification, error)
	FetchUnread(ctx context.Context, userID string) ([]sdk.Notification, error)
	FetchUnreadCount(ctx context.Context, userID string) (int, error)
	FetchReadIDs(ctx context.Context, userID string) ([]string, error)
	PostReadIDs(ctx context.Context, userID string, ids []string) (*sdk.ReadResult, error)
}

// State is what the presentation layer renders. UnreadCount comes from the
// count endpoint and may disagree with the unread entries in List until the
// next full load.
type State struct {
	UserID        string
	List          []sdk.Notification
	UnreadCount   int
	Selected      *sdk.Notification
	IsLoading     bool
	IsInitialized bool
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithLogger sets the diagnostic logger for swallowed failures
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithMetrics counts swallowed failures and post outcomes
func WithMetrics(m *metrics.InboxMetrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithPostTimeout bounds each detached mark-read post
func WithPostTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.postTimeout = d }
}

// WithClock overrides time.Now for updated_at stamps
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// Reconciler merges gateway results into one authoritative State. Only the
// reconciler mutates the state; the mutex is never held across gateway calls.
type Reconciler struct {
	gateway     Gateway
	logger      logger.Logger
	metrics     *metrics.InboxMetrics
	postTimeout time.Duration
	now         func() time.Time

	// posts run under sessionCtx so logout cancels them
	sessionCtx context.Context

	mu         sync.Mutex
	state      State
	localRead  map[string]struct{}
	generation uint64
	pending    map[*PostTask]struct{}
}

// New creates a reconciler whose detached posts run under sessionCtx
func New(sessionCtx context.Context, gateway Gateway, opts ...Option) *Reconciler {
	r := &Reconciler{
		gateway:     gateway,
		postTimeout: 5 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
		sessionCtx:  sessionCtx,
		localRead:   make(map[string]struct{}),
		pending:     make(map[*PostTask]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.NewNop()
	}
	return r
}

// Load fetches the full list, then the read ids, then the unread count, and
// commits them together. Failures collapse to empty results. A Load that is
// superseded by a later one before it finishes is discarded.
func (r *Reconciler) Load(ctx context.Context, userID string) {
	r.load(ctx, userID, sdk.OpFetchAll, r.gateway.FetchAll)
}

// LoadUnread is Load for the summary widget, listing only unread notifications
func (r *Reconciler) LoadUnread(ctx context.Context, userID string) {
	r.load(ctx, userID, sdk.OpFetchUnread, r.gateway.FetchUnread)
}

type listFetcher func(ctx context.Context, userID string) ([]sdk.Notification, error)

func (r *Reconciler) load(ctx context.Context, userID, op string, fetch listFetcher) {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.state.IsLoading = true
	r.mu.Unlock()

	list, err := fetch(ctx, userID)
	if err != nil {
		r.gatewayFailed(ctx, op, err)
		list = nil
	}

	readIDs, err := r.gateway.FetchReadIDs(ctx, userID)
	if err != nil {
		r.gatewayFailed(ctx, sdk.OpFetchReadIDs, err)
		readIDs = nil
	}

	count, err := r.gateway.FetchUnreadCount(ctx, userID)
	if err != nil {
		r.gatewayFailed(ctx, sdk.OpFetchUnreadCount, err)
		count = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		r.logger.Debug("Discarding superseded notification load", "user_id", userID, "generation", gen)
		return
	}

	// A cancelled load keeps the previous state rather than committing empty results
	if ctx.Err() != nil {
		r.state.IsLoading = false
		return
	}

	r.state.UserID = userID
	r.state.List = merge(list, readIDs, r.localRead)
	r.state.UnreadCount = count
	r.state.IsLoading = false
	r.state.IsInitialized = true
}

// RefreshUnreadCount replaces UnreadCount with the server's value, or 0 on failure
func (r *Reconciler) RefreshUnreadCount(ctx context.Context, userID string) {
	count, err := r.gateway.FetchUnreadCount(ctx, userID)
	if err != nil {
		r.gatewayFailed(ctx, sdk.OpFetchUnreadCount, err)
		count = 0
	}
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	r.state.UnreadCount = count
	r.mu.Unlock()
}

// Select opens messageID. An unread entry is marked read optimistically, the
// count drops by one (never below zero) and a detached post confirms it.
// The returned task is nil when nothing needed posting; found is false
// when messageID is not in the list.
func (r *Reconciler) Select(messageID string) (task *PostTask, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i := range r.state.List {
		if r.state.List[i].MessageID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	n := &r.state.List[idx]
	if !n.IsRead {
		n.IsRead = true
		n.UpdatedAt = r.now()
		if r.state.UnreadCount > 0 {
			r.state.UnreadCount--
		}
		r.localRead[messageID] = struct{}{}
		task = r.schedulePost(r.state.UserID, []string{messageID})
	}

	selected := *n
	r.state.Selected = &selected

	return task, true
}

// Deselect clears the selection
func (r *Reconciler) Deselect() {
	r.mu.Lock()
	r.state.Selected = nil
	r.mu.Unlock()
}

// Clear resets the state to its initial value and forgets local reads.
// Posts already scheduled keep running.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	r.generation++
	r.state = State{}
	r.localRead = make(map[string]struct{})
	r.mu.Unlock()
}

// Snapshot returns a copy of the state that the caller may keep
func (r *Reconciler) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.state
	if r.state.List != nil {
		s.List = make([]sdk.Notification, len(r.state.List))
		copy(s.List, r.state.List)
	}
	if r.state.Selected != nil {
		selected := *r.state.Selected
		s.Selected = &selected
	}
	return s
}

// Wait blocks until every post scheduled so far has finished or ctx is done
func (r *Reconciler) Wait(ctx context.Context) error {
	r.mu.Lock()
	tasks := make([]*PostTask, 0, len(r.pending))
	for t := range r.pending {
		tasks = append(tasks, t)
	}
	r.mu.Unlock()

	for _, t := range tasks {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// schedulePost must be called with r.mu held
func (r *Reconciler) schedulePost(userID string, ids []string) *PostTask {
	task := newPostTask(ids)
	r.pending[task] = struct{}{}

	go func() {
		ctx, cancel := context.WithTimeout(r.sessionCtx, r.postTimeout)
		defer cancel()

		_, err := r.gateway.PostReadIDs(ctx, userID, ids)

		result := "ok"
		if err != nil {
			// The optimistic read stays in place; the next confirmed post or load fixes the server side
			result = "error"
			r.logger.WithContext(ctx).Warn("Mark-as-read post failed",
				"user_id", userID, "message_ids", ids, "kind", sdk.Kind(err), "error", err)
		}
		if r.metrics != nil {
			r.metrics.ReadPosts.WithLabelValues(result).Inc()
		}

		r.mu.Lock()
		delete(r.pending, task)
		r.mu.Unlock()

		task.finish(err)
	}()

	return task
}

func (r *Reconciler) gatewayFailed(ctx context.Context, op string, err error) {
	r.logger.WithContext(ctx).Warn("Notification gateway call failed",
		"operation", op, "kind", sdk.Kind(err), "error", err)
	if r.metrics != nil {
		r.metrics.GatewayFailures.WithLabelValues(op).Inc()
	}
}
