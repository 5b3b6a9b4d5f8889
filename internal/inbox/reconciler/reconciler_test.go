package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hoken-app/insurance-portal/internal/platform/metrics"
	"github.com/hoken-app/insurance-portal/pkg/sdk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNetwork = &sdk.TransportError{Op: "test", Err: errors.New("connection refused")}

type fakeGateway struct {
	mu sync.Mutex

	fetchAll  func(ctx context.Context, userID string) ([]sdk.Notification, error)
	unread    []sdk.Notification
	readIDs   []string
	readErr   error
	count     int
	countErr  error
	postErr   error
	posts     [][]string
	postDelay chan struct{}
}

func (g *fakeGateway) FetchAll(ctx context.Context, userID string) ([]sdk.Notification, error) {
	g.mu.Lock()
	fn := g.fetchAll
	g.mu.Unlock()
	if fn == nil {
		return []sdk.Notification{}, nil
	}
	return fn(ctx, userID)
}

func (g *fakeGateway) FetchUnread(ctx context.Context, userID string) ([]sdk.Notification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unread, nil
}

func (g *fakeGateway) FetchUnreadCount(ctx context.Context, userID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count, g.countErr
}

func (g *fakeGateway) FetchReadIDs(ctx context.Context, userID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readIDs, g.readErr
}

func (g *fakeGateway) PostReadIDs(ctx context.Context, userID string, ids []string) (*sdk.ReadResult, error) {
	if g.postDelay != nil {
		select {
		case <-g.postDelay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.posts = append(g.posts, ids)
	if g.postErr != nil {
		return nil, g.postErr
	}
	return &sdk.ReadResult{UserID: userID, UpdatedMessageIDs: ids, NewlyMarkedRead: ids}, nil
}

func (g *fakeGateway) setList(list ...sdk.Notification) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchAll = func(context.Context, string) ([]sdk.Notification, error) {
		out := make([]sdk.Notification, len(list))
		copy(out, list)
		return out, nil
	}
}

func (g *fakeGateway) recordedPosts() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]string(nil), g.posts...)
}

func note(id string, read bool) sdk.Notification {
	return sdk.Notification{
		MessageID: id,
		UserID:    "u1",
		Type:      sdk.TypeInfo,
		Title:     sdk.MultilingualText{Ja: "件名 " + id, En: "Subject " + id},
		IsRead:    read,
	}
}

func ids(list []sdk.Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.MessageID)
	}
	return out
}

func find(t *testing.T, s State, id string) sdk.Notification {
	t.Helper()
	for _, n := range s.List {
		if n.MessageID == id {
			return n
		}
	}
	require.Failf(t, "notification not in list", "id %s", id)
	return sdk.Notification{}
}

func newReconciler(t *testing.T, g *fakeGateway, opts ...Option) *Reconciler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, g, opts...)
}

func waitTask(t *testing.T, task *PostTask) {
	t.Helper()
	require.NotNil(t, task)
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("post did not finish")
	}
}

func TestLoadAppliesReadIDsOverList(t *testing.T) {
	g := &fakeGateway{readIDs: []string{"b", "zz"}, count: 1}
	g.setList(note("a", false), note("b", false), note("c", true))
	r := newReconciler(t, g)

	r.Load(context.Background(), "u1")

	s := r.Snapshot()
	assert.False(t, find(t, s, "a").IsRead)
	assert.True(t, find(t, s, "b").IsRead, "read id forces is_read")
	assert.True(t, find(t, s, "c").IsRead, "server read flag is never downgraded")
	assert.Equal(t, "u1", s.UserID)
	assert.True(t, s.IsInitialized)
	assert.False(t, s.IsLoading)
}

func TestLoadDeduplicatesByMessageID(t *testing.T) {
	first := note("a", true)
	last := note("a", false)
	last.Title.En = "Updated"

	g := &fakeGateway{}
	g.setList(first, note("b", false), last)
	r := newReconciler(t, g)

	r.Load(context.Background(), "u1")

	s := r.Snapshot()
	assert.Equal(t, []string{"a", "b"}, ids(s.List))
	assert.Equal(t, "Updated", s.List[0].Title.En, "last write wins")
	assert.True(t, s.List[0].IsRead, "duplicate cannot downgrade read state")
}

func TestUnreadCountComesFromCountEndpoint(t *testing.T) {
	g := &fakeGateway{count: 5}
	g.setList(note("a", false), note("b", false))
	r := newReconciler(t, g)

	r.Load(context.Background(), "u1")

	s := r.Snapshot()
	unread := 0
	for _, n := range s.List {
		if !n.IsRead {
			unread++
		}
	}
	// Two sources, no reconciliation between them
	assert.Equal(t, 2, unread)
	assert.Equal(t, 5, s.UnreadCount)
}

func TestLoadEmptyInbox(t *testing.T) {
	r := newReconciler(t, &fakeGateway{})

	r.Load(context.Background(), "u1")

	s := r.Snapshot()
	assert.Empty(t, s.List)
	assert.Equal(t, 0, s.UnreadCount)
	assert.True(t, s.IsInitialized)
}

func TestLoadReadIDsFailure(t *testing.T) {
	m := metrics.NewInboxMetrics(prometheus.NewRegistry())
	g := &fakeGateway{readErr: errNetwork, count: 1}
	g.setList(note("a", false), note("b", true))
	r := newReconciler(t, g, WithMetrics(m))

	require.NotPanics(t, func() { r.Load(context.Background(), "u1") })

	s := r.Snapshot()
	assert.False(t, find(t, s, "a").IsRead)
	assert.True(t, find(t, s, "b").IsRead)
	assert.Equal(t, 1, s.UnreadCount)
	assert.True(t, s.IsInitialized)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GatewayFailures.WithLabelValues(sdk.OpFetchReadIDs)))
}

func TestLoadAllFailuresCollapseToEmpty(t *testing.T) {
	g := &fakeGateway{readErr: errNetwork, countErr: &sdk.StatusError{Op: "x", StatusCode: 500}}
	g.fetchAll = func(context.Context, string) ([]sdk.Notification, error) {
		return nil, &sdk.DecodeError{Op: "x", Err: errors.New("bad json")}
	}
	r := newReconciler(t, g)

	r.Load(context.Background(), "u1")

	s := r.Snapshot()
	assert.Empty(t, s.List)
	assert.Equal(t, 0, s.UnreadCount)
	assert.True(t, s.IsInitialized)
	assert.False(t, s.IsLoading)
}

func TestLoadUnreadUsesUnreadEndpoint(t *testing.T) {
	g := &fakeGateway{unread: []sdk.Notification{note("x", false)}, count: 1}
	g.setList(note("a", false), note("b", false))
	r := newReconciler(t, g)

	r.LoadUnread(context.Background(), "u1")

	assert.Equal(t, []string{"x"}, ids(r.Snapshot().List))
}

func TestSelectCountArithmetic(t *testing.T) {
	g := &fakeGateway{count: 2}
	g.setList(note("a", false), note("b", false))
	r := newReconciler(t, g)
	r.Load(context.Background(), "u1")

	task, found := r.Select("a")
	require.True(t, found)
	waitTask(t, task)
	assert.Equal(t, 1, r.Snapshot().UnreadCount)

	task, found = r.Select("a")
	assert.True(t, found)
	assert.Nil(t, task, "already read entries are not posted again")
	assert.Equal(t, 1, r.Snapshot().UnreadCount)

	waitTask(t, mustSelect(t, r, "b"))
	assert.Equal(t, 0, r.Snapshot().UnreadCount)
}

func mustSelect(t *testing.T, r *Reconciler, id string) *PostTask {
	t.Helper()
	task, found := r.Select(id)
	require.True(t, found)
	return task
}

func TestSelectFloorsCountAtZero(t *testing.T) {
	g := &fakeGateway{count: 0}
	g.setList(note("a", false))
	r := newReconciler(t, g)
	r.Load(context.Background(), "u1")

	waitTask(t, mustSelect(t, r, "a"))

	assert.Equal(t, 0, r.Snapshot().UnreadCount)
}

func TestSelectSetsSelectedCopy(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g := &fakeGateway{count: 1}
	g.setList(note("a", false))
	r := newReconciler(t, g, WithClock(func() time.Time { return now }))
	r.Load(context.Background(), "u1")

	waitTask(t, mustSelect(t, r, "a"))

	s := r.Snapshot()
	require.NotNil(t, s.Selected)
	assert.Equal(t, "a", s.Selected.MessageID)
	assert.True(t, s.Selected.IsRead)
	assert.Equal(t, now, s.Selected.UpdatedAt)

	r.Deselect()
	assert.Nil(t, r.Snapshot().Selected)
	assert.Len(t, r.Snapshot().List, 1)
}

func TestSelectUnknownID(t *testing.T) {
	g := &fakeGateway{count: 1}
	g.setList(note("a", false))
	r := newReconciler(t, g)
	r.Load(context.Background(), "u1")

	task, found := r.Select("missing")

	assert.False(t, found)
	assert.Nil(t, task)
	assert.Nil(t, r.Snapshot().Selected)
	assert.Equal(t, 1, r.Snapshot().UnreadCount)
}

func TestScenarioSelectThenReload(t *testing.T) {
	g := &fakeGateway{count: 2}
	g.setList(note("a", false), note("b", false))
	r := newReconciler(t, g)
	r.Load(context.Background(), "u1")

	task := mustSelect(t, r, "a")
	waitTask(t, task)

	s := r.Snapshot()
	assert.True(t, find(t, s, "a").IsRead)
	assert.Equal(t, 1, s.UnreadCount)
	assert.Equal(t, [][]string{{"a"}}, g.recordedPosts())
	assert.NoError(t, task.Err())

	// FetchAll still reports "a" unread; the read ids say otherwise
	g.mu.Lock()
	g.readIDs = []string{"a"}
	g.count = 1
	g.mu.Unlock()
	r.Load(context.Background(), "u1")

	assert.True(t, find(t, r.Snapshot(), "a").IsRead)
	assert.False(t, find(t, r.Snapshot(), "b").IsRead)
}

func TestFailedPostKeepsOptimisticRead(t *testing.T) {
	m := metrics.NewInboxMetrics(prometheus.NewRegistry())
	g := &fakeGateway{count: 1, postErr: errNetwork}
	g.setList(note("a", false))
	r := newReconciler(t, g, WithMetrics(m))
	r.Load(context.Background(), "u1")

	task := mustSelect(t, r, "a")
	waitTask(t, task)

	var te *sdk.TransportError
	assert.True(t, errors.As(task.Err(), &te))
	assert.True(t, find(t, r.Snapshot(), "a").IsRead)
	assert.Equal(t, 0, r.Snapshot().UnreadCount)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReadPosts.WithLabelValues("error")))

	// A stale list fetched before the server saw the read does not revert it
	r.Load(context.Background(), "u1")
	assert.True(t, find(t, r.Snapshot(), "a").IsRead)
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var callsMu sync.Mutex

	g := &fakeGateway{}
	g.fetchAll = func(ctx context.Context, userID string) ([]sdk.Notification, error) {
		callsMu.Lock()
		calls++
		n := calls
		callsMu.Unlock()
		if n == 1 {
			close(started)
			<-release
			return []sdk.Notification{note("stale", false)}, nil
		}
		return []sdk.Notification{note("fresh", false)}, nil
	}
	r := newReconciler(t, g)

	done := make(chan struct{})
	go func() {
		r.Load(context.Background(), "u1")
		close(done)
	}()
	<-started

	r.Load(context.Background(), "u1")
	close(release)
	<-done

	assert.Equal(t, []string{"fresh"}, ids(r.Snapshot().List))
	assert.False(t, r.Snapshot().IsLoading)
}

func TestSelectDuringLoadSurvivesStaleSnapshot(t *testing.T) {
	g := &fakeGateway{count: 3}
	g.setList(note("a", false), note("b", false), note("c", false))
	r := newReconciler(t, g)
	r.Load(context.Background(), "u1")
	require.Equal(t, 3, r.Snapshot().UnreadCount)

	// the next fetch captures "a" as unread, then blocks until released
	captured := make(chan struct{})
	release := make(chan struct{})
	g.mu.Lock()
	g.fetchAll = func(context.Context, string) ([]sdk.Notification, error) {
		list := []sdk.Notification{note("a", false), note("b", false), note("c", false)}
		close(captured)
		<-release
		return list, nil
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.Load(context.Background(), "u1")
		close(done)
	}()
	<-captured

	task, found := r.Select("a")
	require.True(t, found)
	assert.Equal(t, 2, r.Snapshot().UnreadCount)

	close(release)
	<-done
	waitTask(t, task)

	s := r.Snapshot()
	assert.True(t, find(t, s, "a").IsRead, "stale unread snapshot must not undo the local read")
	assert.False(t, find(t, s, "b").IsRead)

	// the count comes from the count endpoint, which had not seen the read yet
	assert.Equal(t, 3, s.UnreadCount)
	unreadInList := 0
	for _, n := range s.List {
		if !n.IsRead {
			unreadInList++
		}
	}
	assert.Equal(t, 2, unreadInList)
	assert.Equal(t, [][]string{{"a"}}, g.recordedPosts())
}

func TestCancelledLoadKeepsPreviousState(t *testing.T) {
	g := &fakeGateway{count: 1}
	g.setList(note("a", false))
	r := newReconciler(t, g)
	r.Load(context.Background(), "u1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g.setList()
	r.Load(ctx, "u1")

	s := r.Snapshot()
	assert.Equal(t, []string{"a"}, ids(s.List))
	assert.False(t, s.IsLoading)
}

func TestRefreshUnreadCount(t *testing.T) {
	g := &fakeGateway{count: 3}
	r := newReconciler(t, g)

	r.RefreshUnreadCount(context.Background(), "u1")
	assert.Equal(t, 3, r.Snapshot().UnreadCount)

	g.mu.Lock()
	g.countErr = errNetwork
	g.mu.Unlock()
	r.RefreshUnreadCount(context.Background(), "u1")
	assert.Equal(t, 0, r.Snapshot().UnreadCount)
}

func TestClearForgetsLocalReads(t *testing.T) {
	g := &fakeGateway{count: 1}
	g.setList(note("a", false))
	r := newReconciler(t, g)
	r.Load(context.Background(), "u1")
	waitTask(t, mustSelect(t, r, "a"))

	r.Clear()

	s := r.Snapshot()
	assert.Empty(t, s.List)
	assert.Zero(t, s.UnreadCount)
	assert.Nil(t, s.Selected)
	assert.False(t, s.IsInitialized)

	r.Load(context.Background(), "u1")
	assert.False(t, find(t, r.Snapshot(), "a").IsRead)
}

func TestSnapshotIsACopy(t *testing.T) {
	g := &fakeGateway{}
	g.setList(note("a", false))
	r := newReconciler(t, g)
	r.Load(context.Background(), "u1")

	s := r.Snapshot()
	s.List[0].IsRead = true

	assert.False(t, r.Snapshot().List[0].IsRead)
}

func TestWaitHonoursContext(t *testing.T) {
	g := &fakeGateway{count: 1, postDelay: make(chan struct{})}
	g.setList(note("a", false))
	r := newReconciler(t, g)
	r.Load(context.Background(), "u1")
	task := mustSelect(t, r, "a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)

	close(g.postDelay)
	require.NoError(t, r.Wait(context.Background()))
	waitTask(t, task)
	assert.NoError(t, task.Err())
}
