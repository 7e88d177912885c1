package syncx

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/tastekeeper/internal/common"
	"github.com/dmitrijs2005/tastekeeper/internal/diary"
	"github.com/dmitrijs2005/tastekeeper/internal/identity"
	"github.com/dmitrijs2005/tastekeeper/internal/logging"
	"github.com/dmitrijs2005/tastekeeper/internal/store"
	"github.com/stretchr/testify/require"
)

// fakeStore is a hand-rolled store.Store with per-operation presets and
// synchronous event delivery, so tests control exactly when fetches complete.
type fakeStore struct {
	mu sync.Mutex

	queryFn   func(call int, owner string) ([]store.Row, error)
	queries   int
	insertErr error
	updateErr error
	deleteErr error
	subErr    error

	insertedOwners []string
	insertedRows   []store.Row
	updatedIDs     []string
	deletedIDs     []string

	subs []*fakeSub
}

type fakeSub struct {
	fs     *fakeStore
	owner  string
	fn     func(store.Event)
	closed bool
}

func (f *fakeStore) Query(ctx context.Context, collection, owner string) ([]store.Row, error) {
	f.mu.Lock()
	f.queries++
	call := f.queries
	fn := f.queryFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(call, owner)
}

func (f *fakeStore) Insert(ctx context.Context, collection, owner string, row store.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.insertedOwners = append(f.insertedOwners, owner)
	f.insertedRows = append(f.insertedRows, row)
	return nil
}

func (f *fakeStore) Update(ctx context.Context, collection, id, owner string, patch store.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updatedIDs = append(f.updatedIDs, id)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, collection, id, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *fakeStore) Subscribe(ctx context.Context, collection, owner string, fn func(store.Event)) (store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	sub := &fakeSub{fs: f, owner: owner, fn: fn}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (s *fakeSub) Close() error {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()
	s.closed = true
	return nil
}

// emit delivers ev synchronously to all open subscriptions for ev.Owner.
func (f *fakeStore) emit(ev store.Event) {
	f.mu.Lock()
	var fns []func(store.Event)
	for _, sub := range f.subs {
		if !sub.closed && sub.owner == ev.Owner {
			fns = append(fns, sub.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (f *fakeStore) openSubs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.subs {
		if !sub.closed {
			n++
		}
	}
	return n
}

func logRow(id, owner, name, createdAt string) store.Row {
	return store.Row{
		"id": id, "user_id": owner, "name": name, "rating": 4.0,
		"date_visited": "2025-01-01", "created_at": createdAt,
	}
}

func logsCollection() Collection[diary.VisitedLog, diary.VisitedLogDraft] {
	return Collection[diary.VisitedLog, diary.VisitedLogDraft]{
		Name:     diary.CollectionLogs,
		FromRow:  diary.RowToLog,
		DraftRow: diary.LogDraftRow,
	}
}

func newLogSession(fs *fakeStore) *Session[diary.VisitedLog, diary.VisitedLogDraft] {
	return NewSession(fs, logsCollection(), logging.NewJSON(io.Discard), nil)
}

func staticRows(rows ...store.Row) func(int, string) ([]store.Row, error) {
	return func(int, string) ([]store.Row, error) { return rows, nil }
}

func TestBind_EmptyOwnerIsInert(t *testing.T) {
	fs := &fakeStore{}
	s := newLogSession(fs)

	s.Bind(context.Background(), "")

	snap := s.Snapshot()
	require.Empty(t, snap.Items)
	require.False(t, snap.Loading)
	require.Empty(t, snap.Err)
	require.Zero(t, fs.queries)
	require.Zero(t, fs.openSubs())
}

func TestBind_FetchesOwnerRows(t *testing.T) {
	fs := &fakeStore{queryFn: staticRows(
		logRow("e2", "u1", "Second", "2025-01-02T00:00:00Z"),
		logRow("e1", "u1", "First", "2025-01-01T00:00:00Z"),
	)}
	s := newLogSession(fs)

	s.Bind(context.Background(), "u1")

	snap := s.Snapshot()
	require.False(t, snap.Loading)
	require.Empty(t, snap.Err)
	require.Len(t, snap.Items, 2)
	require.Equal(t, "Second", snap.Items[0].Name)
	require.Equal(t, "First", snap.Items[1].Name)
	require.Equal(t, 1, fs.openSubs())
}

func TestBind_QueryErrorEmptiesView(t *testing.T) {
	fs := &fakeStore{queryFn: func(int, string) ([]store.Row, error) {
		return nil, store.NewError("query", diary.CollectionLogs, errors.New("connection refused"))
	}}
	s := newLogSession(fs)

	s.Bind(context.Background(), "u1")

	snap := s.Snapshot()
	require.False(t, snap.Loading)
	require.Contains(t, snap.Err, "connection refused")
	require.Empty(t, snap.Items)
}

func TestBind_SubscribeErrorSurfaced(t *testing.T) {
	fs := &fakeStore{subErr: store.NewError("subscribe", diary.CollectionLogs, errors.New("feed down"))}
	s := newLogSession(fs)

	s.Bind(context.Background(), "u1")

	snap := s.Snapshot()
	require.False(t, snap.Loading)
	require.Contains(t, snap.Err, "feed down")
	require.Zero(t, fs.queries)
}

func TestBind_MappingErrorSurfaced(t *testing.T) {
	fs := &fakeStore{queryFn: staticRows(store.Row{"id": "e1", "name": "Bad", "rating": "zesty"})}
	s := newLogSession(fs)

	s.Bind(context.Background(), "u1")

	snap := s.Snapshot()
	require.Contains(t, snap.Err, "rating")
	require.Empty(t, snap.Items)
}

func TestFeedEvent_TriggersRefetch(t *testing.T) {
	fs := &fakeStore{queryFn: func(call int, _ string) ([]store.Row, error) {
		if call == 1 {
			return nil, nil
		}
		return []store.Row{logRow("e1", "u1", "Appeared", "2025-01-01T00:00:00Z")}, nil
	}}
	s := newLogSession(fs)

	s.Bind(context.Background(), "u1")
	require.Empty(t, s.Snapshot().Items)

	fs.emit(store.Event{Type: store.EventInsert, Collection: diary.CollectionLogs, Owner: "u1", ID: "e1"})

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	require.Equal(t, "Appeared", snap.Items[0].Name)
}

func TestBind_OwnerSwitchReleasesSubscription(t *testing.T) {
	fs := &fakeStore{queryFn: staticRows()}
	s := newLogSession(fs)

	s.Bind(context.Background(), "u1")
	s.Bind(context.Background(), "u2")

	require.Equal(t, 1, fs.openSubs())
	require.True(t, fs.subs[0].closed)

	s.Close()
	require.Zero(t, fs.openSubs())
}

func TestBind_SameOwnerIsNoOp(t *testing.T) {
	fs := &fakeStore{queryFn: staticRows()}
	s := newLogSession(fs)

	s.Bind(context.Background(), "u1")
	queries := fs.queries
	s.Bind(context.Background(), "u1")

	require.Equal(t, queries, fs.queries)
	require.Len(t, fs.subs, 1)
}

func TestRapidOwnerSwitch_StaleFetchNeverApplied(t *testing.T) {
	gate := make(chan struct{})
	fs := &fakeStore{queryFn: func(call int, owner string) ([]store.Row, error) {
		if call == 1 {
			// The original u1 fetch: block until released, then return
			// data that must never become visible.
			<-gate
			return []store.Row{logRow("stale", "u1", "Stale", "2025-01-01T00:00:00Z")}, nil
		}
		return []store.Row{logRow("fresh", owner, "Fresh "+owner, "2025-01-02T00:00:00Z")}, nil
	}}
	s := newLogSession(fs)

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Bind(ctx, "u1")
	}()

	require.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return fs.queries == 1
	}, time.Second, time.Millisecond)

	// Switch away and back before the first fetch completes.
	s.Bind(ctx, "u2")
	s.Bind(ctx, "u1")

	close(gate)
	<-done

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	require.Equal(t, "Fresh u1", snap.Items[0].Name)
}

func TestStaleFetch_SupersededBySameOwnerFetch(t *testing.T) {
	gate := make(chan struct{})
	fs := &fakeStore{queryFn: func(call int, _ string) ([]store.Row, error) {
		if call == 1 {
			<-gate
			return []store.Row{logRow("old", "u1", "Old", "2025-01-01T00:00:00Z")}, nil
		}
		return []store.Row{logRow("new", "u1", "New", "2025-01-02T00:00:00Z")}, nil
	}}
	s := newLogSession(fs)

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Bind(ctx, "u1")
	}()

	require.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return fs.queries == 1
	}, time.Second, time.Millisecond)

	// A feed notification races the slow initial fetch and completes first.
	fs.emit(store.Event{Type: store.EventUpdate, Collection: diary.CollectionLogs, Owner: "u1", ID: "new"})
	require.Equal(t, "New", s.Snapshot().Items[0].Name)

	close(gate)
	<-done

	// The slower, older fetch must not clobber the fresher result.
	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	require.Equal(t, "New", snap.Items[0].Name)
}

func TestCreate_NoOpWhenUnbound(t *testing.T) {
	fs := &fakeStore{}
	s := newLogSession(fs)

	s.Create(context.Background(), diary.VisitedLogDraft{Name: "Noma"})

	require.Empty(t, fs.insertedRows)
	require.Zero(t, fs.queries)
}

func TestCreate_WritesOwnerScopedAndRefetches(t *testing.T) {
	fs := &fakeStore{queryFn: func(call int, _ string) ([]store.Row, error) {
		if call == 1 {
			return nil, nil
		}
		return []store.Row{logRow("e1", "u1", "Noma", "2025-01-01T00:00:00Z")}, nil
	}}
	s := newLogSession(fs)
	s.Bind(context.Background(), "u1")

	s.Create(context.Background(), diary.VisitedLogDraft{
		Name: "Noma", Location: "Copenhagen", Rating: 5, DateVisited: "2025-01-01", Tags: []string{"omakase"},
	})

	require.Equal(t, []string{"u1"}, fs.insertedOwners)
	require.Equal(t, "Noma", fs.insertedRows[0]["name"])
	require.Equal(t, []string{"omakase"}, fs.insertedRows[0]["tags"])

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	require.Equal(t, "Noma", snap.Items[0].Name)
}

func TestCreate_FailureLeavesViewUntouched(t *testing.T) {
	fs := &fakeStore{queryFn: staticRows(logRow("e1", "u1", "Kept", "2025-01-01T00:00:00Z"))}
	s := newLogSession(fs)
	s.Bind(context.Background(), "u1")

	fs.mu.Lock()
	fs.insertErr = store.NewError("insert", diary.CollectionLogs, errors.New("permission denied"))
	fs.mu.Unlock()

	s.Create(context.Background(), diary.VisitedLogDraft{Name: "Rejected"})

	snap := s.Snapshot()
	require.Contains(t, snap.Err, "permission denied")
	require.Len(t, snap.Items, 1)
	require.Equal(t, "Kept", snap.Items[0].Name)
}

func TestUpdate_NotFoundSurfaced(t *testing.T) {
	fs := &fakeStore{queryFn: staticRows()}
	s := newLogSession(fs)
	s.Bind(context.Background(), "u1")

	fs.mu.Lock()
	fs.updateErr = store.NewError("update", diary.CollectionLogs, common.ErrorNotFound)
	fs.mu.Unlock()

	s.Update(context.Background(), "someone-elses", diary.VisitedLogDraft{Name: "X"})

	require.Contains(t, s.Snapshot().Err, "not found")
}

func TestDelete_FailureSurfacedLikeOtherMutations(t *testing.T) {
	fs := &fakeStore{queryFn: staticRows(logRow("e1", "u1", "Kept", "2025-01-01T00:00:00Z"))}
	s := newLogSession(fs)
	s.Bind(context.Background(), "u1")

	fs.mu.Lock()
	fs.deleteErr = store.NewError("delete", diary.CollectionLogs, errors.New("network down"))
	fs.mu.Unlock()

	s.Delete(context.Background(), "e1")

	snap := s.Snapshot()
	require.Contains(t, snap.Err, "network down")
	require.Len(t, snap.Items, 1)
}

func TestMutation_ClearsPreviousError(t *testing.T) {
	fs := &fakeStore{queryFn: staticRows()}
	s := newLogSession(fs)
	s.Bind(context.Background(), "u1")

	fs.mu.Lock()
	fs.deleteErr = store.NewError("delete", diary.CollectionLogs, errors.New("boom"))
	fs.mu.Unlock()
	s.Delete(context.Background(), "e1")
	require.NotEmpty(t, s.Snapshot().Err)

	fs.mu.Lock()
	fs.deleteErr = nil
	fs.mu.Unlock()
	s.Delete(context.Background(), "e1")
	require.Empty(t, s.Snapshot().Err)
}

func TestFollow_RebindOnIdentityChange(t *testing.T) {
	fs := &fakeStore{queryFn: func(_ int, owner string) ([]store.Row, error) {
		return []store.Row{logRow("e-"+owner, owner, "Entry of "+owner, "2025-01-01T00:00:00Z")}, nil
	}}
	s := newLogSession(fs)
	provider := identity.NewStatic()

	stop := s.Follow(context.Background(), provider)
	require.Empty(t, s.Snapshot().Items)

	provider.SignIn("u1")
	require.Equal(t, "Entry of u1", s.Snapshot().Items[0].Name)

	provider.SignIn("u2")
	require.Equal(t, "Entry of u2", s.Snapshot().Items[0].Name)

	provider.SignOut()
	snap := s.Snapshot()
	require.Empty(t, snap.Items)
	require.False(t, snap.Loading)

	stop()
	require.Zero(t, fs.openSubs())
}

func TestOnChange_ObservesLoadingTransition(t *testing.T) {
	fs := &fakeStore{queryFn: staticRows(logRow("e1", "u1", "Noma", "2025-01-01T00:00:00Z"))}

	var mu sync.Mutex
	var snaps []Snapshot[diary.VisitedLog]
	s := NewSession(fs, logsCollection(), logging.NewJSON(io.Discard), func(snap Snapshot[diary.VisitedLog]) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	})

	s.Bind(context.Background(), "u1")

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(snaps), 2)
	require.True(t, snaps[0].Loading)
	last := snaps[len(snaps)-1]
	require.False(t, last.Loading)
	require.Len(t, last.Items, 1)
}

func TestSnapshot_ItemsAreCopies(t *testing.T) {
	fs := &fakeStore{queryFn: staticRows(logRow("e1", "u1", "Noma", "2025-01-01T00:00:00Z"))}
	s := newLogSession(fs)
	s.Bind(context.Background(), "u1")

	snap := s.Snapshot()
	snap.Items[0].Name = "mutated"

	require.Equal(t, "Noma", s.Snapshot().Items[0].Name)
}
