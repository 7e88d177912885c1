package syncx

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/tastekeeper/internal/identity"
	"github.com/dmitrijs2005/tastekeeper/internal/logging"
	"github.com/dmitrijs2005/tastekeeper/internal/store"
)

// Session is the synchronization unit for one collection. Bound to an owner
// it maintains a live view of that owner's rows; unbound it is inert (empty
// items, not loading). Safe for concurrent use: change-feed events arrive on
// store goroutines.
//
// The view is never patched incrementally. Every local mutation and every
// feed notification triggers a full owner-scoped re-fetch, and the items
// slice is replaced wholesale with the result. A generation counter fences
// owner changes (a fetch or event from a previous owner can never write into
// the current view) and a per-generation fetch sequence discards results
// that a newer fetch has already superseded.
type Session[E, D any] struct {
	st       store.Store
	col      Collection[E, D]
	log      logging.Logger
	onChange func(Snapshot[E])

	mu      sync.Mutex
	owner   string
	gen     uint64
	seq     uint64 // fetches started within the current generation
	applied uint64 // seq of the last fetch whose result was applied
	sub     store.Subscription
	items   []E
	loading bool
	lastErr string
}

// NewSession creates an unbound session. onChange, if non-nil, is invoked
// with a fresh Snapshot after every state transition; it must not call back
// into the session synchronously.
func NewSession[E, D any](st store.Store, col Collection[E, D], log logging.Logger, onChange func(Snapshot[E])) *Session[E, D] {
	return &Session[E, D]{
		st:       st,
		col:      col,
		log:      log.With("collection", col.Name),
		onChange: onChange,
		items:    []E{},
	}
}

// Bind switches the session to owner. An empty owner means signed out: the
// view clears immediately and no fetch or subscription is made. Any previous
// owner's subscription is released and its in-flight results are discarded.
// ctx must outlive the binding; it scopes the feed subscription and the
// re-fetches it triggers.
func (s *Session[E, D]) Bind(ctx context.Context, owner string) {
	s.mu.Lock()
	if owner == s.owner && (owner == "" || s.sub != nil) {
		s.mu.Unlock()
		return
	}
	prev := s.sub
	s.sub = nil
	s.gen++
	gen := s.gen
	s.seq, s.applied = 0, 0
	s.owner = owner
	s.items = []E{}
	s.loading = owner != ""
	s.lastErr = ""
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	s.emit(snap)

	if owner == "" {
		s.log.Debug(ctx, "session cleared")
		return
	}
	s.log.Debug(ctx, "session bound", "owner", owner)

	sub, err := s.st.Subscribe(ctx, s.col.Name, owner, func(store.Event) {
		feedEventsTotal.WithLabelValues(s.col.Name).Inc()
		s.refresh(ctx, gen)
	})

	s.mu.Lock()
	if s.gen != gen {
		// Owner changed while subscribing; this generation is dead.
		s.mu.Unlock()
		if err == nil {
			_ = sub.Close()
		}
		return
	}
	if err != nil {
		s.loading = false
		s.lastErr = err.Error()
		failed := s.snapshotLocked()
		s.mu.Unlock()
		s.log.Error(ctx, "change feed subscription failed", "error", err)
		s.emit(failed)
		return
	}
	s.sub = sub
	s.mu.Unlock()

	s.refresh(ctx, gen)
}

// Follow binds the session to the provider's current identity and rebinds on
// every change. The returned stop function detaches from the provider and
// closes the session.
func (s *Session[E, D]) Follow(ctx context.Context, provider identity.Provider) (stop func()) {
	s.Bind(ctx, provider.Current())
	unwatch := provider.Watch(func(owner string) {
		s.Bind(ctx, owner)
	})
	return func() {
		unwatch()
		s.Close()
	}
}

// Close unbinds the session and releases its feed subscription.
func (s *Session[E, D]) Close() {
	s.Bind(context.Background(), "")
}

// Snapshot returns the current view. The items slice is a copy.
func (s *Session[E, D]) Snapshot() Snapshot[E] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Refetch re-runs the owner-scoped query and replaces the view with the
// result, subject to the usual staleness fencing. No-op when unbound.
func (s *Session[E, D]) Refetch(ctx context.Context) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.refresh(ctx, gen)
}

func (s *Session[E, D]) refresh(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.owner == "" {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	owner := s.owner
	s.mu.Unlock()

	rows, err := s.st.Query(ctx, s.col.Name, owner)

	var items []E
	var mapErr error
	if err == nil {
		items = make([]E, 0, len(rows))
		for _, row := range rows {
			e, convErr := s.col.FromRow(row)
			if convErr != nil {
				mapErr = convErr
				break
			}
			items = append(items, e)
		}
	}

	s.mu.Lock()
	if s.gen != gen || seq <= s.applied {
		s.mu.Unlock()
		staleFetchesTotal.WithLabelValues(s.col.Name).Inc()
		s.log.Debug(ctx, "discarding superseded fetch result", "seq", seq)
		return
	}
	s.applied = seq
	s.loading = false
	switch {
	case err != nil:
		s.items = []E{}
		s.lastErr = err.Error()
	case mapErr != nil:
		s.items = []E{}
		s.lastErr = mapErr.Error()
	default:
		s.items = items
		s.lastErr = ""
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		fetchesTotal.WithLabelValues(s.col.Name, resultErr).Inc()
		s.log.Error(ctx, "fetch failed", "error", err)
	} else if mapErr != nil {
		fetchesTotal.WithLabelValues(s.col.Name, resultErr).Inc()
		s.log.Error(ctx, "row mapping failed", "error", mapErr)
	} else {
		fetchesTotal.WithLabelValues(s.col.Name, resultOK).Inc()
	}
	s.emit(snap)
}

func (s *Session[E, D]) snapshotLocked() Snapshot[E] {
	items := make([]E, len(s.items))
	copy(items, s.items)
	return Snapshot[E]{Items: items, Loading: s.loading, Err: s.lastErr}
}

func (s *Session[E, D]) emit(snap Snapshot[E]) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
