// Package memstore provides an in-memory implementation of the store
// capability, used by tests and by the CLI when no backend is configured.
// It mirrors the remote store's contract: server-assigned ids and creation
// timestamps, owner-scoped access, and an asynchronous change feed.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/tastekeeper/internal/common"
	"github.com/dmitrijs2005/tastekeeper/internal/store"
	"github.com/google/uuid"
)

// feedBuffer bounds the per-subscriber event queue. A subscriber that falls
// this far behind starts losing events.
const feedBuffer = 128

type record struct {
	row     store.Row
	owner   string
	seq     uint64
	created time.Time
}

// Store is a map-backed store.Store. Safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]*record
	seq         uint64
	subs        map[uint64]*subscriber
	subSeq      uint64
	now         func() time.Time
}

type subscriber struct {
	collection string
	owner      string
	ch         chan store.Event
	done       chan struct{}
	once       sync.Once
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]*record),
		subs:        make(map[uint64]*subscriber),
		now:         time.Now,
	}
}

// SetClock replaces the timestamp source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Query returns owner's rows in collection, newest created_at first, ties
// broken by insertion order (newest insert first).
func (s *Store) Query(ctx context.Context, collection, owner string) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.NewError("query", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []*record
	for _, rec := range s.collections[collection] {
		if rec.owner == owner {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].created.Equal(records[j].created) {
			return records[i].created.After(records[j].created)
		}
		return records[i].seq > records[j].seq
	})

	rows := make([]store.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, cloneRow(rec.row))
	}
	return rows, nil
}

// Insert stores a copy of row under a fresh uuid with the current timestamp.
func (s *Store) Insert(ctx context.Context, collection, owner string, row store.Row) error {
	if err := ctx.Err(); err != nil {
		return store.NewError("insert", collection, err)
	}

	s.mu.Lock()
	rows := s.collections[collection]
	if rows == nil {
		rows = make(map[string]*record)
		s.collections[collection] = rows
	}

	s.seq++
	created := s.now().UTC()
	stored := cloneRow(row)
	stored["id"] = uuid.NewString()
	stored["user_id"] = owner
	stored["created_at"] = created.Format(time.RFC3339Nano)
	rows[stored["id"].(string)] = &record{row: stored, owner: owner, seq: s.seq, created: created}

	ev := store.Event{
		Type:       store.EventInsert,
		Collection: collection,
		Owner:      owner,
		ID:         stored["id"].(string),
		Row:        cloneRow(stored),
	}
	s.mu.Unlock()

	s.publish(ev)
	return nil
}

// Update patches the row matching id and owner; zero matches wrap
// common.ErrorNotFound.
func (s *Store) Update(ctx context.Context, collection, id, owner string, patch store.Row) error {
	if err := ctx.Err(); err != nil {
		return store.NewError("update", collection, err)
	}

	s.mu.Lock()
	rec, ok := s.collections[collection][id]
	if !ok || rec.owner != owner {
		s.mu.Unlock()
		return store.NewError("update", collection, common.ErrorNotFound)
	}
	for k, v := range patch {
		rec.row[k] = v
	}

	ev := store.Event{
		Type:       store.EventUpdate,
		Collection: collection,
		Owner:      owner,
		ID:         id,
		Row:        cloneRow(rec.row),
	}
	s.mu.Unlock()

	s.publish(ev)
	return nil
}

// Delete removes the row matching id and owner; zero matches wrap
// common.ErrorNotFound.
func (s *Store) Delete(ctx context.Context, collection, id, owner string) error {
	if err := ctx.Err(); err != nil {
		return store.NewError("delete", collection, err)
	}

	s.mu.Lock()
	rec, ok := s.collections[collection][id]
	if !ok || rec.owner != owner {
		s.mu.Unlock()
		return store.NewError("delete", collection, common.ErrorNotFound)
	}
	delete(s.collections[collection], id)

	ev := store.Event{
		Type:       store.EventDelete,
		Collection: collection,
		Owner:      owner,
		ID:         id,
	}
	s.mu.Unlock()

	s.publish(ev)
	return nil
}

// Subscribe registers fn for owner's change events in collection. Events are
// delivered asynchronously, in order, on a dedicated goroutine.
func (s *Store) Subscribe(ctx context.Context, collection, owner string, fn func(store.Event)) (store.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.NewError("subscribe", collection, err)
	}

	sub := &subscriber{
		collection: collection,
		owner:      owner,
		ch:         make(chan store.Event, feedBuffer),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	s.subSeq++
	id := s.subSeq
	s.subs[id] = sub
	s.mu.Unlock()

	go func() {
		for {
			select {
			case ev := <-sub.ch:
				fn(ev)
			case <-sub.done:
				return
			}
		}
	}()

	return &subscription{store: s, id: id, sub: sub}, nil
}

func (s *Store) publish(ev store.Event) {
	s.mu.Lock()
	targets := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.collection == ev.Collection && sub.owner == ev.Owner {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- ev:
		default:
			// Subscriber is saturated; drop rather than block writers.
		}
	}
}

type subscription struct {
	store *Store
	id    uint64
	sub   *subscriber
}

func (s *subscription) Close() error {
	s.store.mu.Lock()
	delete(s.store.subs, s.id)
	s.store.mu.Unlock()
	s.sub.once.Do(func() { close(s.sub.done) })
	return nil
}

func cloneRow(r store.Row) store.Row {
	out := make(store.Row, len(r))
	for k, v := range r {
		if tags, ok := v.([]string); ok {
			copied := make([]string, len(tags))
			copy(copied, tags)
			out[k] = copied
			continue
		}
		out[k] = v
	}
	return out
}
