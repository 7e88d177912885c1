// Package syncx implements the client-side synchronization engine: for one
// owner-scoped collection it keeps an in-memory view converged with the
// remote store by re-fetching after every local mutation and every
// change-feed notification. The engine is parametrized by collection name
// and row-mapper pair and instantiated once per collection.
package syncx

import "github.com/dmitrijs2005/tastekeeper/internal/store"

// Collection describes one synchronized collection: its persisted name and
// the pure mappers between wire rows and the domain shapes E (entity) and
// D (draft).
type Collection[E, D any] struct {
	Name     string
	FromRow  func(store.Row) (E, error)
	DraftRow func(D) store.Row
}

// Snapshot is the materialized view a Session exposes: the current items,
// whether an initial fetch is still in flight, and the last error message
// ("" when the last operation succeeded).
type Snapshot[E any] struct {
	Items   []E
	Loading bool
	Err     string
}
