// Package store defines the capability boundary to the remote data service:
// owner-scoped queries and mutations over named collections, plus a
// server-pushed change feed. Backends (in-memory, PostgreSQL, remote
// gateway) implement Store; the synchronization engine consumes it.
package store

import "context"

// Row is the raw record shape as read from or written to a collection,
// prior to domain mapping. Keys use the persisted column names; values of
// absent optional fields are nil.
type Row map[string]any

// EventType classifies a change-feed notification.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is a single change-feed notification for one row of a collection.
// Row may be nil: delete notifications carry no payload beyond the id, and
// backends are not required to enrich the others.
type Event struct {
	Type       EventType
	Collection string
	Owner      string
	ID         string
	Row        Row
}

// Subscription is a live change-feed registration. Close releases it;
// no events are delivered after Close returns.
type Subscription interface {
	Close() error
}

// Store is the remote-data capability. All operations are scoped to an
// owner; a record must never be visible to or mutable by another owner.
type Store interface {
	// Query returns all rows of collection belonging to owner, ordered by
	// creation time descending.
	Query(ctx context.Context, collection, owner string) ([]Row, error)

	// Insert adds a row owned by owner. The backend assigns id and
	// created_at.
	Insert(ctx context.Context, collection, owner string, row Row) error

	// Update patches the row matching both id and owner. If no row
	// matches, the returned error wraps common.ErrorNotFound.
	Update(ctx context.Context, collection, id, owner string, patch Row) error

	// Delete removes the row matching both id and owner. If no row
	// matches, the returned error wraps common.ErrorNotFound.
	Delete(ctx context.Context, collection, id, owner string) error

	// Subscribe registers fn for change events on owner's rows in
	// collection. fn may be invoked from arbitrary goroutines.
	Subscribe(ctx context.Context, collection, owner string, fn func(Event)) (Subscription, error)
}
