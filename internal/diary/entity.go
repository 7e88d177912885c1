// Package diary holds the domain model of the restaurant-visit diary and
// the pure mappers between wire rows and domain entities.
package diary

// Collection names as persisted in the remote store.
const (
	CollectionLogs     = "restaurant_logs"
	CollectionEatLater = "eat_later"
)

// VisitedLog is one recorded restaurant visit. Optional text fields use ""
// for absent; Tags is never nil.
type VisitedLog struct {
	ID          string
	Name        string
	Location    string
	Rating      float64
	DateVisited string
	Review      string
	Tags        []string
	CreatedAt   string
}

// VisitedLogDraft carries the caller-supplied fields of a visit, i.e.
// everything except the store-assigned id and creation timestamp.
type VisitedLogDraft struct {
	Name        string
	Location    string
	Rating      float64
	DateVisited string
	Review      string
	Tags        []string
}

// EatLaterEntry is a place the user intends to try. Structurally parallel to
// VisitedLog but the two collections share no identity.
type EatLaterEntry struct {
	ID        string
	Name      string
	Location  string
	Notes     string
	Tags      []string
	CreatedAt string
}

// EatLaterDraft carries the caller-supplied fields of an eat-later entry.
type EatLaterDraft struct {
	Name     string
	Location string
	Notes    string
	Tags     []string
}
