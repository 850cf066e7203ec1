// Package driver is the room-listing store: a query-able, cluster-wide
// view of rooms, separate from presence (it may or may not share a
// backend with it).
package driver

import "context"

// RoomListing is the cluster-visible record describing one room.
// Metadata carries the filter fields projected from create options.
type RoomListing struct {
	RoomID     string
	Name       string
	ProcessID  string
	Locked     bool
	Private    bool
	Unlisted   bool
	Clients    int
	MaxClients int
	Metadata   map[string]any

	driver Driver
}

// Save persists the listing's current fields.
func (l *RoomListing) Save(ctx context.Context) error {
	return l.driver.save(ctx, l)
}

// Remove deletes the listing.
func (l *RoomListing) Remove(ctx context.Context) error {
	return l.driver.remove(ctx, l)
}

// Query is the set of conditions a Find/FindOne call filters listings
// by. Locked/Private/Unlisted are tri-state: nil means "don't filter
// on this field".
type Query struct {
	RoomID   string
	Name     string
	Locked   *bool
	Private  *bool
	Unlisted *bool
	Metadata map[string]any
}

// SortFunc orders a slice of listings in place, most-preferred first.
type SortFunc func(listings []*RoomListing)

// Driver is the room-listing store contract.
type Driver interface {
	// CreateInstance allocates a new mutable listing and stores it, so
	// it is visible to Find right away; Save persists later changes.
	CreateInstance(ctx context.Context, initial RoomListing) (*RoomListing, error)

	// Find returns every listing matching conditions, optionally sorted.
	Find(ctx context.Context, q Query, sort SortFunc) ([]*RoomListing, error)

	// FindOne is best-effort: under concurrent creation it may race
	// with a write in flight elsewhere in the cluster; duplicates are
	// tolerated. The stale-listing sweep removes only listings whose
	// owner no longer answers, not live duplicates.
	FindOne(ctx context.Context, q Query, sort SortFunc) (*RoomListing, error)

	save(ctx context.Context, listing *RoomListing) error
	remove(ctx context.Context, listing *RoomListing) error
}
