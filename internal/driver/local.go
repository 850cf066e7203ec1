package driver

import (
	"context"
	"sync"
)

// Local is an in-memory RoomListing store: a mutex-guarded slice,
// linear-scanned and sorted per query. Mirrors the in-memory room
// table elsewhere in this module, applied to cluster-visible listings
// instead of live room objects.
type Local struct {
	mu       sync.Mutex
	listings []*RoomListing
}

// NewLocal creates an empty in-memory driver.
func NewLocal() *Local {
	return &Local{}
}

func (d *Local) CreateInstance(ctx context.Context, initial RoomListing) (*RoomListing, error) {
	listing := initial
	listing.driver = d
	if listing.Metadata == nil {
		listing.Metadata = map[string]any{}
	}

	d.mu.Lock()
	d.listings = append(d.listings, &listing)
	d.mu.Unlock()

	return &listing, nil
}

func (d *Local) Find(ctx context.Context, q Query, sort SortFunc) ([]*RoomListing, error) {
	d.mu.Lock()
	candidates := make([]*RoomListing, 0, len(d.listings))
	for _, l := range d.listings {
		if matches(l, q) {
			candidates = append(candidates, l)
		}
	}
	d.mu.Unlock()

	if sort != nil {
		sort(candidates)
	}
	return candidates, nil
}

func (d *Local) FindOne(ctx context.Context, q Query, sort SortFunc) (*RoomListing, error) {
	candidates, err := d.Find(ctx, q, sort)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[0], nil
}

func (d *Local) save(ctx context.Context, listing *RoomListing) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.listings {
		if l == listing || l.RoomID == listing.RoomID {
			d.listings[i] = listing
			return nil
		}
	}
	d.listings = append(d.listings, listing)
	return nil
}

func (d *Local) remove(ctx context.Context, listing *RoomListing) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.listings {
		if l == listing || l.RoomID == listing.RoomID {
			d.listings = append(d.listings[:i], d.listings[i+1:]...)
			return nil
		}
	}
	return nil
}

func matches(l *RoomListing, q Query) bool {
	if q.RoomID != "" && l.RoomID != q.RoomID {
		return false
	}
	if q.Name != "" && l.Name != q.Name {
		return false
	}
	if q.Locked != nil && l.Locked != *q.Locked {
		return false
	}
	if q.Private != nil && l.Private != *q.Private {
		return false
	}
	if q.Unlisted != nil && l.Unlisted != *q.Unlisted {
		return false
	}
	for k, v := range q.Metadata {
		if l.Metadata[k] != v {
			return false
		}
	}
	return true
}
