package matchmaker

import (
	"context"

	"github.com/sablecluster/matchmaker/internal/driver"
	"github.com/sablecluster/matchmaker/internal/handler"
)

// DefineRoomType registers a room type and schedules a stale-room
// sweep for it. The sweep runs in the background so callers don't
// block define on a cluster-wide scan.
func (m *MatchMaker) DefineRoomType(ctx context.Context, h *handler.Handler) *handler.Handler {
	m.registry.DefineRoomType(h)
	go func() {
		cleanupCtx := context.Background()
		if err := m.cleanupStaleRooms(cleanupCtx, h.Name); err != nil {
			m.logger.Warn(cleanupCtx, "matchmaker: stale-room cleanup for %s failed: %v", h.Name, err)
		}
	}()
	return h
}

// RemoveRoomType unregisters name; rooms already created under it keep
// running until disposed.
func (m *MatchMaker) RemoveRoomType(name string) {
	m.registry.RemoveRoomType(name)
}

func (m *MatchMaker) HasHandler(name string) bool {
	return m.registry.HasHandler(name)
}

// Query passes conditions straight through to the driver.
func (m *MatchMaker) Query(ctx context.Context, q driver.Query, sort driver.SortFunc) ([]*driver.RoomListing, error) {
	return m.driver.Find(ctx, q, sort)
}

// driverSort adapts a handler's metadata comparator into a driver
// SortFunc, the in-place sort the driver contract expects.
func driverSort(cmp handler.SortFunc) driver.SortFunc {
	if cmp == nil {
		return nil
	}
	return func(listings []*driver.RoomListing) {
		insertionSortListings(listings, cmp)
	}
}

// insertionSortListings is a small stable sort; listing counts per
// room name are expected to stay in the tens, not the thousands.
func insertionSortListings(listings []*driver.RoomListing, less handler.SortFunc) {
	for i := 1; i < len(listings); i++ {
		j := i
		for j > 0 && less(listings[j].Metadata, listings[j-1].Metadata) {
			listings[j], listings[j-1] = listings[j-1], listings[j]
			j--
		}
	}
}
