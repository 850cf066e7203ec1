package matchmaker

import (
	"context"
	"time"

	"github.com/sablecluster/matchmaker/internal/driver"
	"github.com/sablecluster/matchmaker/internal/metrics"
)

func concurrencyKey(roomName string) string { return "c:" + roomName }

// awaitRoomAvailable runs cb through the concurrency gate: increment
// the per-name counter, stagger the start by
// min(concurrency*100ms, timeout) so a burst of near-simultaneous
// joiners observe each other's room creations, then always decrement
// on the way out.
func (m *MatchMaker) awaitRoomAvailable(ctx context.Context, roomName string, cb func(ctx context.Context) (*driver.RoomListing, error)) (*driver.RoomListing, error) {
	key := concurrencyKey(roomName)

	count, err := m.presence.Incr(ctx, key)
	if err != nil {
		return nil, err
	}
	concurrency := count - 1

	defer func() {
		if _, derr := m.presence.Decr(ctx, key); derr != nil {
			m.logger.Warn(ctx, "matchmaker: failed to decrement concurrency gate for %s: %v", roomName, derr)
		}
	}()

	delay := time.Duration(concurrency) * 100 * time.Millisecond
	if delay > m.timeout {
		delay = m.timeout
	}
	metrics.ConcurrencyGateWaitMillis.Observe(float64(delay.Milliseconds()))
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return cb(ctx)
}

// findOneRoomAvailable queries the driver for an unlocked, non-private
// room matching the handler's filter fields over options, returning
// the first match (or nil, nil) — never a locked or private listing.
func (m *MatchMaker) findOneRoomAvailable(ctx context.Context, roomName string, options map[string]any) (*driver.RoomListing, error) {
	h, err := m.registry.Get(roomName)
	if err != nil {
		return nil, err
	}

	return m.awaitRoomAvailable(ctx, roomName, func(ctx context.Context) (*driver.RoomListing, error) {
		notLocked, notPrivate := false, false
		q := driver.Query{
			Name:     roomName,
			Locked:   &notLocked,
			Private:  &notPrivate,
			Metadata: h.GetFilterOptions(options),
		}
		listings, err := m.driver.Find(ctx, q, driverSort(h.Sort))
		if err != nil {
			return nil, err
		}
		if len(listings) == 0 {
			return nil, nil
		}
		return listings[0], nil
	})
}
