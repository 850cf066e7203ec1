package matchmaker

import (
	"context"
	"time"

	"github.com/sablecluster/matchmaker/internal/driver"
	"github.com/sablecluster/matchmaker/internal/ipc"
)

// staleProbeTimeout bounds the liveness probe cleanupStaleRooms issues
// per cached listing; short because a live owner answers immediately
// and we'd rather wrongly reap a slow-but-alive room than stall a
// define call on every dead one.
const staleProbeTimeout = 500 * time.Millisecond

// cleanupStaleRooms runs once per DefineRoomType call: listings left
// over from an ungraceful shutdown point at dead owners, so each one
// is probed with a short getRoomId call and reaped on failure (spec
// §4.12). Probe errors are swallowed; a room that doesn't answer is
// assumed stale.
func (m *MatchMaker) cleanupStaleRooms(ctx context.Context, roomName string) error {
	listings, err := m.driver.Find(ctx, driver.Query{Name: roomName}, nil)
	if err != nil {
		return err
	}

	if err := m.presence.Del(ctx, concurrencyKey(roomName)); err != nil {
		m.logger.Warn(ctx, "matchmaker: failed to clear concurrency key for %s during cleanup: %v", roomName, err)
	}

	for _, listing := range listings {
		if _, err := m.remoteRoomCall(ctx, listing.RoomID, ipc.MethodGetRoomID, "", nil, staleProbeTimeout); err != nil {
			if rerr := listing.Remove(ctx); rerr != nil {
				m.logger.Warn(ctx, "matchmaker: failed to remove stale listing %s: %v", listing.RoomID, rerr)
				continue
			}
			m.clearRoomReferences(ctx, listing.RoomID)
			m.notifyLobby(ctx, listing, true)
		}
	}
	return nil
}
