package matchmaker

import (
	"context"
	"encoding/json"

	"github.com/sablecluster/matchmaker/internal/driver"
	"github.com/sablecluster/matchmaker/internal/handler"
	"github.com/sablecluster/matchmaker/internal/ipc"
	"github.com/sablecluster/matchmaker/internal/metrics"
	"github.com/sablecluster/matchmaker/internal/presence"
	"github.com/sablecluster/matchmaker/internal/room"
)

// bindRoomEvents wires a freshly created room's typed listeners to the
// matchmaker's own state-machine transitions and to the handler's
// observers.
func (m *MatchMaker) bindRoomEvents(r room.Room, listing *driver.RoomListing, h *handler.Handler) {
	roomID := listing.RoomID

	r.OnLock(func() {
		ctx := context.Background()
		listing.Locked = true
		if err := listing.Save(ctx); err != nil {
			m.logger.Warn(ctx, "matchmaker: failed to persist locked listing for %s: %v", roomID, err)
		}
		m.lockRoom(ctx, roomID)
		h.EmitLock(roomID)
	})
	r.OnUnlock(func() {
		ctx := context.Background()
		listing.Locked = false
		if err := listing.Save(ctx); err != nil {
			m.logger.Warn(ctx, "matchmaker: failed to persist unlocked listing for %s: %v", roomID, err)
		}
		m.unlockRoom(ctx, r, listing, h)
		h.EmitUnlock(roomID)
	})
	r.OnJoin(func(c room.Client) {
		h.EmitJoin(roomID, c)
	})
	r.OnLeave(func(c room.Client) {
		h.EmitLeave(roomID, c)
	})
	r.OnDispose(func() {
		m.disposeRoom(context.Background(), roomID, listing, h)
	})
	r.OnDisconnect(func() {
		// the room tears down its own listener tables; nothing further
		// to do on the matchmaker side once dispose has already run.
	})
}

// createRoomReferences places room in the local table and subscribes
// its $<roomId> inbox so remote processes can reach it over IPC. init
// distinguishes the first registration (right after handleCreateRoom)
// from re-registration after an unlock.
func (m *MatchMaker) createRoomReferences(ctx context.Context, r room.Room, listing *driver.RoomListing, h *handler.Handler, init bool) error {
	m.mu.Lock()
	entry, exists := m.rooms[listing.RoomID]
	if !exists {
		entry = &roomEntry{room: r, listing: listing, handler: h}
		m.rooms[listing.RoomID] = entry
	}
	hasSub := entry.sub != nil
	m.mu.Unlock()

	if hasSub {
		return nil
	}

	sub, err := ipc.SubscribeIPC(ctx, m.presence, listing.RoomID, roomChannel(listing.RoomID), func(ctx context.Context, method ipc.Method, customName string, args json.RawMessage) (any, error) {
		return dispatchRoomMethod(ctx, r, method, customName, args)
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	entry.sub = sub
	m.mu.Unlock()
	return nil
}

// clearRoomReferences unsubscribes a room's inbox without removing its
// local table entry, used both by lockRoom (locked rooms stay in the
// table but unreachable over IPC) and by disposeRoom (which follows up
// by removing the entry entirely).
func (m *MatchMaker) clearRoomReferences(ctx context.Context, roomID string) {
	m.mu.Lock()
	entry, ok := m.rooms[roomID]
	var sub presence.Subscription
	if ok && entry.sub != nil {
		sub = entry.sub
		entry.sub = nil
	}
	m.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(ctx); err != nil {
			m.logger.Warn(ctx, "matchmaker: failed to unsubscribe room %s: %v", roomID, err)
		}
	}
}

// lockRoom clears the room's IPC subscription so no further seat can
// be reserved remotely; the listing's locked flag (set and saved by the
// lock listener in bindRoomEvents before this runs) keeps it out of
// findOneRoomAvailable.
func (m *MatchMaker) lockRoom(ctx context.Context, roomID string) {
	m.clearRoomReferences(ctx, roomID)
}

// unlockRoom reinstates the room's local table entry and IPC
// subscription.
func (m *MatchMaker) unlockRoom(ctx context.Context, r room.Room, listing *driver.RoomListing, h *handler.Handler) {
	if err := m.createRoomReferences(ctx, r, listing, h, false); err != nil {
		m.logger.Warn(ctx, "matchmaker: failed to re-subscribe unlocked room %s: %v", listing.RoomID, err)
	}
}

// disposeRoom runs the full teardown sequence: room-count decrement
// (skipped during graceful shutdown, since the whole hash entry is
// already gone), listing removal, handler notification, concurrency
// key cleanup, and local table removal.
func (m *MatchMaker) disposeRoom(ctx context.Context, roomID string, listing *driver.RoomListing, h *handler.Handler) {
	m.mu.Lock()
	shuttingDown := m.shuttingDown
	m.mu.Unlock()

	if !shuttingDown {
		if _, err := m.presence.HIncrBy(ctx, RoomCountHash, m.processID, -1); err != nil {
			m.logger.Warn(ctx, "matchmaker: failed to decrement room-count for %s: %v", roomID, err)
		}
	}

	if err := listing.Remove(ctx); err != nil {
		m.logger.Warn(ctx, "matchmaker: failed to remove listing for %s: %v", roomID, err)
	}
	h.EmitDispose(roomID)
	m.notifyLobby(ctx, listing, true)
	metrics.RoomsDisposed.WithLabelValues(listing.Name).Inc()
	metrics.RoomCount.Dec()

	if err := m.presence.Del(ctx, concurrencyKey(listing.Name)); err != nil {
		m.logger.Warn(ctx, "matchmaker: failed to delete concurrency key for %s: %v", listing.Name, err)
	}

	m.clearRoomReferences(ctx, roomID)

	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()
}
