// Package matchmaker is the distributed room broker: it load-balances
// room creation across processes, brokers seat reservations, and
// drives each room through its lock/unlock/dispose lifecycle.
//
// Generalized from a single-process, register/unregister-under-one-
// mutex room roster to a cluster of cooperating processes coordinating
// through presence and IPC. State that might otherwise live as package
// globals (handlers, rooms, processId, presence, driver,
// isGracefullyShuttingDown) lives on this struct instead, with an
// explicit New/Setup/Shutdown lifecycle.
package matchmaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sablecluster/matchmaker/internal/discovery"
	"github.com/sablecluster/matchmaker/internal/driver"
	"github.com/sablecluster/matchmaker/internal/handler"
	"github.com/sablecluster/matchmaker/internal/ipc"
	"github.com/sablecluster/matchmaker/internal/lobby"
	"github.com/sablecluster/matchmaker/internal/logging"
	"github.com/sablecluster/matchmaker/internal/presence"
	"github.com/sablecluster/matchmaker/internal/room"
)

// RoomCountHash is the cluster-wide hash of processId -> owned room
// count, read by pickTarget for load-balanced placement. Nothing in
// this package checks it against the rooms each process owns.
const RoomCountHash = "roomcount"

// roomEntry is one locally-owned room: the live instance plus its IPC
// subscription on $<roomId>. A locked room has sub == nil: clearing
// the IPC subscription is what keeps nobody from reserving a seat in
// it remotely.
type roomEntry struct {
	room     room.Room
	listing  *driver.RoomListing
	handler  *handler.Handler
	sub      presence.Subscription
}

// MatchMaker is the per-process broker. Construct with New, bring
// online with Setup, tear down with Shutdown. All exported methods are
// safe for concurrent use.
type MatchMaker struct {
	processID string
	presence  presence.Presence
	driver    driver.Driver
	registry  *handler.Registry
	logger    *logging.Logger
	timeout   time.Duration

	mu           sync.Mutex
	rooms        map[string]*roomEntry
	shuttingDown bool

	processSub presence.Subscription
}

// New constructs a MatchMaker. processID should be stable across
// restarts where possible (used as the node's cluster identity); an
// empty value generates a fresh uuid.
func New(processID string, p presence.Presence, d driver.Driver, logger *logging.Logger, timeout time.Duration) *MatchMaker {
	if processID == "" {
		processID = uuid.NewString()
	}
	return &MatchMaker{
		processID: processID,
		presence:  p,
		driver:    d,
		registry:  handler.NewRegistry(),
		logger:    logger,
		timeout:   timeout,
		rooms:     make(map[string]*roomEntry),
	}
}

func (m *MatchMaker) ProcessID() string { return m.processID }

// processChannel is this node's inbox: peers' createRoom calls address
// their remote create requests to it.
func (m *MatchMaker) processChannel() string {
	return "p:" + m.processID
}

func roomChannel(roomID string) string {
	return "$" + roomID
}

// Setup subscribes the process inbox (dispatching inbound create-room
// requests to handleCreateRoom) so peers can route load-balanced
// placement here.
func (m *MatchMaker) Setup(ctx context.Context) error {
	sub, err := ipc.SubscribeCreateRoom(ctx, m.presence, m.processID, m.processChannel(), func(ctx context.Context, req ipc.CreateRoomRequest) (any, error) {
		return m.handleCreateRoom(ctx, req.RoomName, req.ClientOptions)
	})
	if err != nil {
		return fmt.Errorf("matchmaker: failed to subscribe process inbox: %w", err)
	}
	m.processSub = sub
	return nil
}

// Shutdown is graceful and idempotent: the second call fails (spec
// §4.14, §8 round-trip property). It stops accepting new placements,
// deregisters this process's room-count entry, and disconnects every
// locally-owned room, waiting for all of them to settle.
func (m *MatchMaker) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		return fmt.Errorf("matchmaker: already shutting down")
	}
	m.shuttingDown = true
	entries := make([]*roomEntry, 0, len(m.rooms))
	for _, e := range m.rooms {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	if err := m.presence.HDel(ctx, RoomCountHash, m.processID); err != nil {
		m.logger.Warn(ctx, "matchmaker: failed to clear room-count entry on shutdown: %v", err)
	}
	if m.processSub != nil {
		if err := m.processSub.Unsubscribe(ctx); err != nil {
			m.logger.Warn(ctx, "matchmaker: failed to unsubscribe process inbox on shutdown: %v", err)
		}
	}

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *roomEntry) {
			defer wg.Done()
			if err := e.room.Disconnect(ctx); err != nil {
				m.logger.Warn(ctx, "matchmaker: room %s disconnect failed during shutdown: %v", e.room.RoomID(), err)
			}
		}(e)
	}
	wg.Wait()
	return nil
}

// RegisterNode wraps discovery.RegisterNode with this MatchMaker's
// processID, for callers that want one-stop node bring-up.
func (m *MatchMaker) RegisterNode(ctx context.Context, address, port string) error {
	return discovery.RegisterNode(ctx, m.presence, discovery.Node{ProcessID: m.processID, Address: address, Port: port})
}

// UnregisterNode is the symmetric teardown call for graceful shutdown.
func (m *MatchMaker) UnregisterNode(ctx context.Context, address, port string) error {
	return discovery.UnregisterNode(ctx, m.presence, discovery.Node{ProcessID: m.processID, Address: address, Port: port})
}

// LocalRoomInfo is a snapshot of one locally-owned room, exposed for
// the admin surface's debug listing.
type LocalRoomInfo struct {
	RoomID   string
	RoomName string
	Locked   bool
}

// LocalRooms snapshots every room this process currently owns.
func (m *MatchMaker) LocalRooms() []LocalRoomInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]LocalRoomInfo, 0, len(m.rooms))
	for roomID, e := range m.rooms {
		out = append(out, LocalRoomInfo{
			RoomID:   roomID,
			RoomName: e.handler.Name,
			Locked:   e.listing.Locked,
		})
	}
	return out
}

func (m *MatchMaker) notifyLobby(ctx context.Context, listing *driver.RoomListing, removed bool) {
	if listing.Unlisted {
		return
	}
	if err := lobby.Notify(ctx, m.presence, listing.RoomID, removed); err != nil {
		m.logger.Warn(ctx, "matchmaker: lobby notify failed for room %s: %v", listing.RoomID, err)
	}
}
