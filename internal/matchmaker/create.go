package matchmaker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/sablecluster/matchmaker/internal/driver"
	"github.com/sablecluster/matchmaker/internal/ipc"
	"github.com/sablecluster/matchmaker/internal/metrics"
	"github.com/sablecluster/matchmaker/internal/mmerrors"
)

func unmarshalListing(raw json.RawMessage, out *driver.RoomListing) error {
	return json.Unmarshal(raw, out)
}

// createRoom picks a target process by load and either creates the
// room locally or delegates to the target over IPC, falling back to a
// local create on any failure so a slow peer never blocks the client.
func (m *MatchMaker) createRoom(ctx context.Context, roomName string, options map[string]any) (*driver.RoomListing, error) {
	target, err := m.pickTarget(ctx)
	if err != nil {
		return nil, err
	}

	if target == m.processID {
		return m.handleCreateRoom(ctx, roomName, options)
	}

	raw, err := ipc.RequestCreateRoom(ctx, m.presence, target, "p:"+target, ipc.CreateRoomRequest{
		RoomName:      roomName,
		ClientOptions: options,
	}, m.timeout)
	if err != nil {
		m.logger.Warn(ctx, "matchmaker: remote create on %s failed, falling back to local: %v", target, err)
		return m.handleCreateRoom(ctx, roomName, options)
	}

	var listing driver.RoomListing
	if err := unmarshalListing(raw, &listing); err != nil {
		m.logger.Warn(ctx, "matchmaker: remote create on %s returned unreadable listing, falling back to local: %v", target, err)
		return m.handleCreateRoom(ctx, roomName, options)
	}
	return &listing, nil
}

// pickTarget reads the cluster-wide room-count hash and returns the
// processId with the strictly smallest count, ties broken by stable
// process-id ordering. An empty hash (nobody has registered a count
// yet) targets this process.
func (m *MatchMaker) pickTarget(ctx context.Context) (string, error) {
	counts, err := m.presence.HGetAll(ctx, RoomCountHash)
	if err != nil {
		return "", fmt.Errorf("matchmaker: failed to read room-count: %w", err)
	}
	if len(counts) == 0 {
		return m.processID, nil
	}

	processIDs := make([]string, 0, len(counts))
	for id := range counts {
		processIDs = append(processIDs, id)
	}
	sort.Strings(processIDs)

	best := processIDs[0]
	bestCount := parseCount(counts[best])
	for _, id := range processIDs[1:] {
		c := parseCount(counts[id])
		if c < bestCount {
			best = id
			bestCount = c
		}
	}
	return best, nil
}

func parseCount(s string) int64 {
	var n int64
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

// handleCreateRoom instantiates roomName locally: this process becomes
// its owner.
func (m *MatchMaker) handleCreateRoom(ctx context.Context, roomName string, options map[string]any) (*driver.RoomListing, error) {
	h, err := m.registry.Get(roomName)
	if err != nil {
		return nil, mmerrors.NewMatchMakeError(mmerrors.ErrMatchmakeNoHandler, err.Error())
	}

	r := h.Factory()
	roomID := uuid.NewString()
	r.SetRoomID(roomID)
	r.SetRoomName(roomName)
	r.SetPresence(m.presence)

	filterOptions := h.GetFilterOptions(options)
	listing, err := m.driver.CreateInstance(ctx, driver.RoomListing{
		RoomID:    roomID,
		Name:      roomName,
		ProcessID: m.processID,
		Metadata:  filterOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("matchmaker: failed to create listing for room %s: %w", roomID, err)
	}

	if err := r.OnCreate(ctx, h.MergeOptions(options)); err != nil {
		return nil, mmerrors.NewMatchMakeError(mmerrors.ErrMatchmakeUnhandled, err.Error())
	}
	if _, err := m.presence.HIncrBy(ctx, RoomCountHash, m.processID, 1); err != nil {
		m.logger.Warn(ctx, "matchmaker: failed to increment room-count after creating %s: %v", roomID, err)
	}

	listing.MaxClients = r.MaxClients()
	m.bindRoomEvents(r, listing, h)

	if err := m.createRoomReferences(ctx, r, listing, h, true); err != nil {
		return nil, fmt.Errorf("matchmaker: failed to register room %s: %w", roomID, err)
	}

	if err := listing.Save(ctx); err != nil {
		return nil, fmt.Errorf("matchmaker: failed to persist listing for room %s: %w", roomID, err)
	}
	h.EmitCreate(roomID)
	m.notifyLobby(ctx, listing, false)
	metrics.RoomsCreated.WithLabelValues(roomName).Inc()
	metrics.RoomCount.Inc()

	return listing, nil
}
