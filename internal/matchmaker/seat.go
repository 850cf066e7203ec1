package matchmaker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/sablecluster/matchmaker/internal/driver"
	"github.com/sablecluster/matchmaker/internal/ipc"
	"github.com/sablecluster/matchmaker/internal/mmerrors"
)

// SeatReservation is the result every public matchmaking operation
// returns except Query and DefineRoomType.
type SeatReservation struct {
	Room      *driver.RoomListing
	SessionID string
}

// reserveSeatFor allocates a session id and asks the room to hold it.
// Any remote-call failure (including a timeout) is treated as "seat
// denied" rather than propagated, so a transient IPC hiccup looks the
// same to the retry loop as a room that's genuinely full.
func (m *MatchMaker) reserveSeatFor(ctx context.Context, listing *driver.RoomListing, options map[string]any) (*SeatReservation, error) {
	sessionID := uuid.NewString()

	raw, err := m.remoteRoomCall(ctx, listing.RoomID, ipc.MethodReserveSeat, "", reserveSeatArgs{
		SessionID: sessionID,
		Options:   options,
	}, m.timeout)

	ok := false
	if err == nil {
		_ = json.Unmarshal(raw, &ok)
	}
	if err != nil || !ok {
		return nil, mmerrors.NewSeatReservationError(listing.RoomID + " is already full.")
	}

	return &SeatReservation{Room: listing, SessionID: sessionID}, nil
}
