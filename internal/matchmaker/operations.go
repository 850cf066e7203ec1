package matchmaker

import (
	"context"
	"errors"

	"github.com/sablecluster/matchmaker/internal/ipc"
	"github.com/sablecluster/matchmaker/internal/mmerrors"
)

// maxSeatReservationAttempts bounds joinOrCreate's retry loop: a
// bounded count with backoff rather than retrying immediately forever.
const maxSeatReservationAttempts = 5

// JoinOrCreate finds an available room matching options, creating one
// if none exists. It makes up to maxSeatReservationAttempts attempts,
// retrying only on SeatReservationError (someone else took the last
// seat first).
func (m *MatchMaker) JoinOrCreate(ctx context.Context, roomName string, options map[string]any) (*SeatReservation, error) {
	var lastErr error
	for attempt := 0; attempt < maxSeatReservationAttempts; attempt++ {
		if attempt > 0 {
			if err := backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		listing, err := m.findOneRoomAvailable(ctx, roomName, options)
		if err != nil {
			return nil, err
		}
		if listing == nil {
			listing, err = m.createRoom(ctx, roomName, options)
			if err != nil {
				return nil, err
			}
		}

		reservation, err := m.reserveSeatFor(ctx, listing, options)
		if err == nil {
			return reservation, nil
		}

		var seatErr *mmerrors.SeatReservationError
		if !errors.As(err, &seatErr) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// Create unconditionally creates a new room and reserves a seat in it.
func (m *MatchMaker) Create(ctx context.Context, roomName string, options map[string]any) (*SeatReservation, error) {
	listing, err := m.createRoom(ctx, roomName, options)
	if err != nil {
		return nil, err
	}
	return m.reserveSeatFor(ctx, listing, options)
}

// Join finds an available room and reserves a seat, failing with
// ERR_MATCHMAKE_INVALID_CRITERIA if none exists. It retries on
// SeatReservationError the same way JoinOrCreate does.
func (m *MatchMaker) Join(ctx context.Context, roomName string, options map[string]any) (*SeatReservation, error) {
	var lastErr error
	for attempt := 0; attempt < maxSeatReservationAttempts; attempt++ {
		if attempt > 0 {
			if err := backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		listing, err := m.findOneRoomAvailable(ctx, roomName, options)
		if err != nil {
			return nil, err
		}
		if listing == nil {
			return nil, mmerrors.NewMatchMakeError(mmerrors.ErrMatchmakeInvalidCriteria,
				"no rooms found matching the given criteria for room name "+roomName)
		}

		reservation, err := m.reserveSeatFor(ctx, listing, options)
		if err == nil {
			return reservation, nil
		}

		var seatErr *mmerrors.SeatReservationError
		if !errors.As(err, &seatErr) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// JoinByID reserves a seat in a specific room, handling the
// reconnection path where options carries a previously issued
// sessionId.
func (m *MatchMaker) JoinByID(ctx context.Context, roomID string, options map[string]any) (*SeatReservation, error) {
	listing, err := m.driver.FindOne(ctx, driverQueryByID(roomID), nil)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, mmerrors.NewMatchMakeError(mmerrors.ErrMatchmakeInvalidRoomID, "room "+roomID+" not found")
	}

	if sessionID, ok := options["sessionId"].(string); ok && sessionID != "" {
		raw, err := m.remoteRoomCall(ctx, roomID, ipc.MethodHasReservedSeat, "", sessionID, m.timeout)
		hasSeat := false
		if err == nil {
			_ = unmarshalBool(raw, &hasSeat)
		}
		if err != nil || !hasSeat {
			return nil, mmerrors.NewMatchMakeError(mmerrors.ErrMatchmakeExpired,
				"session "+sessionID+" has expired for room "+roomID)
		}
		return &SeatReservation{Room: listing, SessionID: sessionID}, nil
	}

	if listing.Locked {
		return nil, mmerrors.NewMatchMakeError(mmerrors.ErrMatchmakeInvalidRoomID, "room "+roomID+" is locked")
	}
	return m.reserveSeatFor(ctx, listing, options)
}
