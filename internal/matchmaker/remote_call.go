package matchmaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sablecluster/matchmaker/internal/ipc"
	"github.com/sablecluster/matchmaker/internal/mmerrors"
	"github.com/sablecluster/matchmaker/internal/room"
)

// reserveSeatArgs is the wire payload for ipc.MethodReserveSeat.
type reserveSeatArgs struct {
	SessionID string         `json:"sessionId"`
	Options   map[string]any `json:"options"`
}

// remoteRoomCall dispatches method to roomID: directly, if the room is
// locally owned, or over IPC otherwise. A local call never waits on
// presence; a remote call is bounded by timeout, and a timeout is
// translated into an ERR_MATCHMAKE_UNHANDLED MatchMakeError rather
// than a bare IPC timeout. Other IPC errors are returned as they are.
func (m *MatchMaker) remoteRoomCall(ctx context.Context, roomID string, method ipc.Method, customName string, args any, timeout time.Duration) (json.RawMessage, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("matchmaker: failed to marshal remote call args: %w", err)
	}

	m.mu.Lock()
	entry, local := m.rooms[roomID]
	m.mu.Unlock()

	if local {
		value, derr := dispatchRoomMethod(ctx, entry.room, method, customName, argsJSON)
		if derr != nil {
			return nil, derr
		}
		if value == nil {
			return nil, nil
		}
		data, merr := json.Marshal(value)
		if merr != nil {
			return nil, fmt.Errorf("matchmaker: failed to marshal local call result: %w", merr)
		}
		return data, nil
	}

	result, ierr := ipc.RequestFromIPC(ctx, m.presence, roomID, roomChannel(roomID), method, customName, args, timeout)
	if ierr != nil {
		if errors.Is(ierr, ipc.ErrTimeout) {
			return nil, mmerrors.NewMatchMakeError(mmerrors.ErrMatchmakeUnhandled, fmt.Sprintf(
				"remote room (%s) timed out, requesting %q with args %v (%dms exceeded)",
				roomID, methodLabel(method, customName), args, timeout.Milliseconds(),
			))
		}
		return nil, ierr
	}
	return result, nil
}

func methodLabel(method ipc.Method, customName string) string {
	if method == ipc.MethodCustom {
		return customName
	}
	return string(method)
}

// dispatchRoomMethod runs method against a room instance. It is used
// both for a same-process remoteRoomCall bypass and as the ipc.Dispatch
// installed on a room's $<roomId> channel, so its args are always
// already-marshaled JSON.
func dispatchRoomMethod(ctx context.Context, r room.Room, method ipc.Method, customName string, args json.RawMessage) (any, error) {
	switch method {
	case ipc.MethodReserveSeat:
		var rsArgs reserveSeatArgs
		if err := json.Unmarshal(args, &rsArgs); err != nil {
			return nil, fmt.Errorf("matchmaker: invalid reserveSeat args: %w", err)
		}
		return r.ReserveSeat(ctx, rsArgs.SessionID, rsArgs.Options)
	case ipc.MethodHasReservedSeat:
		var sessionID string
		if err := json.Unmarshal(args, &sessionID); err != nil {
			return nil, fmt.Errorf("matchmaker: invalid hasReservedSeat args: %w", err)
		}
		return r.HasReservedSeat(ctx, sessionID)
	case ipc.MethodGetRoomID:
		return r.RoomID(), nil
	case ipc.MethodDisconnect:
		return nil, r.Disconnect(ctx)
	default:
		name := customName
		if method != ipc.MethodCustom && method != "" {
			name = string(method)
		}
		return r.Call(ctx, name, args)
	}
}
