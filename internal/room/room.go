// Package room defines the Room contract the matchmaker consumes
// and a reusable BasicRoom implementation of it.
package room

import (
	"context"
	"encoding/json"

	"github.com/sablecluster/matchmaker/internal/presence"
)

// Client is the minimal per-seat identity a room hands to join/leave
// listeners; external transports attach richer data out of scope here.
type Client struct {
	SessionID string
}

// Room is the contract the matchmaker assigns roomId/roomName/presence
// to and drives through its state machine. Event delivery is an
// explicit typed listener table rather than dynamic string-keyed
// emission: the matchmaker registers its callbacks with
// OnLock/OnUnlock/... instead of subscribing to a generic event bus.
type Room interface {
	SetRoomID(roomID string)
	RoomID() string
	SetRoomName(name string)
	RoomName() string
	SetPresence(p presence.Presence)
	SetMaxClients(n int)
	MaxClients() int

	// OnCreate is invoked once, with the merged create + handler default
	// options, right after the matchmaker constructs the room.
	OnCreate(ctx context.Context, options map[string]any) error

	// ReserveSeat attempts to book sessionID; it returns false (not an
	// error) when the room is full or locked.
	ReserveSeat(ctx context.Context, sessionID string, options map[string]any) (bool, error)
	HasReservedSeat(ctx context.Context, sessionID string) (bool, error)

	// Disconnect tears the room down: it fires the dispose listeners
	// (which run the matchmaker's dispose path), then the disconnect
	// listeners. Called by graceful shutdown and by a remote
	// ipc.MethodDisconnect call.
	Disconnect(ctx context.Context) error

	// Call dispatches an arbitrary room-defined method reached through
	// remoteRoomCall. Rooms enforce their own whitelist and return an
	// error for anything not explicitly exposed.
	Call(ctx context.Context, method string, args json.RawMessage) (any, error)

	// Event registration, replacing dynamic emission.
	OnLock(fn func())
	OnUnlock(fn func())
	OnJoin(fn func(c Client))
	OnLeave(fn func(c Client))
	OnDispose(fn func())
	OnDisconnect(fn func())
}

// Factory constructs a new, empty Room instance for a given handler.
type Factory func() Room
