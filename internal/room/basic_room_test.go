package room

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveSeatUpToCapacity(t *testing.T) {
	r := &BasicRoom{}
	r.SetMaxClients(2)

	ok, err := r.ReserveSeat(context.Background(), "s1", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ReserveSeat(context.Background(), "s2", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ReserveSeat(context.Background(), "s3", nil)
	require.NoError(t, err)
	assert.False(t, ok, "third seat should be rejected once at capacity")
}

func TestReserveSeatLocksRoomAtCapacity(t *testing.T) {
	r := &BasicRoom{}
	r.SetMaxClients(1)

	var locked bool
	r.OnLock(func() { locked = true })

	ok, err := r.ReserveSeat(context.Background(), "s1", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, locked, "room should auto-lock once full")
}

func TestReserveSeatRejectedWhenLocked(t *testing.T) {
	r := &BasicRoom{}
	r.SetMaxClients(10)
	r.Lock()

	ok, err := r.ReserveSeat(context.Background(), "s1", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasReservedSeat(t *testing.T) {
	r := &BasicRoom{}
	r.SetMaxClients(10)
	_, err := r.ReserveSeat(context.Background(), "s1", nil)
	require.NoError(t, err)

	ok, err := r.HasReservedSeat(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.HasReservedSeat(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockUnlockAreIdempotentAndEmit(t *testing.T) {
	r := &BasicRoom{}
	var lockCount, unlockCount int
	r.OnLock(func() { lockCount++ })
	r.OnUnlock(func() { unlockCount++ })

	r.Lock()
	r.Lock() // no-op, already locked
	assert.Equal(t, 1, lockCount)

	r.Unlock()
	r.Unlock() // no-op, already unlocked
	assert.Equal(t, 1, unlockCount)
}

func TestLeaveFreesSeatAndEmits(t *testing.T) {
	r := &BasicRoom{}
	r.SetMaxClients(10)
	_, err := r.ReserveSeat(context.Background(), "s1", nil)
	require.NoError(t, err)

	var left string
	r.OnLeave(func(c Client) { left = c.SessionID })

	r.Leave("s1")
	assert.Equal(t, "s1", left)

	ok, err := r.HasReservedSeat(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCallDispatchesWhitelistedMethod(t *testing.T) {
	r := &BasicRoom{
		Methods: map[string]func(ctx context.Context, args json.RawMessage) (any, error){
			"ping": func(ctx context.Context, args json.RawMessage) (any, error) {
				return "pong", nil
			},
		},
	}
	result, err := r.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", result)
}

func TestCallRejectsUnlistedMethod(t *testing.T) {
	r := &BasicRoom{}
	_, err := r.Call(context.Background(), "nope", nil)
	assert.Error(t, err)
}

func TestDisconnectEmitsDisposeThenDisconnectListeners(t *testing.T) {
	r := &BasicRoom{}
	var order []string
	r.OnDispose(func() { order = append(order, "dispose") })
	r.OnDisconnect(func() { order = append(order, "disconnect") })

	require.NoError(t, r.Disconnect(context.Background()))
	assert.Equal(t, []string{"dispose", "disconnect"}, order)
}
