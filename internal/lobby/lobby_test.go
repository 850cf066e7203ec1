package lobby

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sablecluster/matchmaker/internal/presence"
)

func TestNotifyAndSubscribeRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := presence.NewLocal()

	var mu sync.Mutex
	var gotRoomID string
	var gotRemoved bool
	received := make(chan struct{}, 1)

	sub, err := Subscribe(ctx, p, func(ctx context.Context, roomID string, removed bool) {
		mu.Lock()
		gotRoomID, gotRemoved = roomID, removed
		mu.Unlock()
		received <- struct{}{}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe(ctx)

	require.NoError(t, Notify(ctx, p, "room-123", false))

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for lobby notification")
	}

	mu.Lock()
	assert.Equal(t, "room-123", gotRoomID)
	assert.False(t, gotRemoved)
	mu.Unlock()
}

func TestNotifyRemovedFlag(t *testing.T) {
	ctx := context.Background()
	p := presence.NewLocal()

	received := make(chan bool, 1)
	sub, err := Subscribe(ctx, p, func(ctx context.Context, roomID string, removed bool) {
		received <- removed
	})
	require.NoError(t, err)
	defer sub.Unsubscribe(ctx)

	require.NoError(t, Notify(ctx, p, "room-456", true))

	select {
	case removed := <-received:
		assert.True(t, removed)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for lobby notification")
	}
}

func TestSubscribeIgnoresMalformedPayload(t *testing.T) {
	ctx := context.Background()
	p := presence.NewLocal()

	called := make(chan struct{}, 1)
	sub, err := Subscribe(ctx, p, func(ctx context.Context, roomID string, removed bool) {
		called <- struct{}{}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe(ctx)

	require.NoError(t, p.Publish(ctx, Channel, []byte("not-a-valid-message")))

	select {
	case <-called:
		t.Fatal("handler should not run on malformed payload")
	case <-time.After(50 * time.Millisecond):
	}
}
