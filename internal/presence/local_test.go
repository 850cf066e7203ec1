package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetsAddRemoveMembers(t *testing.T) {
	ctx := context.Background()
	p := NewLocal()

	require.NoError(t, p.SAdd(ctx, "nodes", "a"))
	require.NoError(t, p.SAdd(ctx, "nodes", "b"))

	members, err := p.SMembers(ctx, "nodes")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, p.SRem(ctx, "nodes", "a"))
	members, err = p.SMembers(ctx, "nodes")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}

func TestHashesSetGetIncrDel(t *testing.T) {
	ctx := context.Background()
	p := NewLocal()

	require.NoError(t, p.HSet(ctx, "roomcount", "p1", "5"))
	v, ok, err := p.HGet(ctx, "roomcount", "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "5", v)

	n, err := p.HIncrBy(ctx, "roomcount", "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	n, err = p.HIncrBy(ctx, "roomcount", "p2", -1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)

	all, err := p.HGetAll(ctx, "roomcount")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"p1": "6", "p2": "-1"}, all)

	require.NoError(t, p.HDel(ctx, "roomcount", "p1"))
	_, ok, err = p.HGet(ctx, "roomcount", "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountersIncrDecrDel(t *testing.T) {
	ctx := context.Background()
	p := NewLocal()

	n, err := p.Incr(ctx, "c:chat")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = p.Incr(ctx, "c:chat")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = p.Decr(ctx, "c:chat")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, p.Del(ctx, "c:chat"))
	n, err = p.Incr(ctx, "c:chat")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "counter should restart from zero after Del")
}

func TestPublishSubscribeDeliversPayload(t *testing.T) {
	ctx := context.Background()
	p := NewLocal()

	received := make(chan []byte, 1)
	sub, err := p.Subscribe(ctx, "chan1", func(ctx context.Context, ch string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)
	defer sub.Unsubscribe(ctx)

	require.NoError(t, p.Publish(ctx, "chan1", []byte("hello")))

	select {
	case payload := <-received:
		assert.Equal(t, "hello", string(payload))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestPublishToUnsubscribedChannelIsDropped(t *testing.T) {
	ctx := context.Background()
	p := NewLocal()
	require.NoError(t, p.Publish(ctx, "nobody-listening", []byte("x")))
}

func TestUnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := NewLocal()

	received := make(chan []byte, 1)
	sub, err := p.Subscribe(ctx, "chan1", func(ctx context.Context, ch string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe(ctx))
	require.NoError(t, sub.Unsubscribe(ctx), "unsubscribe must be safe to call twice")

	require.NoError(t, p.Publish(ctx, "chan1", []byte("late")))
	select {
	case <-received:
		t.Fatal("unsubscribed handler should not receive further messages")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	ctx := context.Background()
	p := NewLocal()

	recvA := make(chan []byte, 1)
	recvB := make(chan []byte, 1)
	subA, err := p.Subscribe(ctx, "chan1", func(ctx context.Context, ch string, payload []byte) { recvA <- payload })
	require.NoError(t, err)
	defer subA.Unsubscribe(ctx)
	subB, err := p.Subscribe(ctx, "chan1", func(ctx context.Context, ch string, payload []byte) { recvB <- payload })
	require.NoError(t, err)
	defer subB.Unsubscribe(ctx)

	require.NoError(t, p.Publish(ctx, "chan1", []byte("fanout")))

	for _, ch := range []chan []byte{recvA, recvB} {
		select {
		case payload := <-ch:
			assert.Equal(t, "fanout", string(payload))
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out delivery")
		}
	}
}
