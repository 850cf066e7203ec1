package matchmaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sablecluster/matchmaker/internal/driver"
	"github.com/sablecluster/matchmaker/internal/handler"
	"github.com/sablecluster/matchmaker/internal/logging"
	"github.com/sablecluster/matchmaker/internal/presence"
	"github.com/sablecluster/matchmaker/internal/room"
)

// chatRoom is a minimal BasicRoom wrapper recording ReserveSeat calls,
// exercised the way a real room would record its own join logic.
type chatRoom struct {
	*room.BasicRoom
	mu       sync.Mutex
	reserved []string
}

func newChatRoom(maxClients int) room.Factory {
	return func() room.Room {
		r := &chatRoom{BasicRoom: &room.BasicRoom{}}
		r.SetMaxClients(maxClients)
		return r
	}
}

func (r *chatRoom) ReserveSeat(ctx context.Context, sessionID string, options map[string]any) (bool, error) {
	ok, err := r.BasicRoom.ReserveSeat(ctx, sessionID, options)
	if ok {
		r.mu.Lock()
		r.reserved = append(r.reserved, sessionID)
		r.mu.Unlock()
	}
	return ok, err
}

func newTestMatchMaker(processID string, p presence.Presence, d driver.Driver) *MatchMaker {
	logger := logging.New("error")
	return New(processID, p, d, logger, 200*time.Millisecond)
}

func newChatHandler(maxClients int) *handler.Handler {
	return &handler.Handler{
		Name:    "chat",
		Factory: newChatRoom(maxClients),
	}
}

// Scenario 1: single-process joinOrCreate on an empty cluster.
func TestJoinOrCreateSingleProcessEmpty(t *testing.T) {
	ctx := context.Background()
	p := presence.NewLocal()
	d := driver.NewLocal()

	mm := newTestMatchMaker("p1", p, d)
	require.NoError(t, mm.Setup(ctx))
	mm.DefineRoomType(ctx, newChatHandler(10))

	reservation, err := mm.JoinOrCreate(ctx, "chat", map[string]any{})
	require.NoError(t, err)
	require.NotNil(t, reservation)
	assert.NotEmpty(t, reservation.Room.RoomID)
	assert.NotEmpty(t, reservation.SessionID)
	assert.Equal(t, "chat", reservation.Room.Name)

	counts, err := p.HGetAll(ctx, RoomCountHash)
	require.NoError(t, err)
	assert.Equal(t, "1", counts["p1"])
}

// Scenario 2: 5 concurrent joinOrCreate calls on one process coalesce
// into a single room with 5 distinct session ids, and the concurrency
// counter returns to 0.
func TestJoinOrCreateConcurrentJoinersCoalesce(t *testing.T) {
	ctx := context.Background()
	p := presence.NewLocal()
	d := driver.NewLocal()

	mm := newTestMatchMaker("p1", p, d)
	require.NoError(t, mm.Setup(ctx))
	mm.DefineRoomType(ctx, newChatHandler(10))
	time.Sleep(10 * time.Millisecond) // let the stale-room sweep finish

	const joiners = 5
	results := make([]*SeatReservation, joiners)
	errs := make([]error, joiners)

	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = mm.JoinOrCreate(ctx, "chat", map[string]any{})
		}(i)
	}
	wg.Wait()

	roomIDs := map[string]struct{}{}
	sessionIDs := map[string]struct{}{}
	for i := 0; i < joiners; i++ {
		require.NoError(t, errs[i])
		roomIDs[results[i].Room.RoomID] = struct{}{}
		sessionIDs[results[i].SessionID] = struct{}{}
	}
	assert.Len(t, roomIDs, 1, "expected exactly one room to be created")
	assert.Len(t, sessionIDs, joiners, "expected one distinct session per joiner")

	counter, err := p.Incr(ctx, concurrencyKey("chat"))
	require.NoError(t, err)
	_, err = p.Decr(ctx, concurrencyKey("chat"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter, "concurrency counter should have returned to 0 before this probe")
}

// Scenario 3: load balancing routes creation to the least-loaded peer.
func TestCreateLoadBalancesAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	p := presence.NewLocal()
	d := driver.NewLocal()

	mmA := newTestMatchMaker("A", p, d)
	mmB := newTestMatchMaker("B", p, d)
	require.NoError(t, mmA.Setup(ctx))
	require.NoError(t, mmB.Setup(ctx))
	mmA.DefineRoomType(ctx, newChatHandler(10))
	mmB.DefineRoomType(ctx, newChatHandler(10))
	time.Sleep(10 * time.Millisecond)

	_, err := p.HIncrBy(ctx, RoomCountHash, "A", 3)
	require.NoError(t, err)
	_, err = p.HIncrBy(ctx, RoomCountHash, "B", 1)
	require.NoError(t, err)

	reservation, err := mmA.Create(ctx, "chat", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "B", reservation.Room.ProcessID)

	counts, err := p.HGetAll(ctx, RoomCountHash)
	require.NoError(t, err)
	assert.Equal(t, "2", counts["B"])
	assert.Equal(t, "3", counts["A"])
}

// Scenario 4: if the target peer never responds, create falls back to
// a local room rather than failing the client.
func TestCreateFallsBackLocallyOnRemoteTimeout(t *testing.T) {
	ctx := context.Background()
	p := presence.NewLocal()
	d := driver.NewLocal()

	mmA := newTestMatchMaker("A", p, d)
	require.NoError(t, mmA.Setup(ctx))
	mmA.DefineRoomType(ctx, newChatHandler(10))
	time.Sleep(10 * time.Millisecond)

	// B is registered in room-count but never actually comes online to
	// answer IPC requests on p:B.
	_, err := p.HIncrBy(ctx, RoomCountHash, "A", 3)
	require.NoError(t, err)
	_, err = p.HIncrBy(ctx, RoomCountHash, "B", 1)
	require.NoError(t, err)

	reservation, err := mmA.Create(ctx, "chat", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "A", reservation.Room.ProcessID)

	counts, err := p.HGetAll(ctx, RoomCountHash)
	require.NoError(t, err)
	assert.Equal(t, "4", counts["A"])
}

// Scenario 5: reconnection via joinById with a previously reserved
// session id, served by a room owned by a different process.
func TestJoinByIDReconnection(t *testing.T) {
	ctx := context.Background()
	p := presence.NewLocal()
	d := driver.NewLocal()

	mmB := newTestMatchMaker("B", p, d)
	require.NoError(t, mmB.Setup(ctx))
	mmB.DefineRoomType(ctx, newChatHandler(10))
	time.Sleep(10 * time.Millisecond)

	created, err := mmB.Create(ctx, "chat", map[string]any{})
	require.NoError(t, err)

	mmA := newTestMatchMaker("A", p, d)
	require.NoError(t, mmA.Setup(ctx))

	reservation, err := mmA.JoinByID(ctx, created.Room.RoomID, map[string]any{"sessionId": created.SessionID})
	require.NoError(t, err)
	assert.Equal(t, created.SessionID, reservation.SessionID)
}

// Scenario 6: defining a room type sweeps away listings left by a dead
// owner, since the owner never answers the liveness probe.
func TestDefineRoomTypeCleansUpStaleListings(t *testing.T) {
	ctx := context.Background()
	p := presence.NewLocal()
	d := driver.NewLocal()

	ghostListing, err := d.CreateInstance(ctx, driver.RoomListing{
		RoomID:    "ghost-room",
		Name:      "chat",
		ProcessID: "ghost",
	})
	require.NoError(t, err)
	require.NoError(t, ghostListing.Save(ctx))

	_, err = p.Incr(ctx, concurrencyKey("chat"))
	require.NoError(t, err)

	mm := newTestMatchMaker("p1", p, d)
	require.NoError(t, mm.Setup(ctx))
	mm.DefineRoomType(ctx, newChatHandler(10))

	require.Eventually(t, func() bool {
		listings, err := d.Find(ctx, driver.Query{Name: "chat"}, nil)
		return err == nil && len(listings) == 0
	}, time.Second, 10*time.Millisecond, "stale listing should have been removed")
}

func TestConcurrencyGateFirstJoinerUndelayedAndResets(t *testing.T) {
	ctx := context.Background()
	p := presence.NewLocal()

	mm := newTestMatchMaker("p1", p, driver.NewLocal())

	start := time.Now()
	_, err := mm.awaitRoomAvailable(ctx, "chat", func(ctx context.Context) (*driver.RoomListing, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "first joiner should not be delayed")

	counter, err := p.Incr(ctx, concurrencyKey("chat"))
	require.NoError(t, err)
	_, err = p.Decr(ctx, concurrencyKey("chat"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter)
}
