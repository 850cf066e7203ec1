package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInstanceDefaultsMetadata(t *testing.T) {
	d := NewLocal()
	listing, err := d.CreateInstance(context.Background(), RoomListing{RoomID: "r1", Name: "chat"})
	require.NoError(t, err)
	assert.NotNil(t, listing.Metadata)
}

func TestFindFiltersByNameAndFlags(t *testing.T) {
	d := NewLocal()
	locked := true
	_, err := d.CreateInstance(context.Background(), RoomListing{RoomID: "r1", Name: "chat", Locked: true})
	require.NoError(t, err)
	_, err = d.CreateInstance(context.Background(), RoomListing{RoomID: "r2", Name: "chat"})
	require.NoError(t, err)
	_, err = d.CreateInstance(context.Background(), RoomListing{RoomID: "r3", Name: "lobby"})
	require.NoError(t, err)

	results, err := d.Find(context.Background(), Query{Name: "chat", Locked: &locked}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].RoomID)
}

func TestFindFiltersByMetadata(t *testing.T) {
	d := NewLocal()
	_, err := d.CreateInstance(context.Background(), RoomListing{
		RoomID: "r1", Name: "chat", Metadata: map[string]any{"map": "dust"},
	})
	require.NoError(t, err)
	_, err = d.CreateInstance(context.Background(), RoomListing{
		RoomID: "r2", Name: "chat", Metadata: map[string]any{"map": "aztec"},
	})
	require.NoError(t, err)

	results, err := d.Find(context.Background(), Query{Name: "chat", Metadata: map[string]any{"map": "dust"}}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].RoomID)
}

func TestFindOneReturnsNilWhenNoMatch(t *testing.T) {
	d := NewLocal()
	listing, err := d.FindOne(context.Background(), Query{Name: "nonexistent"}, nil)
	require.NoError(t, err)
	assert.Nil(t, listing)
}

func TestFindOneAppliesSort(t *testing.T) {
	d := NewLocal()
	_, err := d.CreateInstance(context.Background(), RoomListing{RoomID: "r1", Name: "chat", Clients: 5})
	require.NoError(t, err)
	_, err = d.CreateInstance(context.Background(), RoomListing{RoomID: "r2", Name: "chat", Clients: 1})
	require.NoError(t, err)

	byClients := SortFunc(func(listings []*RoomListing) {
		for i := 1; i < len(listings); i++ {
			for j := i; j > 0 && listings[j].Clients < listings[j-1].Clients; j-- {
				listings[j], listings[j-1] = listings[j-1], listings[j]
			}
		}
	})

	got, err := d.FindOne(context.Background(), Query{Name: "chat"}, byClients)
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RoomID)
}

func TestSaveAndRemoveRoundTrip(t *testing.T) {
	d := NewLocal()
	listing, err := d.CreateInstance(context.Background(), RoomListing{RoomID: "r1", Name: "chat"})
	require.NoError(t, err)

	listing.Clients = 3
	require.NoError(t, listing.Save(context.Background()))

	got, err := d.FindOne(context.Background(), Query{RoomID: "r1"}, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Clients)

	require.NoError(t, listing.Remove(context.Background()))
	got, err = d.FindOne(context.Background(), Query{RoomID: "r1"}, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
