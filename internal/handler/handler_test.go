package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFilterOptionsProjectsOnlyListedKeys(t *testing.T) {
	h := &Handler{FilterBy: []string{"map", "mode"}}
	out := h.GetFilterOptions(map[string]any{
		"map":   "dust",
		"mode":  "ranked",
		"extra": "ignored",
	})
	assert.Equal(t, map[string]any{"map": "dust", "mode": "ranked"}, out)
}

func TestGetFilterOptionsSkipsMissingKeys(t *testing.T) {
	h := &Handler{FilterBy: []string{"map", "mode"}}
	out := h.GetFilterOptions(map[string]any{"map": "dust"})
	assert.Equal(t, map[string]any{"map": "dust"}, out)
}

func TestMergeOptionsClientWinsOnConflict(t *testing.T) {
	h := &Handler{DefaultOptions: map[string]any{"maxClients": 4, "mode": "casual"}}
	merged := h.MergeOptions(map[string]any{"mode": "ranked"})
	assert.Equal(t, map[string]any{"maxClients": 4, "mode": "ranked"}, merged)
}

func TestEventsEmitReachesAllListeners(t *testing.T) {
	h := &Handler{}
	var calls []string
	h.Events.OnCreate = append(h.Events.OnCreate, func(roomID string) { calls = append(calls, "create:"+roomID) })
	h.Events.OnDispose = append(h.Events.OnDispose, func(roomID string) { calls = append(calls, "dispose:"+roomID) })

	h.EmitCreate("room-1")
	h.EmitDispose("room-1")

	assert.Equal(t, []string{"create:room-1", "dispose:room-1"}, calls)
}

func TestSortByFilterFieldsAscending(t *testing.T) {
	less := SortByFilterFields([]SortOption{{Key: "rank"}})
	assert.True(t, less(map[string]any{"rank": 1}, map[string]any{"rank": 2}))
	assert.False(t, less(map[string]any{"rank": 2}, map[string]any{"rank": 1}))
}

func TestSortByFilterFieldsDescending(t *testing.T) {
	less := SortByFilterFields([]SortOption{{Key: "rank", Descending: true}})
	assert.True(t, less(map[string]any{"rank": 2}, map[string]any{"rank": 1}))
	assert.False(t, less(map[string]any{"rank": 1}, map[string]any{"rank": 2}))
}

func TestSortByFilterFieldsFallsBackToNextKey(t *testing.T) {
	less := SortByFilterFields([]SortOption{{Key: "rank"}, {Key: "name"}})
	a := map[string]any{"rank": 1, "name": "b"}
	b := map[string]any{"rank": 1, "name": "a"}
	assert.False(t, less(a, b))
	assert.True(t, less(b, a))
}
