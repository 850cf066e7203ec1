// Package handler is the per-process registry of named room types:
// constructor, default options, filter/sort options for matchmaking,
// and the typed event hooks a handler's owner can observe.
package handler

import (
	"github.com/sablecluster/matchmaker/internal/room"
)

// SortFunc compares two listings' metadata maps; true means a should
// sort before b. Used to build handler.SortOptions comparators
// over filter fields.
type SortFunc func(a, b map[string]any) bool

// Events are the typed hooks a Handler's owner can observe: a fixed
// "create, join, leave, lock, unlock, dispose" set of listener slices
// rather than a dynamic string-keyed emitter.
type Events struct {
	OnCreate  []func(roomID string)
	OnJoin    []func(roomID string, client room.Client)
	OnLeave   []func(roomID string, client room.Client)
	OnLock    []func(roomID string)
	OnUnlock  []func(roomID string)
	OnDispose []func(roomID string)
}

func (e *Events) emitCreate(roomID string) {
	for _, fn := range e.OnCreate {
		fn(roomID)
	}
}
func (e *Events) emitJoin(roomID string, c room.Client) {
	for _, fn := range e.OnJoin {
		fn(roomID, c)
	}
}
func (e *Events) emitLeave(roomID string, c room.Client) {
	for _, fn := range e.OnLeave {
		fn(roomID, c)
	}
}
func (e *Events) emitLock(roomID string) {
	for _, fn := range e.OnLock {
		fn(roomID)
	}
}
func (e *Events) emitUnlock(roomID string) {
	for _, fn := range e.OnUnlock {
		fn(roomID)
	}
}
func (e *Events) emitDispose(roomID string) {
	for _, fn := range e.OnDispose {
		fn(roomID)
	}
}

// Handler is the registration for one named room type.
type Handler struct {
	Name           string
	Factory        room.Factory
	DefaultOptions map[string]any
	FilterBy       []string
	Sort           SortFunc
	Events         Events
}

// GetFilterOptions projects FilterBy keys out of clientOptions, the
// way findOneRoomAvailable narrows its driver query.
func (h *Handler) GetFilterOptions(clientOptions map[string]any) map[string]any {
	out := make(map[string]any, len(h.FilterBy))
	for _, key := range h.FilterBy {
		if v, ok := clientOptions[key]; ok {
			out[key] = v
		}
	}
	return out
}

// MergeOptions merges clientOptions over DefaultOptions, clientOptions
// winning on conflicts, for the onCreate call.
func (h *Handler) MergeOptions(clientOptions map[string]any) map[string]any {
	merged := make(map[string]any, len(h.DefaultOptions)+len(clientOptions))
	for k, v := range h.DefaultOptions {
		merged[k] = v
	}
	for k, v := range clientOptions {
		merged[k] = v
	}
	return merged
}

// EmitCreate, EmitJoin, EmitLeave, EmitLock, EmitUnlock, EmitDispose
// forward room-lifecycle events to the handler's registered listeners;
// the matchmaker calls these from its own typed room event callbacks.
func (h *Handler) EmitCreate(roomID string)              { h.Events.emitCreate(roomID) }
func (h *Handler) EmitJoin(roomID string, c room.Client) { h.Events.emitJoin(roomID, c) }
func (h *Handler) EmitLeave(roomID string, c room.Client) { h.Events.emitLeave(roomID, c) }
func (h *Handler) EmitLock(roomID string)                { h.Events.emitLock(roomID) }
func (h *Handler) EmitUnlock(roomID string)               { h.Events.emitUnlock(roomID) }
func (h *Handler) EmitDispose(roomID string)              { h.Events.emitDispose(roomID) }

// SortByFilterFields builds a SortFunc for sortOptions: an ordered list
// of metadata keys, each with ascending/descending direction.
type SortOption struct {
	Key        string
	Descending bool
}

func SortByFilterFields(opts []SortOption) SortFunc {
	return func(a, b map[string]any) bool {
		for _, opt := range opts {
			av, bv := a[opt.Key], b[opt.Key]
			cmp := compareAny(av, bv)
			if cmp == 0 {
				continue
			}
			if opt.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	}
}

func compareAny(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := toString(a), toString(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
