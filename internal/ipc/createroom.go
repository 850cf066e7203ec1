package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sablecluster/matchmaker/internal/presence"
)

// CreateRoomRequest is the dedicated message type received on a
// process's inbox (p:<processId>): "create a room" gets its own path
// rather than a bare method name, since it's the one request a
// process-wide channel (not a per-room channel) ever carries.
type CreateRoomRequest struct {
	RoomName      string         `json:"roomName"`
	ClientOptions map[string]any `json:"clientOptions"`
}

type createRoomEnvelope struct {
	RequestID string            `json:"requestId"`
	Request   CreateRoomRequest `json:"request"`
}

// CreateRoomDispatch handles one inbound CreateRoomRequest and returns
// a JSON-marshalable listing or an error.
type CreateRoomDispatch func(ctx context.Context, req CreateRoomRequest) (any, error)

// SubscribeCreateRoom installs dispatch as the handler for create-room
// requests arriving on a process's inbox channel.
func SubscribeCreateRoom(ctx context.Context, p presence.Presence, processID, channel string, dispatch CreateRoomDispatch) (presence.Subscription, error) {
	return p.Subscribe(ctx, channel, func(ctx context.Context, ch string, payload []byte) {
		var env createRoomEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return
		}

		value, err := dispatch(ctx, env.Request)

		reply := replyEnvelope{OK: err == nil}
		if err != nil {
			reply.Error = err.Error()
		} else if value != nil {
			data, merr := json.Marshal(value)
			if merr != nil {
				reply.OK = false
				reply.Error = merr.Error()
			} else {
				reply.Value = data
			}
		}

		replyPayload, merr := json.Marshal(reply)
		if merr != nil {
			return
		}
		_ = p.Publish(ctx, replyChannel(processID, env.RequestID), replyPayload)
	})
}

// RequestCreateRoom publishes a CreateRoomRequest to the target
// process's inbox and waits up to timeout for the listing reply.
func RequestCreateRoom(ctx context.Context, p presence.Presence, targetProcessID, channel string, req CreateRoomRequest, timeout time.Duration) (json.RawMessage, error) {
	requestID := uuid.NewString()
	replyCh := replyChannel(targetProcessID, requestID)
	resultCh := make(chan replyEnvelope, 1)

	sub, err := p.Subscribe(ctx, replyCh, func(ctx context.Context, ch string, payload []byte) {
		var reply replyEnvelope
		if err := json.Unmarshal(payload, &reply); err != nil {
			return
		}
		select {
		case resultCh <- reply:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ipc: failed to subscribe to reply channel: %w", err)
	}
	defer sub.Unsubscribe(context.Background())

	payload, err := json.Marshal(createRoomEnvelope{RequestID: requestID, Request: req})
	if err != nil {
		return nil, fmt.Errorf("ipc: failed to marshal create-room request: %w", err)
	}
	if err := p.Publish(ctx, channel, payload); err != nil {
		return nil, fmt.Errorf("ipc: failed to publish create-room request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-resultCh:
		if !reply.OK {
			return nil, errors.New(reply.Error)
		}
		return reply.Value, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
