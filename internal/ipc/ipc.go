// Package ipc builds request/reply RPC over the presence pub/sub
// substrate: subscribeIPC installs a dispatcher on a channel,
// requestFromIPC races a reply against a timeout.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sablecluster/matchmaker/internal/metrics"
	"github.com/sablecluster/matchmaker/internal/presence"
)

// Method is the finite set of remote-room-call operations. It's a
// tagged enum rather than a bare method-name string, so new operations
// are new variants rather than new strings.
type Method string

const (
	MethodReserveSeat     Method = "reserveSeat"
	MethodHasReservedSeat Method = "hasReservedSeat"
	MethodGetRoomID       Method = "getRoomId"
	MethodDisconnect      Method = "disconnect"
	// MethodCustom carries a room-defined method name, reachable only
	// through the room's own whitelist: arbitrary methods reachable via
	// remoteRoomCall, with the whitelist enforced by the room itself.
	MethodCustom Method = "custom"
)

// envelope is the wire format for one request published on an IPC
// channel: a correlation id plus a tagged method call. The create-room
// message uses its own envelope (see createroom.go).
type envelope struct {
	RequestID  string          `json:"requestId"`
	Method     Method          `json:"method,omitempty"`
	CustomName string          `json:"customName,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
}

type replyEnvelope struct {
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Dispatch handles one incoming request and returns either a JSON-
// marshalable value or an error.
type Dispatch func(ctx context.Context, method Method, customName string, args json.RawMessage) (any, error)

// SubscribeIPC subscribes on channel; every incoming message is
// unmarshaled into an envelope, handed to dispatch, and replied to on
// the channel derived from (processID, requestID).
func SubscribeIPC(ctx context.Context, p presence.Presence, processID, channel string, dispatch Dispatch) (presence.Subscription, error) {
	return p.Subscribe(ctx, channel, func(ctx context.Context, ch string, payload []byte) {
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return
		}

		value, err := dispatch(ctx, env.Method, env.CustomName, env.Args)

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

func replyChannel(processID, requestID string) string {
	return fmt.Sprintf("reply:%s:%s", processID, requestID)
}

// ErrTimeout is returned when a request/reply round trip exceeds its
// deadline. Responses arriving after the timeout are discarded.
var ErrTimeout = errors.New("ipc: request timed out")

// RequestFromIPC publishes a request on channel and waits up to
// timeout for a reply on the channel derived from (processID,
// requestID). Create-room requests go through RequestCreateRoom.
func RequestFromIPC(ctx context.Context, p presence.Presence, processID, channel string, method Method, customName string, args any, timeout time.Duration) (json.RawMessage, error) {
	requestID := uuid.NewString()

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("ipc: failed to marshal args: %w", err)
	}

	replyCh := replyChannel(processID, requestID)
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

	env := envelope{RequestID: requestID, Method: method, CustomName: customName, Args: argsJSON}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("ipc: failed to marshal envelope: %w", err)
	}
	if err := p.Publish(ctx, channel, payload); err != nil {
		return nil, fmt.Errorf("ipc: failed to publish request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	start := time.Now()
	select {
	case reply := <-resultCh:
		metrics.IPCRequestDurationMillis.WithLabelValues("ok").Observe(float64(time.Since(start).Milliseconds()))
		if !reply.OK {
			return nil, errors.New(reply.Error)
		}
		return reply.Value, nil
	case <-timer.C:
		metrics.IPCRequestDurationMillis.WithLabelValues("timeout").Observe(float64(time.Since(start).Milliseconds()))
		return nil, ErrTimeout
	case <-ctx.Done():
		metrics.IPCRequestDurationMillis.WithLabelValues("canceled").Observe(float64(time.Since(start).Milliseconds()))
		return nil, ctx.Err()
	}
}
