// Package presence is the backend-agnostic key-value + pub/sub
// substrate the matchmaker uses for cluster-wide state: sets, hashes,
// counters, and channel pub/sub with at-most-once, best-effort
// fan-out.
package presence

import "context"

// Handler processes one message received on a subscribed channel.
type Handler func(ctx context.Context, channel string, payload []byte)

// Presence is the contract the matchmaker core depends on. Every
// operation may fail with a transport error; callers treat the cluster
// state as eventually consistent.
//
// Guarantees implementations MUST uphold:
//   - a subscriber that has returned from Subscribe has its handler
//     installed before Subscribe returns;
//   - Publish fan-out is best-effort: messages to channels with no
//     subscriber are dropped;
//   - messages on one channel from one publisher are delivered in
//     order to one subscriber (no cross-channel or cross-publisher
//     ordering is promised).
type Presence interface {
	// Sets
	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// Hashes
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HDel(ctx context.Context, key string, fields ...string) error

	// Counters
	Incr(ctx context.Context, key string) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, key string) error

	// Pub/sub
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, handler Handler) (Subscription, error)
}

// Subscription is a live subscription returned by Subscribe; Unsubscribe
// stops delivery and may be called more than once safely.
type Subscription interface {
	Unsubscribe(ctx context.Context) error
}
