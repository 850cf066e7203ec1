package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	presenceLatency     metric.Float64Histogram
	presenceLatencyOnce sync.Once
)

// Redis is the cluster-shared Presence backend: every operation gets
// an OpenTelemetry span plus a latency histogram recording.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis at dsn and verifies the connection with a
// traced ping.
func NewRedis(dsn string) (*Redis, error) {
	var err error
	presenceLatencyOnce.Do(func() {
		meter := otel.Meter("presence-redis")
		presenceLatency, err = meter.Float64Histogram("presence.command.latency", metric.WithUnit("ms"))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create presence.command.latency instrument: %w", err)
	}

	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, span := otel.Tracer("presence-redis").Start(context.Background(), "presence.ping")
	defer span.End()
	if err := client.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to ping redis")
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	span.SetStatus(codes.Ok, "redis connected")

	return &Redis{client: client}, nil
}

// Close releases the underlying client's connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) instrument(ctx context.Context, command string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := otel.Tracer("presence-redis").Start(ctx, "presence."+command, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		presenceLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("presence.command", command)))
		if err != nil && err != redis.Nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "presence operation failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (r *Redis) SAdd(ctx context.Context, key, member string) error {
	ctx, end := r.instrument(ctx, "sadd", attribute.String("presence.key", key))
	err := r.client.SAdd(ctx, key, member).Err()
	end(err)
	return err
}

func (r *Redis) SRem(ctx context.Context, key, member string) error {
	ctx, end := r.instrument(ctx, "srem", attribute.String("presence.key", key))
	err := r.client.SRem(ctx, key, member).Err()
	end(err)
	return err
}

func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	ctx, end := r.instrument(ctx, "smembers", attribute.String("presence.key", key))
	members, err := r.client.SMembers(ctx, key).Result()
	end(err)
	return members, err
}

func (r *Redis) HSet(ctx context.Context, key, field, value string) error {
	ctx, end := r.instrument(ctx, "hset", attribute.String("presence.key", key))
	err := r.client.HSet(ctx, key, field, value).Err()
	end(err)
	return err
}

func (r *Redis) HGet(ctx context.Context, key, field string) (string, bool, error) {
	ctx, end := r.instrument(ctx, "hget", attribute.String("presence.key", key))
	value, err := r.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		end(nil)
		return "", false, nil
	}
	end(err)
	return value, err == nil, err
}

func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, end := r.instrument(ctx, "hgetall", attribute.String("presence.key", key))
	values, err := r.client.HGetAll(ctx, key).Result()
	end(err)
	return values, err
}

func (r *Redis) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	ctx, end := r.instrument(ctx, "hincrby", attribute.String("presence.key", key))
	v, err := r.client.HIncrBy(ctx, key, field, delta).Result()
	end(err)
	return v, err
}

func (r *Redis) HDel(ctx context.Context, key string, fields ...string) error {
	ctx, end := r.instrument(ctx, "hdel", attribute.String("presence.key", key))
	err := r.client.HDel(ctx, key, fields...).Err()
	end(err)
	return err
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	ctx, end := r.instrument(ctx, "incr", attribute.String("presence.key", key))
	v, err := r.client.Incr(ctx, key).Result()
	end(err)
	return v, err
}

func (r *Redis) Decr(ctx context.Context, key string) (int64, error) {
	ctx, end := r.instrument(ctx, "decr", attribute.String("presence.key", key))
	v, err := r.client.Decr(ctx, key).Result()
	end(err)
	return v, err
}

func (r *Redis) Del(ctx context.Context, key string) error {
	ctx, end := r.instrument(ctx, "del", attribute.String("presence.key", key))
	err := r.client.Del(ctx, key).Err()
	end(err)
	return err
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	ctx, end := r.instrument(ctx, "publish", attribute.String("presence.channel", channel))
	err := r.client.Publish(ctx, channel, payload).Err()
	end(err)
	return err
}

func (r *Redis) Subscribe(ctx context.Context, channel string, handler Handler) (Subscription, error) {
	_, end := r.instrument(ctx, "subscribe", attribute.String("presence.channel", channel))
	pubsub := r.client.Subscribe(ctx, channel)

	// Block until the subscription is acknowledged so a caller that has
	// returned from Subscribe is guaranteed the handler is installed.
	if _, err := pubsub.Receive(ctx); err != nil {
		end(err)
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %q: %w", channel, err)
	}
	end(nil)

	sub := &redisSubscription{pubsub: pubsub}
	go func() {
		for msg := range pubsub.Channel() {
			handler(context.Background(), msg.Channel, []byte(msg.Payload))
		}
	}()
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	once   sync.Once
}

func (s *redisSubscription) Unsubscribe(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		err = s.pubsub.Close()
	})
	return err
}
