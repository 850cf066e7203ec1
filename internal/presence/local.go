package presence

import (
	"context"
	"sync"
)

// Local is a process-private, deterministic Presence implementation
// for single-node mode and tests. All state lives in plain Go maps
// guarded by a single mutex, the same map-plus-mutex shape as this
// module's other in-memory stores.
type Local struct {
	mu sync.Mutex

	sets     map[string]map[string]struct{}
	hashes   map[string]map[string]string
	counters map[string]int64

	subs map[string][]*localSubscription
}

// NewLocal creates an empty Local presence store.
func NewLocal() *Local {
	return &Local{
		sets:     make(map[string]map[string]struct{}),
		hashes:   make(map[string]map[string]string),
		counters: make(map[string]int64),
		subs:     make(map[string][]*localSubscription),
	}
}

type localSubscription struct {
	store   *Local
	channel string
	handler Handler
	queue   chan deliverable
	stop    chan struct{}

	closeMu sync.Mutex
	closed  bool
}

func (s *localSubscription) Unsubscribe(ctx context.Context) error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stop)
	s.closeMu.Unlock()

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	subs := s.store.subs[s.channel]
	for i, sub := range subs {
		if sub == s {
			s.store.subs[s.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}

func (p *Local) SAdd(ctx context.Context, key, member string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.sets[key]
	if !ok {
		set = make(map[string]struct{})
		p.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (p *Local) SRem(ctx context.Context, key, member string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if set, ok := p.sets[key]; ok {
		delete(set, member)
	}
	return nil
}

func (p *Local) SMembers(ctx context.Context, key string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.sets[key]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	return out, nil
}

func (p *Local) HSet(ctx context.Context, key, field, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.hashes[key]
	if !ok {
		h = make(map[string]string)
		p.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (p *Local) HGet(ctx context.Context, key, field string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (p *Local) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (p *Local) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.hashes[key]
	if !ok {
		h = make(map[string]string)
		p.hashes[key] = h
	}
	cur := parseInt64(h[field])
	cur += delta
	h[field] = formatInt64(cur)
	return cur, nil
}

func (p *Local) HDel(ctx context.Context, key string, fields ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.hashes[key]
	if !ok {
		return nil
	}
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(p.hashes, key)
	}
	return nil
}

func (p *Local) Incr(ctx context.Context, key string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[key]++
	return p.counters[key], nil
}

func (p *Local) Decr(ctx context.Context, key string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[key]--
	return p.counters[key], nil
}

func (p *Local) Del(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.counters, key)
	delete(p.hashes, key)
	delete(p.sets, key)
	return nil
}

// Publish fans a message out to every handler currently subscribed on
// channel. Delivery is synchronous but each handler runs in its own
// goroutine so a slow subscriber cannot block the publisher or other
// subscribers; per-subscriber ordering is preserved by serializing
// through that subscriber's own delivery queue.
func (p *Local) Publish(ctx context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	subs := make([]*localSubscription, len(p.subs[channel]))
	copy(subs, p.subs[channel])
	p.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(ctx, channel, payload)
	}
	return nil
}

func (p *Local) Subscribe(ctx context.Context, channel string, handler Handler) (Subscription, error) {
	sub := &localSubscription{
		store:   p,
		channel: channel,
		handler: handler,
		queue:   make(chan deliverable, 64),
		stop:    make(chan struct{}),
	}
	go sub.loop()

	p.mu.Lock()
	p.subs[channel] = append(p.subs[channel], sub)
	p.mu.Unlock()

	return sub, nil
}

type deliverable struct {
	ctx     context.Context
	channel string
	payload []byte
}

func (s *localSubscription) deliver(ctx context.Context, channel string, payload []byte) {
	select {
	case s.queue <- deliverable{ctx: ctx, channel: channel, payload: payload}:
	case <-s.stop:
	default:
		// best-effort: drop if the subscriber can't keep up
	}
}

func (s *localSubscription) loop() {
	for {
		select {
		case d := <-s.queue:
			s.handler(d.ctx, d.channel, d.payload)
		case <-s.stop:
			return
		}
	}
}
