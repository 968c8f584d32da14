package pubsub

import (
	"context"
	"sync"
)

// MemoryPubSub is an in-process PubSub used for local runs and tests.
// Each channel has at most one subscription, matching the other drivers.
type MemoryPubSub struct {
	mu   sync.Mutex
	subs map[string]*memorySub
}

type memorySub struct {
	ch     chan *Event
	cancel context.CancelFunc
	ctx    context.Context
	mu     sync.Mutex
	done   bool
}

// NewMemoryPubSub creates an empty in-process PubSub.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[string]*memorySub)}
}

// Publish delivers event to the channel's subscriber, if any.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.Lock()
	sub := m.subs[channel]
	m.mu.Unlock()
	if sub == nil {
		return nil
	}

	cp := *event
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.done {
		return nil
	}
	select {
	case sub.ch <- &cp:
		return nil
	case <-sub.ctx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers the channel's subscriber, replacing any previous one.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.subs[channel]; ok {
		old.stop()
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySub{ch: make(chan *Event, 100), ctx: subCtx, cancel: cancel}
	m.subs[channel] = sub

	go func() {
		<-subCtx.Done()
		sub.stop()
	}()

	return sub.ch, nil
}

// Unsubscribe closes the channel's subscription.
func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	sub, ok := m.subs[channel]
	delete(m.subs, channel)
	m.mu.Unlock()

	if ok {
		sub.stop()
	}
	return nil
}

// Close closes every subscription.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for channel, sub := range m.subs {
		sub.stop()
		delete(m.subs, channel)
	}
	return nil
}

func (s *memorySub) stop() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.done = true
		close(s.ch)
	}
}
