// Package eventbus is the in-process publish/subscribe hub that lets
// independently mounted components agree on shared state.
package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pkglog "github.com/weiawesome/seedling-live/pkg/log"
)

// Event is one delivery to a handler.
type Event struct {
	Topic       string
	Payload     any
	PublishedAt time.Time
}

// Handler consumes events. A returned error or panic is logged and counted;
// it never reaches the publisher or other handlers.
type Handler func(Event) error

// Token identifies one subscription. The zero Token identifies nothing.
type Token struct {
	topic string
	id    uint64
}

// Valid reports whether t came from a successful Subscribe.
func (t Token) Valid() bool { return t.id != 0 }

type subscription struct {
	id      uint64
	handler Handler
	active  atomic.Bool
}

// Metrics is a snapshot of bus counters.
type Metrics struct {
	Published     uint64 `json:"published"`
	Delivered     uint64 `json:"delivered"`
	Failed        uint64 `json:"failed"`
	Subscriptions int    `json:"subscriptions"`
}

// Bus is a named-topic publish/subscribe hub.
//
// Handlers of a topic run synchronously on the publishing goroutine, in
// subscription order. Subscriber lists are replaced, never edited, so a
// publish in flight keeps iterating the list it started with.
type Bus struct {
	mu     sync.Mutex
	topics map[string][]*subscription
	nextID uint64
	closed bool

	published atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{topics: make(map[string][]*subscription)}
}

// Subscribe registers h on topic. The same handler may be subscribed any
// number of times; each call yields a distinct Token.
func (b *Bus) Subscribe(topic string, h Handler) Token {
	if h == nil {
		return Token{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Token{}
	}

	b.nextID++
	sub := &subscription{id: b.nextID, handler: h}
	sub.active.Store(true)

	cur := b.topics[topic]
	next := make([]*subscription, len(cur), len(cur)+1)
	copy(next, cur)
	b.topics[topic] = append(next, sub)

	return Token{topic: topic, id: sub.id}
}

// Unsubscribe removes the subscription behind tok. It is idempotent and safe
// to call from inside a handler; once it returns, no new invocation of that
// subscription starts.
func (b *Bus) Unsubscribe(tok Token) {
	if !tok.Valid() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.topics[tok.topic]
	for i, sub := range cur {
		if sub.id != tok.id {
			continue
		}
		sub.active.Store(false)
		if len(cur) == 1 {
			delete(b.topics, tok.topic)
			return
		}
		next := make([]*subscription, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		b.topics[tok.topic] = next
		return
	}
}

// Publish delivers payload to every subscription of topic that is active
// when delivery reaches it. There is no replay for late subscribers.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := b.topics[topic]
	b.mu.Unlock()

	b.published.Add(1)
	if len(subs) == 0 {
		return
	}

	ev := Event{Topic: topic, Payload: payload, PublishedAt: time.Now()}
	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		if err := invoke(sub.handler, ev); err != nil {
			b.failed.Add(1)
			l := pkglog.L()
			l.Error().Err(err).
				Str(pkglog.FieldTopic, topic).
				Uint64(pkglog.FieldToken, sub.id).
				Msg("event handler failed")
			continue
		}
		b.delivered.Add(1)
	}
}

func invoke(h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ev)
}

// SubscriberCount returns the number of live subscriptions on topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

// Metrics returns the bus counters.
func (b *Bus) Metrics() Metrics {
	b.mu.Lock()
	n := 0
	for _, subs := range b.topics {
		n += len(subs)
	}
	b.mu.Unlock()

	return Metrics{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		Failed:        b.failed.Load(),
		Subscriptions: n,
	}
}

// Close drops every subscription. Later publishes are no-ops and later
// subscribes return the zero Token.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.topics {
		for _, sub := range subs {
			sub.active.Store(false)
		}
		delete(b.topics, topic)
	}
	b.closed = true
}
