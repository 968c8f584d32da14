package eventbus

import (
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"
)

func TestBusPublishOrder(t *testing.T) {
	t.Run("handlers run once each in subscription order", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		var got []string
		bus.Subscribe(TopicCartChanged, func(Event) error { got = append(got, "B"); return nil })
		bus.Subscribe(TopicCartChanged, func(Event) error { got = append(got, "C"); return nil })

		bus.Publish(TopicCartChanged, nil)

		if want := []string{"B", "C"}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("no replay for late subscribers", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		bus.Publish("t", 1)
		calls := 0
		bus.Subscribe("t", func(Event) error { calls++; return nil })
		if calls != 0 {
			t.Errorf("late subscriber saw %d past events", calls)
		}
	})

	t.Run("topics are independent", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		var a, b int
		bus.Subscribe("a", func(Event) error { a++; return nil })
		bus.Subscribe("b", func(Event) error { b++; return nil })
		bus.Publish("a", nil)
		if a != 1 || b != 0 {
			t.Errorf("a=%d b=%d", a, b)
		}
	})

	t.Run("payload and topic reach the handler", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		var ev Event
		bus.Subscribe("t", func(e Event) error { ev = e; return nil })
		bus.Publish("t", 42)
		if ev.Topic != "t" || ev.Payload != 42 || ev.PublishedAt.IsZero() {
			t.Errorf("unexpected event %+v", ev)
		}
	})
}

func TestBusIsolation(t *testing.T) {
	bus := New()
	defer bus.Close()

	var got []string
	bus.Subscribe("t", func(Event) error { got = append(got, "first"); return errors.New("boom") })
	bus.Subscribe("t", func(Event) error { panic("kaboom") })
	bus.Subscribe("t", func(Event) error { got = append(got, "last"); return nil })

	bus.Publish("t", nil)

	if want := []string{"first", "last"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	m := bus.Metrics()
	if m.Failed != 2 || m.Delivered != 1 || m.Published != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		calls := 0
		tok := bus.Subscribe("t", func(Event) error { calls++; return nil })
		bus.Unsubscribe(tok)
		bus.Unsubscribe(tok)
		bus.Unsubscribe(Token{})
		bus.Publish("t", nil)
		if calls != 0 {
			t.Errorf("handler ran %d times after unsubscribe", calls)
		}
	})

	t.Run("from inside a handler", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		var selfTok, laterTok Token
		var got []string
		selfTok = bus.Subscribe("t", func(Event) error {
			got = append(got, "self")
			bus.Unsubscribe(selfTok)
			bus.Unsubscribe(laterTok)
			return nil
		})
		laterTok = bus.Subscribe("t", func(Event) error { got = append(got, "later"); return nil })

		bus.Publish("t", nil)
		bus.Publish("t", nil)

		// laterTok was unsubscribed before delivery reached it
		if want := []string{"self"}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
		if n := bus.SubscriberCount("t"); n != 0 {
			t.Errorf("%d residual subscriptions", n)
		}
	})

	t.Run("subscribe during publish waits for the next publish", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		late := 0
		once := false
		bus.Subscribe("t", func(Event) error {
			if !once {
				once = true
				bus.Subscribe("t", func(Event) error { late++; return nil })
			}
			return nil
		})
		bus.Publish("t", nil)
		if late != 0 {
			t.Errorf("subscriber added mid-publish ran %d times", late)
		}
		bus.Publish("t", nil)
		if late != 1 {
			t.Errorf("late = %d, want 1", late)
		}
	})

	t.Run("same handler many mount cycles leaves nothing behind", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		calls := 0
		h := func(Event) error { calls++; return nil }
		for i := 0; i < 100; i++ {
			a := bus.Subscribe(TopicCartChanged, h)
			b := bus.Subscribe(TopicCartChanged, h)
			bus.Publish(TopicCartChanged, nil)
			bus.Unsubscribe(a)
			bus.Unsubscribe(b)
		}
		if calls != 200 {
			t.Errorf("calls = %d, want 200", calls)
		}
		if m := bus.Metrics(); m.Subscriptions != 0 {
			t.Errorf("%d residual subscriptions", m.Subscriptions)
		}
	})
}

// Random subscribe/publish/unsubscribe sequences: every handler subscribed
// before a publish runs exactly once for it, none runs after unsubscribe.
func TestBusRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		bus := New()
		type sub struct {
			tok    Token
			active bool
			calls  int
			want   int
		}
		var subs []*sub

		for step := 0; step < 200; step++ {
			switch rng.Intn(3) {
			case 0:
				s := &sub{active: true}
				s.tok = bus.Subscribe("t", func(Event) error { s.calls++; return nil })
				subs = append(subs, s)
			case 1:
				for _, s := range subs {
					if s.active {
						s.want++
					}
				}
				bus.Publish("t", step)
			case 2:
				if len(subs) > 0 {
					s := subs[rng.Intn(len(subs))]
					bus.Unsubscribe(s.tok)
					s.active = false
				}
			}
		}

		live := 0
		for i, s := range subs {
			if s.calls != s.want {
				t.Fatalf("round %d sub %d: calls=%d want=%d", round, i, s.calls, s.want)
			}
			if s.active {
				live++
			}
		}
		if n := bus.SubscriberCount("t"); n != live {
			t.Fatalf("round %d: SubscriberCount=%d, want %d", round, n, live)
		}
		bus.Close()
	}
}

func TestBusConcurrentUse(t *testing.T) {
	bus := New()
	defer bus.Close()

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tok := bus.Subscribe("t", func(Event) error {
					mu.Lock()
					total++
					mu.Unlock()
					return nil
				})
				bus.Publish("t", j)
				bus.Unsubscribe(tok)
			}
		}()
	}
	wg.Wait()

	if n := bus.SubscriberCount("t"); n != 0 {
		t.Errorf("%d residual subscriptions", n)
	}
	if total < 800 {
		t.Errorf("total deliveries = %d, want at least 800", total)
	}
}

func TestBusClose(t *testing.T) {
	bus := New()
	calls := 0
	bus.Subscribe("t", func(Event) error { calls++; return nil })
	bus.Close()
	bus.Publish("t", nil)
	if calls != 0 {
		t.Errorf("handler ran after Close")
	}
	if tok := bus.Subscribe("t", func(Event) error { return nil }); tok.Valid() {
		t.Errorf("Subscribe after Close returned a valid token")
	}
}
