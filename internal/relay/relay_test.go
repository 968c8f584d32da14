package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/internal/eventbus"
	"github.com/weiawesome/seedling-live/internal/live"
)

type fakeProvider struct {
	mu     sync.Mutex
	events chan live.ProviderEvent
	sent   []domain.ChatMessage
}

func (f *fakeProvider) Join(ctx context.Context, roomID string, self domain.Participant) (<-chan live.ProviderEvent, error) {
	return f.events, nil
}

func (f *fakeProvider) Leave(ctx context.Context) error { return nil }

func (f *fakeProvider) Send(ctx context.Context, msg domain.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeProvider) sentMessages() []domain.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChatMessage(nil), f.sent...)
}

type fixture struct {
	provider *fakeProvider
	ctrl     *live.Controller
	bus      *eventbus.Bus
	relay    *Relay
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{provider: &fakeProvider{events: make(chan live.ProviderEvent, 32)}, bus: eventbus.New()}
	f.ctrl = live.NewController(f.provider, f.bus)
	f.relay = New(f.ctrl, f.bus)
	if err := f.ctrl.Join(context.Background(), "R1", domain.Participant{ID: "me", Mode: domain.ModeViewer}); err != nil {
		t.Fatalf("Join: %v", err)
	}
	t.Cleanup(func() {
		f.ctrl.Leave(context.Background())
		f.relay.Close()
	})
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	f.provider.events <- live.ProviderEvent{Type: live.EventSessionState, State: domain.SessionStarted}
	deadline := time.Now().Add(2 * time.Second)
	for f.ctrl.CurrentState() != domain.SessionStarted {
		if time.Now().After(deadline) {
			t.Fatalf("session never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (f *fixture) push(msg domain.ChatMessage) {
	f.provider.events <- live.ProviderEvent{Type: live.EventMessage, Message: msg}
}

func TestSendRequiresStarted(t *testing.T) {
	f := newFixture(t)

	_, err := f.relay.Send(context.Background(), domain.KindChat, "hello")
	var nc *domain.NotConnectedError
	if !errors.As(err, &nc) || !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("err = %v, want NotConnectedError", err)
	}
	if nc.State != domain.SessionNotStarted {
		t.Errorf("state = %s", nc.State)
	}
	if len(f.provider.sentMessages()) != 0 {
		t.Errorf("message reached the provider")
	}

	f.start(t)
	msg, err := f.relay.Send(context.Background(), domain.KindChat, "  hello  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ID == "" || msg.SenderID != "me" || msg.Text != "hello" || msg.Timestamp.IsZero() {
		t.Errorf("msg = %+v", msg)
	}
	if _, err := f.relay.Send(context.Background(), domain.KindChat, "   "); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Errorf("empty send err = %v", err)
	}

	f.provider.events <- live.ProviderEvent{Type: live.EventSessionState, State: domain.SessionStopped}
	deadline := time.Now().Add(2 * time.Second)
	for f.ctrl.CurrentState() != domain.SessionStopped {
		if time.Now().After(deadline) {
			t.Fatalf("session never stopped")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := f.relay.Send(context.Background(), domain.KindChat, "bye"); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("send after stop err = %v", err)
	}
}

func TestSendTruncatesByCharacter(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	for name, tc := range map[string]struct {
		text      string
		wantRunes int
	}{
		"vietnamese over the cap": {strings.Repeat("ạ", MaxTextLength+200), MaxTextLength},
		"mixed width at the cap":  {strings.Repeat("aố", MaxTextLength/2), MaxTextLength},
		"short multi-byte text":   {"xin chào, trà ngon quá", 22},
	} {
		t.Run(name, func(t *testing.T) {
			msg, err := f.relay.Send(context.Background(), domain.KindChat, tc.text)
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if !utf8.ValidString(msg.Text) {
				t.Fatalf("text is not valid UTF-8: %q", msg.Text)
			}
			if got := utf8.RuneCountInString(msg.Text); got != tc.wantRunes {
				t.Errorf("runes = %d, want %d", got, tc.wantRunes)
			}
			if !strings.HasPrefix(tc.text, msg.Text) {
				t.Errorf("text is not a prefix of the input")
			}
		})
	}
}

func TestSendIDsAreOrdered(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	var prev string
	for i := 0; i < 50; i++ {
		msg, err := f.relay.Send(context.Background(), domain.KindChat, "x")
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if msg.ID <= prev {
			t.Fatalf("id %s not after %s", msg.ID, prev)
		}
		prev = msg.ID
	}
}

func TestCartNotificationReachesBus(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	triggered := make(chan struct{}, 4)
	f.bus.Subscribe(eventbus.TopicCartChanged, func(eventbus.Event) error {
		triggered <- struct{}{}
		return nil
	})
	var chats atomic.Int32
	f.relay.OnMessage(func(domain.ChatMessage) { chats.Add(1) })

	f.push(domain.ChatMessage{ID: "n1", SenderID: "other", Kind: domain.KindCartNotification})

	select {
	case <-triggered:
	case <-time.After(2 * time.Second):
		t.Fatalf("cart-notification never reached %s subscribers", eventbus.TopicCartChanged)
	}
	if chats.Load() != 0 {
		t.Errorf("cart-notification shown as chat")
	}

	// our own echo does not trigger a second refresh
	f.push(domain.ChatMessage{ID: "n2", SenderID: "me", Kind: domain.KindCartNotification})
	f.push(domain.ChatMessage{ID: "n3", SenderID: "other", Kind: domain.KindCartNotification})
	select {
	case <-triggered:
	case <-time.After(2 * time.Second):
		t.Fatalf("second notification missing")
	}
	select {
	case <-triggered:
		t.Fatalf("own echo triggered a refresh")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChatDeliveryOrder(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	got := make(chan string, 32)
	tok := f.relay.OnMessage(func(m domain.ChatMessage) { got <- m.SenderID + ":" + m.ID })

	want := []string{"a:1", "b:1", "a:2", "a:3", "b:2"}
	for _, w := range want {
		f.push(domain.ChatMessage{SenderID: w[:1], ID: w[2:], Kind: domain.KindChat})
	}
	f.push(domain.ChatMessage{ID: "?", Kind: "poll"})

	for _, w := range want {
		select {
		case g := <-got:
			if g != w {
				t.Fatalf("got %s, want %s", g, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", w)
		}
	}

	f.relay.Unsubscribe(tok)
	f.relay.Unsubscribe(tok)
	f.push(domain.ChatMessage{SenderID: "a", ID: "4", Kind: domain.KindChat})
	select {
	case g := <-got:
		t.Fatalf("delivered %s after unsubscribe", g)
	case <-time.After(50 * time.Millisecond):
	}
}
