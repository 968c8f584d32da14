// Package relay carries typed application messages between live-session
// participants and bridges cart notices onto the local event bus.
package relay

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/internal/eventbus"
	"github.com/weiawesome/seedling-live/internal/live"
	pkglog "github.com/weiawesome/seedling-live/pkg/log"
)

const topicChat = "chat"

// MaxTextLength caps a chat line, in characters.
const MaxTextLength = 1000

// Relay sends and receives side-channel messages over a live.Controller.
// Received messages are dispatched one at a time in arrival order, so a
// sender's messages are never reordered.
type Relay struct {
	ctrl *live.Controller
	bus  *eventbus.Bus
	chat *eventbus.Bus

	idMu    sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// New creates a relay and installs it as ctrl's message consumer.
func New(ctrl *live.Controller, bus *eventbus.Bus) *Relay {
	r := &Relay{
		ctrl:    ctrl,
		bus:     bus,
		chat:    eventbus.New(),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
	ctrl.HandleMessages(r.dispatch)
	return r
}

// Send publishes a message of kind to the room. It fails with a
// *domain.NotConnectedError unless the session is STARTED.
func (r *Relay) Send(ctx context.Context, kind domain.MessageKind, text string) (domain.ChatMessage, error) {
	state := r.ctrl.CurrentState()
	if state != domain.SessionStarted {
		return domain.ChatMessage{}, &domain.NotConnectedError{State: state}
	}

	text = strings.TrimSpace(text)
	if kind == domain.KindChat && text == "" {
		return domain.ChatMessage{}, domain.ErrEmptyMessage
	}
	text = truncate(text, MaxTextLength)

	now := r.now()
	msg := domain.ChatMessage{
		ID:        r.newID(now),
		SenderID:  r.ctrl.Self().ID,
		Kind:      kind,
		Text:      text,
		Timestamp: now,
	}

	if err := r.ctrl.Send(ctx, msg); err != nil {
		if errors.Is(err, domain.ErrNotJoined) {
			return domain.ChatMessage{}, &domain.NotConnectedError{State: r.ctrl.CurrentState()}
		}
		return domain.ChatMessage{}, err
	}
	return msg, nil
}

// NotifyCartChanged tells the other participants that this shopper's cart changed.
func (r *Relay) NotifyCartChanged(ctx context.Context) error {
	_, err := r.Send(ctx, domain.KindCartNotification, "")
	return err
}

// OnMessage registers a display consumer of chat messages.
func (r *Relay) OnMessage(h func(domain.ChatMessage)) eventbus.Token {
	return r.chat.Subscribe(topicChat, func(ev eventbus.Event) error {
		h(ev.Payload.(domain.ChatMessage))
		return nil
	})
}

// Unsubscribe removes an OnMessage registration. It is idempotent.
func (r *Relay) Unsubscribe(tok eventbus.Token) {
	r.chat.Unsubscribe(tok)
}

// Close drops every OnMessage registration.
func (r *Relay) Close() {
	r.chat.Close()
}

func (r *Relay) dispatch(msg domain.ChatMessage) {
	l := pkglog.L().With().
		Str(pkglog.FieldMessageKind, string(msg.Kind)).
		Str(pkglog.FieldParticipantID, msg.SenderID).
		Logger()

	switch msg.Kind {
	case domain.KindChat:
		r.chat.Publish(topicChat, msg)

	case domain.KindCartNotification:
		if msg.SenderID != "" && msg.SenderID == r.ctrl.Self().ID {
			// our own notice; the local publish already happened
			return
		}
		l.Debug().Msg("remote cart change")
		r.bus.Publish(eventbus.TopicCartChanged, nil)

	default:
		l.Warn().Str("message_id", msg.ID).Msg("dropping message of unknown kind")
	}
}

func (r *Relay) newID(t time.Time) string {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), r.entropy)
	if err != nil {
		// monotonic entropy overflowed within one millisecond
		return ulid.Make().String()
	}
	return id.String()
}

// truncate cuts s to at most n runes without splitting a character.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for k := 0; k < n; k++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}
