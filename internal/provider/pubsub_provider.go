// Package provider implements live.Provider over the room channels of pkg/pubsub.
package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/internal/live"
	pkglog "github.com/weiawesome/seedling-live/pkg/log"
	"github.com/weiawesome/seedling-live/pkg/pubsub"
)

var (
	ErrAlreadyJoined = errors.New("provider already joined a room")
	ErrNotJoined     = errors.New("provider has not joined a room")
)

// PubSubProvider joins a room by subscribing to its events and chat channels.
// The streaming side owns the roster: it consumes presence announcements and
// publishes full participant lists on the events channel.
type PubSubProvider struct {
	ps pubsub.PubSub

	mu     sync.Mutex
	roomID string
	self   domain.Participant
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPubSubProvider creates a provider on ps.
func NewPubSubProvider(ps pubsub.PubSub) *PubSubProvider {
	return &PubSubProvider{ps: ps}
}

// Join subscribes to roomID and announces self.
func (p *PubSubProvider) Join(ctx context.Context, roomID string, self domain.Participant) (<-chan live.ProviderEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.roomID != "" {
		return nil, ErrAlreadyJoined
	}

	runCtx, cancel := context.WithCancel(context.Background())

	eventsCh, err := p.ps.Subscribe(runCtx, pubsub.RoomEventsChannel(roomID))
	if err != nil {
		cancel()
		return nil, err
	}
	chatCh, err := p.ps.Subscribe(runCtx, pubsub.RoomChatChannel(roomID))
	if err != nil {
		p.ps.Unsubscribe(ctx, pubsub.RoomEventsChannel(roomID))
		cancel()
		return nil, err
	}

	if err := p.publish(ctx, pubsub.RoomPresenceChannel(roomID), pubsub.EventPresenceJoin, roomID, toWire(self)); err != nil {
		p.ps.Unsubscribe(ctx, pubsub.RoomEventsChannel(roomID))
		p.ps.Unsubscribe(ctx, pubsub.RoomChatChannel(roomID))
		cancel()
		return nil, err
	}

	out := make(chan live.ProviderEvent, 64)
	p.roomID = roomID
	p.self = self
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.pump(runCtx, roomID, eventsCh, chatCh, out, p.done)
	return out, nil
}

// Leave announces departure and tears down both subscriptions.
func (p *PubSubProvider) Leave(ctx context.Context) error {
	p.mu.Lock()
	if p.roomID == "" {
		p.mu.Unlock()
		return ErrNotJoined
	}
	roomID, self, cancel, done := p.roomID, p.self, p.cancel, p.done
	p.roomID = ""
	p.mu.Unlock()

	err := p.publish(ctx, pubsub.RoomPresenceChannel(roomID), pubsub.EventPresenceLeave, roomID, toWire(self))
	cancel()
	p.ps.Unsubscribe(ctx, pubsub.RoomEventsChannel(roomID))
	p.ps.Unsubscribe(ctx, pubsub.RoomChatChannel(roomID))
	<-done
	return err
}

// Send publishes msg on the room's chat channel.
func (p *PubSubProvider) Send(ctx context.Context, msg domain.ChatMessage) error {
	p.mu.Lock()
	roomID := p.roomID
	p.mu.Unlock()
	if roomID == "" {
		return ErrNotJoined
	}

	return p.publish(ctx, pubsub.RoomChatChannel(roomID), pubsub.EventMessage, roomID, pubsub.MessagePayload{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Kind:      string(msg.Kind),
		Text:      msg.Text,
		Timestamp: msg.Timestamp.UnixMilli(),
	})
}

func (p *PubSubProvider) publish(ctx context.Context, channel, eventType, roomID string, payload interface{}) error {
	ev, err := pubsub.NewEvent(eventType, roomID, payload)
	if err != nil {
		return err
	}
	return p.ps.Publish(ctx, channel, ev)
}

// pump merges both channels into out. Each channel is read in order, so
// per-channel (and therefore per-sender) order is kept.
func (p *PubSubProvider) pump(ctx context.Context, roomID string, eventsCh, chatCh <-chan *pubsub.Event, out chan<- live.ProviderEvent, done chan struct{}) {
	defer close(done)
	defer close(out)
	l := pkglog.L().With().Str(pkglog.FieldRoomID, roomID).Logger()

	for eventsCh != nil || chatCh != nil {
		var ev *pubsub.Event
		var ok bool
		select {
		case <-ctx.Done():
			return
		case ev, ok = <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
		case ev, ok = <-chatCh:
			if !ok {
				chatCh = nil
				continue
			}
		}

		pe, err := decode(ev)
		if err != nil {
			l.Warn().Err(err).Str("event_type", ev.Type).Msg("dropping undecodable provider event")
			continue
		}

		select {
		case out <- pe:
		case <-ctx.Done():
			return
		}
	}
}

var errUnknownEvent = errors.New("unknown event type")

func decode(ev *pubsub.Event) (live.ProviderEvent, error) {
	switch ev.Type {
	case pubsub.EventParticipantJoined, pubsub.EventParticipantLeft, pubsub.EventParticipantUpdated, pubsub.EventParticipants:
		var payload pubsub.ParticipantsPayload
		if err := ev.UnmarshalPayload(&payload); err != nil {
			return live.ProviderEvent{}, err
		}
		ps := make([]domain.Participant, 0, len(payload.Participants))
		for _, w := range payload.Participants {
			ps = append(ps, fromWire(w))
		}
		return live.ProviderEvent{Type: rosterType(ev.Type), Participants: ps}, nil

	case pubsub.EventSessionState:
		var payload pubsub.SessionStatePayload
		if err := ev.UnmarshalPayload(&payload); err != nil {
			return live.ProviderEvent{}, err
		}
		state, ok := domain.ParseSessionState(payload.State)
		if !ok {
			return live.ProviderEvent{}, errors.New("unknown session state " + payload.State)
		}
		return live.ProviderEvent{Type: live.EventSessionState, State: state, HLSURL: payload.HLSUrl}, nil

	case pubsub.EventMessage:
		var payload pubsub.MessagePayload
		if err := ev.UnmarshalPayload(&payload); err != nil {
			return live.ProviderEvent{}, err
		}
		ts := ev.Timestamp
		if payload.Timestamp > 0 {
			ts = time.UnixMilli(payload.Timestamp)
		}
		return live.ProviderEvent{Type: live.EventMessage, Message: domain.ChatMessage{
			ID:        payload.ID,
			SenderID:  payload.SenderID,
			Kind:      domain.MessageKind(payload.Kind),
			Text:      payload.Text,
			Timestamp: ts,
		}}, nil

	default:
		return live.ProviderEvent{}, errUnknownEvent
	}
}

func rosterType(t string) live.EventType {
	switch t {
	case pubsub.EventParticipantJoined:
		return live.EventParticipantJoined
	case pubsub.EventParticipantLeft:
		return live.EventParticipantLeft
	case pubsub.EventParticipantUpdated:
		return live.EventParticipantUpdated
	default:
		return live.EventParticipants
	}
}

func fromWire(w pubsub.ParticipantPayload) domain.Participant {
	return domain.Participant{
		ID:          w.ID,
		Mode:        domain.Mode(strings.ToUpper(w.Mode)),
		DisplayName: w.DisplayName,
		Media:       domain.MediaState{Webcam: w.Webcam, Mic: w.Mic},
	}
}

func toWire(p domain.Participant) pubsub.ParticipantPayload {
	return pubsub.ParticipantPayload{
		ID:          p.ID,
		Mode:        string(p.Mode),
		DisplayName: p.DisplayName,
		Webcam:      p.Media.Webcam,
		Mic:         p.Media.Mic,
	}
}
