// Package live mirrors a streaming provider's session: who is in it, in which
// role, and where the broadcast is in its lifecycle.
package live

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/internal/eventbus"
	pkglog "github.com/weiawesome/seedling-live/pkg/log"
)

// snapshot is the controller's view of the session. It is immutable; every
// provider push builds a new one and swaps it in.
type snapshot struct {
	roomID       string
	state        domain.SessionState
	hlsURL       string
	participants map[string]domain.Participant
}

func emptySnapshot(roomID string) *snapshot {
	return &snapshot{roomID: roomID, participants: map[string]domain.Participant{}}
}

func (s *snapshot) withParticipants(ps []domain.Participant) *snapshot {
	next := *s
	next.participants = make(map[string]domain.Participant, len(ps))
	for _, p := range ps {
		if p.ID == "" {
			continue
		}
		next.participants[p.ID] = p
	}
	return &next
}

func (s *snapshot) withState(state domain.SessionState, hlsURL string) *snapshot {
	next := *s
	next.state = state
	if hlsURL != "" {
		next.hlsURL = hlsURL
	}
	return &next
}

// MessageSink receives side-channel messages in arrival order.
type MessageSink func(domain.ChatMessage)

// Controller applies provider pushes to its session mirror. Callers only
// read; every change originates from the provider.
type Controller struct {
	provider Provider
	bus      *eventbus.Bus

	snap atomic.Pointer[snapshot]

	mu     sync.Mutex
	sink   MessageSink
	joined bool
	self   domain.Participant
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a controller that has not joined any room.
func NewController(p Provider, bus *eventbus.Bus) *Controller {
	c := &Controller{provider: p, bus: bus}
	c.snap.Store(emptySnapshot(""))
	return c
}

// HandleMessages installs the consumer of side-channel messages.
func (c *Controller) HandleMessages(sink MessageSink) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
}

// Join enters roomID as self and starts applying provider pushes.
func (c *Controller) Join(ctx context.Context, roomID string, self domain.Participant) error {
	if !self.Mode.Valid() {
		return domain.ErrInvalidMode
	}

	c.mu.Lock()
	if c.joined {
		c.mu.Unlock()
		return domain.ErrAlreadyJoined
	}

	events, err := c.provider.Join(ctx, roomID, self)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	initial := emptySnapshot(roomID)
	c.snap.Store(initial)
	runCtx, cancel := context.WithCancel(context.Background())
	c.joined = true
	c.self = self
	c.cancel = cancel
	c.done = make(chan struct{})

	// the initial view goes out before any push is applied
	ready := make(chan struct{})
	go c.run(runCtx, events, c.done, ready)
	c.mu.Unlock()

	l := pkglog.Ctx(ctx)
	l.Info().
		Str(pkglog.FieldRoomID, roomID).
		Str(pkglog.FieldParticipantID, self.ID).
		Str("mode", string(self.Mode)).
		Msg("joined live session")

	c.publish(initial)
	close(ready)
	return nil
}

// Leave exits the room. The last mirrored state stays readable.
func (c *Controller) Leave(ctx context.Context) error {
	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		return domain.ErrNotJoined
	}
	c.joined = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	err := c.provider.Leave(ctx)
	cancel()
	<-done

	l := pkglog.Ctx(ctx)
	l.Info().Str(pkglog.FieldRoomID, c.snap.Load().roomID).Msg("left live session")
	return err
}

// Joined reports whether the controller is attached to a room.
func (c *Controller) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

// Self returns the local participant of the current room.
func (c *Controller) Self() domain.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// Send publishes msg on the session transport.
func (c *Controller) Send(ctx context.Context, msg domain.ChatMessage) error {
	if !c.Joined() {
		return domain.ErrNotJoined
	}
	return c.provider.Send(ctx, msg)
}

func (c *Controller) run(ctx context.Context, events <-chan ProviderEvent, done, ready chan struct{}) {
	defer close(done)
	select {
	case <-ready:
	case <-ctx.Done():
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.apply(ev)
		}
	}
}

// apply folds one provider push into the mirror. Pushes are applied one at a
// time, in arrival order, by the run goroutine.
func (c *Controller) apply(ev ProviderEvent) {
	prev := c.snap.Load()
	l := pkglog.L().With().
		Str(pkglog.FieldRoomID, prev.roomID).
		Str("event", ev.Type.String()).
		Logger()

	switch {
	case ev.Type.IsRoster():
		next := prev.withParticipants(ev.Participants)
		c.snap.Store(next)
		if prev.state == domain.SessionStopped {
			l.Debug().Int("participants", len(next.participants)).Msg("roster update after session stopped")
			return
		}
		c.publish(next)

	case ev.Type == EventSessionState:
		if ev.State < prev.state {
			l.Debug().
				Str(pkglog.FieldSessionState, ev.State.String()).
				Str("current", prev.state.String()).
				Msg("ignoring backward session transition")
			return
		}
		if ev.State == prev.state && (ev.HLSURL == "" || ev.HLSURL == prev.hlsURL || prev.state == domain.SessionStopped) {
			return
		}
		next := prev.withState(ev.State, ev.HLSURL)
		c.snap.Store(next)
		l.Info().Str(pkglog.FieldSessionState, next.state.String()).Msg("session state changed")
		c.publish(next)

	case ev.Type == EventMessage:
		c.mu.Lock()
		sink := c.sink
		c.mu.Unlock()
		if sink != nil {
			sink(ev.Message)
		}

	default:
		l.Warn().Msg("unknown provider event")
	}
}

func (c *Controller) publish(s *snapshot) {
	if c.bus != nil {
		c.bus.Publish(eventbus.TopicLiveChanged, viewOf(s))
	}
}

// CurrentState returns the broadcast lifecycle state.
func (c *Controller) CurrentState() domain.SessionState {
	return c.snap.Load().state
}

// CurrentParticipants returns the participant set, ordered by ID.
func (c *Controller) CurrentParticipants() []domain.Participant {
	s := c.snap.Load()
	out := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	domain.SortParticipants(out)
	return out
}

// PartitionByMode derives the role groups from the current participant set.
func (c *Controller) PartitionByMode() map[domain.Mode][]domain.Participant {
	return Partition(c.snap.Load().participants)
}

// View returns what the live page renders.
func (c *Controller) View() domain.LiveView {
	return viewOf(c.snap.Load())
}

func viewOf(s *snapshot) domain.LiveView {
	groups := Partition(s.participants)
	view := domain.LiveView{
		RoomID:           s.roomID,
		State:            s.state,
		HLSURL:           s.hlsURL,
		Speakers:         groups[domain.ModeConference],
		Viewers:          groups[domain.ModeViewer],
		ParticipantCount: len(s.participants),
	}
	if view.Speakers == nil {
		view.Speakers = []domain.Participant{}
	}
	if view.Viewers == nil {
		view.Viewers = []domain.Participant{}
	}
	return view
}
