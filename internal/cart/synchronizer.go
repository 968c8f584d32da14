// Package cart keeps the shopper's cart snapshot in step with the
// authoritative backend and announces the derived badge count.
package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/internal/eventbus"
	pkglog "github.com/weiawesome/seedling-live/pkg/log"
)

// Synchronizer owns the CartSnapshot of the authenticated shopper.
//
// Every refresh takes a sequence number when it starts. A completed fetch is
// applied only if no later refresh has been applied and the shopper has not
// changed meanwhile, so out-of-order completions never roll the cart back.
type Synchronizer struct {
	backend Backend
	bus     *eventbus.Bus
	timeout time.Duration

	snapshot atomic.Pointer[domain.CartSnapshot]
	seq      atomic.Uint64

	mu      sync.Mutex
	userID  string
	applied uint64

	// pubMu orders snapshot swaps with their count publishes, so the last
	// count announced is always the count of Current().
	pubMu sync.Mutex

	kick    chan struct{}
	token   eventbus.Token
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSynchronizer creates a synchronizer with an empty snapshot.
func NewSynchronizer(backend Backend, bus *eventbus.Bus, fetchTimeout time.Duration) *Synchronizer {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	s := &Synchronizer{
		backend: backend,
		bus:     bus,
		timeout: fetchTimeout,
		kick:    make(chan struct{}, 1),
	}
	empty := domain.EmptySnapshot()
	s.snapshot.Store(&empty)
	return s
}

// Refresh fetches the cart of userID. An empty userID is the normal
// unauthenticated state and yields an empty snapshot. Backend failures are
// returned as *domain.FetchError and leave the current snapshot untouched;
// there is no retry here.
func (s *Synchronizer) Refresh(ctx context.Context, userID string) (domain.CartSnapshot, error) {
	if userID == "" {
		return domain.EmptySnapshot(), nil
	}

	seq := s.seq.Add(1)
	items, err := s.backend.GetCart(ctx, userID)
	if err != nil {
		return domain.CartSnapshot{}, &domain.FetchError{UserID: userID, Err: err}
	}
	if items == nil {
		items = []domain.CartItem{}
	}

	snap := domain.CartSnapshot{UserID: userID, Items: items}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if s.apply(seq, snap) {
		cur := s.Current()
		s.bus.Publish(eventbus.TopicCartCount, domain.CartCountChanged{UserID: cur.UserID, Count: cur.Count()})
	}
	return snap, nil
}

func (s *Synchronizer) apply(seq uint64, snap domain.CartSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.UserID != s.userID || seq <= s.applied {
		l := pkglog.L()
		l.Debug().
			Str(pkglog.FieldUserID, snap.UserID).
			Uint64("seq", seq).
			Uint64("applied", s.applied).
			Msg("discarding stale cart fetch")
		return false
	}
	s.applied = seq
	s.snapshot.Store(&snap)
	return true
}

// Count returns the badge number of snapshot.
func Count(snapshot domain.CartSnapshot) int {
	return snapshot.Count()
}

// Current returns the last applied snapshot.
func (s *Synchronizer) Current() domain.CartSnapshot {
	return *s.snapshot.Load()
}

// User returns the shopper whose cart is tracked.
func (s *Synchronizer) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// SetUser switches the tracked shopper and schedules a refresh, as a
// freshly mounted display would.
func (s *Synchronizer) SetUser(userID string) {
	s.mu.Lock()
	changed := s.userID != userID
	if changed {
		s.userID = userID
		s.applied = s.seq.Load()
		empty := domain.EmptySnapshot()
		empty.UserID = userID
		s.snapshot.Store(&empty)
	}
	s.mu.Unlock()

	s.Trigger()
}

// Logout invalidates the backend session and discards the snapshot. Local
// state is cleared even when the backend call fails.
func (s *Synchronizer) Logout(ctx context.Context) error {
	s.pubMu.Lock()
	s.mu.Lock()
	userID := s.userID
	s.userID = ""
	s.applied = s.seq.Load()
	empty := domain.EmptySnapshot()
	s.snapshot.Store(&empty)
	s.mu.Unlock()

	if userID == "" {
		s.pubMu.Unlock()
		return nil
	}
	s.bus.Publish(eventbus.TopicCartCount, domain.CartCountChanged{Count: 0})
	s.pubMu.Unlock()

	return s.backend.Logout(ctx, userID)
}

// Trigger schedules a background refresh of the current shopper. Triggers
// arriving while a fetch is running collapse into one follow-up fetch.
func (s *Synchronizer) Trigger() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Start subscribes to cart-changed triggers and runs the refresh worker
// until Stop is called or ctx ends.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.token = s.bus.Subscribe(eventbus.TopicCartChanged, func(eventbus.Event) error {
		s.Trigger()
		return nil
	})
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop unsubscribes and waits for the worker to exit.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, done, tok := s.cancel, s.done, s.token
	s.mu.Unlock()

	s.bus.Unsubscribe(tok)
	cancel()
	<-done
}

func (s *Synchronizer) run(ctx context.Context) {
	defer close(s.done)
	l := pkglog.L()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		}

		userID := s.User()
		if userID == "" {
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		snap, err := s.Refresh(fetchCtx, userID)
		cancel()
		if err != nil {
			l.Warn().Err(err).Str(pkglog.FieldUserID, userID).Msg("cart refresh failed, keeping previous snapshot")
			continue
		}
		l.Debug().Str(pkglog.FieldUserID, userID).Int("count", snap.Count()).Msg("cart refreshed")
	}
}
