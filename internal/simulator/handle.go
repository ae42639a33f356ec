package simulator

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"dinar-ticker/internal/domain"

	"go.uber.org/zap"
)

type entry struct {
	asset domain.TrackedAsset
	state atomic.Pointer[domain.PriceState]
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Update
	closed bool
}

// offer delivers u without blocking; dropped when the buffer is full or the
// subscriber is closed.
func (s *subscriber) offer(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- u:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Handle controls one running simulation. Its methods are safe for
// concurrent use.
type Handle struct {
	id       string
	policy   Policy
	logger   *zap.Logger
	now      func() time.Time
	observer func(Update)

	// entries is fixed at Start; only the states inside change.
	entries []*entry

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool

	subMu sync.Mutex
	subs  atomic.Pointer[[]*subscriber]
}

// ID identifies the handle in logs.
func (h *Handle) ID() string { return h.id }

// Running reports whether Stop has not yet completed.
func (h *Handle) Running() bool { return !h.stopped.Load() }

// Assets returns the tracked assets in registration order.
func (h *Handle) Assets() []domain.TrackedAsset {
	out := make([]domain.TrackedAsset, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.asset
	}
	return out
}

// Snapshot copies the current state of every tracked asset. After Stop it
// keeps returning the final state.
func (h *Handle) Snapshot() map[string]domain.PriceState {
	out := make(map[string]domain.PriceState, len(h.entries))
	for _, e := range h.entries {
		out[e.asset.ID] = *e.state.Load()
	}
	return out
}

// State returns the current state of one asset.
func (h *Handle) State(id string) (domain.PriceState, bool) {
	for _, e := range h.entries {
		if e.asset.ID == id {
			return *e.state.Load(), true
		}
	}
	return domain.PriceState{}, false
}

// Stop cancels every update loop and waits for them to exit. No state
// changes once Stop returns. Calling Stop again is a no-op.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		h.wg.Wait()

		h.subMu.Lock()
		h.stopped.Store(true)
		if subs := h.subs.Load(); subs != nil {
			for _, sub := range *subs {
				sub.close()
			}
		}
		h.subs.Store(nil)
		h.subMu.Unlock()

		h.logger.Info("live price simulation stopped")
	})
}

// Subscribe returns a channel receiving every update. Delivery never blocks
// the update loops: when the buffer is full the update is dropped. The
// channel is closed by cancel or by Stop.
func (h *Handle) Subscribe(buffer int) (<-chan Update, func(), error) {
	if buffer < 1 {
		buffer = 1
	}

	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.stopped.Load() {
		return nil, nil, ErrNotRunning
	}

	sub := &subscriber{ch: make(chan Update, buffer)}
	h.storeSubs(append(h.currentSubs(), sub))

	cancel := func() {
		h.subMu.Lock()
		kept := make([]*subscriber, 0)
		for _, s := range h.currentSubs() {
			if s != sub {
				kept = append(kept, s)
			}
		}
		h.storeSubs(kept)
		h.subMu.Unlock()
		sub.close()
	}
	return sub.ch, cancel, nil
}

func (h *Handle) currentSubs() []*subscriber {
	if subs := h.subs.Load(); subs != nil {
		out := make([]*subscriber, len(*subs))
		copy(out, *subs)
		return out
	}
	return nil
}

func (h *Handle) storeSubs(subs []*subscriber) {
	h.subs.Store(&subs)
}

func (h *Handle) run(ctx context.Context, e *entry, rng *rand.Rand) {
	defer h.wg.Done()

	timer := time.NewTimer(h.policy.nextDelay(rng))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		h.step(e, rng.Float64())
		timer.Reset(h.policy.nextDelay(rng))
	}
}

func (h *Handle) step(e *entry, u float64) {
	prev := e.state.Load()
	next := h.policy.next(e.asset, prev.Current, u)

	state := domain.PriceState{
		Current:    next,
		Previous:   prev.Current,
		Direction:  domain.DirectionOf(next, prev.Current),
		LastUpdate: h.now(),
	}
	e.state.Store(&state)

	update := Update{ID: e.asset.ID, State: state}
	if h.observer != nil {
		h.observer(update)
	}
	h.publish(update)
}

func (h *Handle) publish(u Update) {
	subs := h.subs.Load()
	if subs == nil {
		return
	}
	for _, sub := range *subs {
		sub.offer(u)
	}
}
