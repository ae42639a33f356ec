// Package simulator keeps independently ticking live prices for a set of
// tracked assets.
//
// Every asset is driven by its own goroutine with its own random source and
// schedule. Each goroutine is the only writer of its entry and publishes a
// fresh immutable PriceState on every step, so readers never lock against
// writers.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"dinar-ticker/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidAsset = errors.New("invalid tracked asset")
	ErrNotRunning   = errors.New("simulator not running")
)

// Update is published after every committed price change.
type Update struct {
	ID    string            `json:"id"`
	State domain.PriceState `json:"state"`
}

// Simulator starts price simulations under a fixed Policy. It holds no
// price state itself; every Start returns an independent Handle.
type Simulator struct {
	policy   Policy
	logger   *zap.Logger
	now      func() time.Time
	observer func(Update)

	mu   sync.Mutex
	seed *rand.Rand
}

type Option func(*Simulator)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSeed makes the random sources reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.seed = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers fn to run synchronously after every update. fn must
// not block.
func WithObserver(fn func(Update)) Option {
	return func(s *Simulator) { s.observer = fn }
}

func New(policy Policy, opts ...Option) *Simulator {
	s := &Simulator{
		policy: policy,
		logger: zap.NewNop(),
		now:    time.Now,
		seed:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the policy new handles run under.
func (s *Simulator) Policy() Policy { return s.policy }

// Start validates assets and launches one update loop per asset. Every
// asset starts at its base value.
func (s *Simulator) Start(assets []domain.TrackedAsset) (*Handle, error) {
	if err := s.policy.Validate(); err != nil {
		return nil, err
	}
	if err := validateAssets(assets); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		id:       uuid.NewString(),
		policy:   s.policy,
		logger:   s.logger,
		now:      s.now,
		observer: s.observer,
		cancel:   cancel,
		entries:  make([]*entry, 0, len(assets)),
	}
	h.logger = h.logger.With(zap.String("handle", h.id))

	started := s.now()
	for _, a := range assets {
		e := &entry{asset: a}
		e.state.Store(&domain.PriceState{
			Current:    a.BaseValue,
			Previous:   a.BaseValue,
			Direction:  domain.DirectionStable,
			LastUpdate: started,
		})
		h.entries = append(h.entries, e)
	}

	for _, e := range h.entries {
		h.wg.Add(1)
		go h.run(ctx, e, s.newRand())
	}

	h.logger.Info("live price simulation started",
		zap.Int("assets", len(assets)),
		zap.Duration("min_interval", s.policy.MinInterval),
		zap.Duration("max_interval", s.policy.MaxInterval),
	)
	return h, nil
}

func (s *Simulator) newRand() *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rand.New(rand.NewPCG(s.seed.Uint64(), s.seed.Uint64()))
}

func validateAssets(assets []domain.TrackedAsset) error {
	if len(assets) == 0 {
		return fmt.Errorf("%w: no assets", ErrInvalidAsset)
	}
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		switch {
		case a.ID == "":
			return fmt.Errorf("%w: empty id", ErrInvalidAsset)
		case a.BaseValue <= 0 || math.IsNaN(a.BaseValue) || math.IsInf(a.BaseValue, 0):
			return fmt.Errorf("%w: %s base value %v", ErrInvalidAsset, a.ID, a.BaseValue)
		case !(a.Volatility > 0 && a.Volatility <= 1):
			return fmt.Errorf("%w: %s volatility %v outside (0, 1]", ErrInvalidAsset, a.ID, a.Volatility)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidAsset, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}
