// Package conversion converts amounts between assets by triangulating
// through a single base currency.
package conversion

import (
	"errors"
	"fmt"
	"math"

	"dinar-ticker/internal/domain"
)

var (
	// ErrRateNotFound matches any RateNotFoundError via errors.Is.
	ErrRateNotFound = errors.New("rate not found")

	// ErrInvalidAmount is returned in strict mode for NaN or infinite amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// fallbackRate stands in for a missing rate in lenient mode.
const fallbackRate = 1.0

// RateNotFoundError reports the code that had no usable rate.
type RateNotFoundError struct {
	Code domain.Code
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("rate unavailable for %s", e.Code)
}

func (e *RateNotFoundError) Is(target error) bool {
	return target == ErrRateNotFound
}

// Engine converts amounts using a caller supplied RateTable. The zero value
// is not usable; build one with New.
type Engine struct {
	base   domain.Code
	strict bool
}

type Option func(*Engine)

// WithBase sets the base currency. Defaults to domain.BaseCurrency.
func WithBase(code domain.Code) Option {
	return func(e *Engine) {
		if c := domain.NormalizeCode(string(code)); c != "" {
			e.base = c
		}
	}
}

// WithStrict makes missing rates and non-finite amounts errors instead of
// falling back.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

func New(opts ...Option) *Engine {
	e := &Engine{base: domain.BaseCurrency}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Base returns the engine's base currency.
func (e *Engine) Base() domain.Code { return e.base }

// Strict reports whether the engine runs in strict mode.
func (e *Engine) Strict() bool { return e.strict }

// Convert returns amount of from expressed in to, at full precision.
//
// Identical codes return amount untouched. Otherwise the amount goes
// from -> base -> to. In lenient mode a missing rate counts as 1.0.
func (e *Engine) Convert(table domain.RateTable, amount float64, from, to domain.Code) (float64, error) {
	from = domain.NormalizeCode(string(from))
	to = domain.NormalizeCode(string(to))

	if e.strict && (math.IsNaN(amount) || math.IsInf(amount, 0)) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if from == to {
		return amount, nil
	}

	baseAmount := amount
	if from != e.base {
		rate, err := e.rate(table, from)
		if err != nil {
			return 0, err
		}
		baseAmount = amount / rate
	}

	if to == e.base {
		return baseAmount, nil
	}
	rate, err := e.rate(table, to)
	if err != nil {
		return 0, err
	}
	return baseAmount * rate, nil
}

// Rate returns the price of one unit of from in to.
func (e *Engine) Rate(table domain.RateTable, from, to domain.Code) (float64, error) {
	return e.Convert(table, 1, from, to)
}

func (e *Engine) rate(table domain.RateTable, code domain.Code) (float64, error) {
	if r, ok := table.Lookup(code); ok {
		return r, nil
	}
	if e.strict {
		return 0, &RateNotFoundError{Code: code}
	}
	return fallbackRate, nil
}

var lenient = New()

// Convert runs a lenient conversion with the default base currency.
func Convert(table domain.RateTable, amount float64, from, to domain.Code) (float64, error) {
	return lenient.Convert(table, amount, from, to)
}
