package simulator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"dinar-ticker/internal/domain"

	"github.com/shopspring/decimal"
)

var ErrInvalidPolicy = errors.New("invalid simulator policy")

// Policy controls how often and how far each tracked price moves.
type Policy struct {
	// MinInterval and MaxInterval bound the random wait between updates.
	MinInterval time.Duration
	MaxInterval time.Duration

	// Floor caps a single downward move at current*Floor. Zero disables it.
	Floor float64

	// Precision is the minimum number of decimals kept after each update.
	// Assets whose largest move at base value is smaller than one step get
	// more decimals, up to domain.DisplayPlaces.
	Precision int32

	// LowerBound keeps values at or above BaseValue*LowerBound. Zero
	// disables it.
	LowerBound float64

	// UpperBound keeps values at or below BaseValue*UpperBound. Zero
	// disables it.
	UpperBound float64
}

var (
	// SingleAssetPolicy moves fractional prices every 2-5s and never drops
	// more than 5% in one step.
	SingleAssetPolicy = Policy{
		MinInterval: 2000 * time.Millisecond,
		MaxInterval: 5000 * time.Millisecond,
		Floor:       0.95,
		Precision:   2,
		UpperBound:  10,
	}

	// MultiAssetPolicy moves DZD denominated prices every 1.5-3.5s, in whole
	// units where the asset's volatility allows it, bounded to 10%-1000% of
	// the base value.
	MultiAssetPolicy = Policy{
		MinInterval: 1500 * time.Millisecond,
		MaxInterval: 3500 * time.Millisecond,
		Precision:   0,
		LowerBound:  0.10,
		UpperBound:  10,
	}
)

// PolicyByName returns the named policy ("single" or "multi").
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "single":
		return SingleAssetPolicy, nil
	case "multi":
		return MultiAssetPolicy, nil
	default:
		return Policy{}, fmt.Errorf("%w: unknown policy %q", ErrInvalidPolicy, name)
	}
}

// WithWindow returns a copy of p using the given interval window.
func (p Policy) WithWindow(lo, hi time.Duration) Policy {
	p.MinInterval = lo
	p.MaxInterval = hi
	return p
}

func (p Policy) Validate() error {
	switch {
	case p.MinInterval <= 0 || p.MaxInterval < p.MinInterval:
		return fmt.Errorf("%w: interval window [%s, %s]", ErrInvalidPolicy, p.MinInterval, p.MaxInterval)
	case p.Floor < 0 || p.Floor >= 1:
		return fmt.Errorf("%w: floor %v outside [0, 1)", ErrInvalidPolicy, p.Floor)
	case p.Precision < 0:
		return fmt.Errorf("%w: negative precision %d", ErrInvalidPolicy, p.Precision)
	case p.LowerBound < 0 || p.LowerBound >= 1:
		return fmt.Errorf("%w: lower bound %v outside [0, 1)", ErrInvalidPolicy, p.LowerBound)
	case p.UpperBound != 0 && !(p.UpperBound > 1 && !math.IsInf(p.UpperBound, 1)):
		return fmt.Errorf("%w: upper bound %v must be 0 or above 1", ErrInvalidPolicy, p.UpperBound)
	}
	return nil
}

func (p Policy) nextDelay(rng *rand.Rand) time.Duration {
	span := int64(p.MaxInterval - p.MinInterval)
	return p.MinInterval + time.Duration(rng.Int64N(span+1))
}

// places returns the decimals kept for asset: at least Precision, more while
// one step exceeds the largest move the asset can make at its base value.
func (p Policy) places(asset domain.TrackedAsset) int32 {
	places := p.Precision
	reach := asset.Volatility * asset.BaseValue
	for places < domain.DisplayPlaces && math.Pow10(-int(places)) > reach {
		places++
	}
	return places
}

// next computes the value following current for asset, given a uniform draw
// u in [0, 1).
func (p Policy) next(asset domain.TrackedAsset, current, u float64) float64 {
	places := p.places(asset)
	upper := math.Inf(1)
	if p.UpperBound > 0 {
		upper = asset.BaseValue * p.UpperBound
	}

	delta := (u - 0.5) * 2 * asset.Volatility * current
	candidate := math.Min(current+delta, upper)
	if math.IsNaN(candidate) || math.IsInf(candidate, 0) {
		return current
	}

	if p.Floor > 0 {
		floor := current * p.Floor
		candidate = math.Max(candidate, floor)
		candidate = domain.RoundTo(candidate, places)
		if candidate < floor {
			candidate = ceilTo(floor, places)
		}
		if ceiling := floorTo(upper, places); candidate > upper && ceiling >= floor {
			candidate = ceiling
		}
	} else {
		candidate = domain.RoundTo(candidate, places)
		if candidate > upper {
			candidate = floorTo(upper, places)
		}
	}

	if p.LowerBound > 0 {
		if bound := asset.BaseValue * p.LowerBound; candidate < bound {
			candidate = ceilTo(bound, places)
		}
	}
	if candidate <= 0 {
		candidate = math.Pow10(-int(places))
	}
	return candidate
}

func ceilTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).RoundCeil(places).InexactFloat64()
}

func floorTo(v float64, places int32) float64 {
	if math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).RoundFloor(places).InexactFloat64()
}
