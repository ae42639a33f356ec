package domain

import "time"

// Direction tags the sign of the latest price move.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// DirectionOf derives the direction of a move from previous to current.
func DirectionOf(current, previous float64) Direction {
	switch {
	case current > previous:
		return DirectionUp
	case current < previous:
		return DirectionDown
	default:
		return DirectionStable
	}
}

// PriceState is the live state of one tracked asset. Values are replaced as
// a whole, never mutated in place.
type PriceState struct {
	Current    float64   `json:"current"`
	Previous   float64   `json:"previous"`
	Direction  Direction `json:"direction"`
	LastUpdate time.Time `json:"last_update"`
}

// TrackedAsset configures one simulated price feed.
type TrackedAsset struct {
	ID         string  `json:"id"`
	BaseValue  float64 `json:"base_value"`
	Volatility float64 `json:"volatility"`
}

// LiveQuote is a PriceState decorated for display.
type LiveQuote struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   Category  `json:"category"`
	Current    float64   `json:"current"`
	Previous   float64   `json:"previous"`
	Direction  Direction `json:"direction"`
	ChangePct  float64   `json:"change_pct"`
	LastUpdate time.Time `json:"last_update"`
}

// NewLiveQuote builds a quote for id. ChangePct is measured against the
// catalogue base value when the asset is known.
func NewLiveQuote(id string, state PriceState) LiveQuote {
	q := LiveQuote{
		ID:         id,
		Name:       id,
		Current:    state.Current,
		Previous:   state.Previous,
		Direction:  state.Direction,
		LastUpdate: state.LastUpdate,
	}
	if info, ok := LookupAsset(id); ok {
		q.Name = info.Name
		q.Category = info.Category
		if info.Asset.BaseValue > 0 {
			q.ChangePct = RoundTo((state.Current-info.Asset.BaseValue)/info.Asset.BaseValue*100, DisplayPlaces)
		}
	}
	return q
}
