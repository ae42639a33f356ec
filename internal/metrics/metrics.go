package metrics

import (
	"dinar-ticker/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	conversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_conversions_total",
			Help: "Total number of conversions by rate source and outcome",
		},
		[]string{"source", "outcome"},
	)

	liveUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_price_updates_total",
			Help: "Total number of simulated price updates",
		},
		[]string{"asset", "direction"},
	)

	livePrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "live_price_value",
			Help: "Current simulated price per asset",
		},
		[]string{"asset"},
	)
)

// ObserveConversion counts a conversion. outcome is "ok" or an error class.
func ObserveConversion(source, outcome string) {
	conversionsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveLiveUpdate records a committed simulator update. It only touches
// in-memory collectors and never blocks.
func ObserveLiveUpdate(asset string, state domain.PriceState) {
	liveUpdatesTotal.WithLabelValues(asset, string(state.Direction)).Inc()
	livePrice.WithLabelValues(asset).Set(state.Current)
}
