// Package metrics exposes Prometheus metrics, health and engine state over HTTP.
package metrics

import (
	"time"

	"squeezetrader/internal/model"
	"squeezetrader/internal/strategy"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the squeeze engine.
type Metrics struct {
	BarsTotal      *prometheus.CounterVec // labels: symbol
	BarsSkipped    *prometheus.CounterVec // labels: symbol, reason
	EvalDuration   prometheus.Histogram
	Entries        *prometheus.CounterVec // labels: symbol
	StopRatchets   *prometheus.CounterVec // labels: symbol
	TargetRatchets *prometheus.CounterVec // labels: symbol
	Exits          *prometheus.CounterVec // labels: symbol, reason
	OrderEvents    *prometheus.CounterVec // labels: symbol, state
	IntentErrors   *prometheus.CounterVec // labels: symbol
	SqueezeLatched *prometheus.GaugeVec   // labels: symbol
	PositionQty    *prometheus.GaugeVec   // labels: symbol

	// Feed and pipeline
	FeedReconnects       prometheus.Counter
	FeedDrops            prometheus.Counter
	StaleBars            prometheus.Counter
	FanoutDropsTotal     *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: channel_name
	DecodeErrors         *prometheus.CounterVec // labels: stream

	// Storage
	SQLiteCommitDur          prometheus.Histogram
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// Market session
	MarketState prometheus.Gauge // 0=closed, 1=open
}

// New creates all metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BarsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squeeze_bars_total",
			Help: "Completed bars evaluated by the engine",
		}, []string{"symbol"}),
		BarsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squeeze_bars_skipped_total",
			Help: "Bars skipped without evaluation (by reason)",
		}, []string{"symbol", "reason"}),
		EvalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "squeeze_bar_eval_duration_seconds",
			Help:    "Engine evaluation latency per bar",
			Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		Entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squeeze_entries_total",
			Help: "Long entry intents issued",
		}, []string{"symbol"}),
		StopRatchets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squeeze_stop_ratchets_total",
			Help: "Trailing stop raises",
		}, []string{"symbol"}),
		TargetRatchets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squeeze_target_ratchets_total",
			Help: "Trailing target raises",
		}, []string{"symbol"}),
		Exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squeeze_exits_total",
			Help: "Exit intents issued (by reason)",
		}, []string{"symbol", "reason"}),
		OrderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squeeze_order_events_total",
			Help: "Order events received (by state)",
		}, []string{"symbol", "state"}),
		IntentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squeeze_intent_errors_total",
			Help: "Intents that could not be handed to the order subsystem",
		}, []string{"symbol"}),
		SqueezeLatched: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "squeeze_latched",
			Help: "1 once the first squeeze release has been seen",
		}, []string{"symbol"}),
		PositionQty: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "squeeze_position_qty",
			Help: "Open long contracts",
		}, []string{"symbol"}),

		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squeeze_feed_reconnects_total",
			Help: "Bar feed reconnection attempts",
		}),
		FeedDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squeeze_feed_dropped_messages_total",
			Help: "Feed messages dropped (undecodable or unsubscribed)",
		}),
		StaleBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squeeze_stale_bars_total",
			Help: "Input bars rejected by the resampler as late",
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squeeze_fanout_drops_total",
			Help: "Bars dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "squeeze_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squeeze_stream_decode_errors_total",
			Help: "Redis stream messages that failed to decode",
		}, []string{"stream"}),

		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "squeeze_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "squeeze_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squeeze_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "squeeze_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
	}

	reg.MustRegister(
		m.BarsTotal,
		m.BarsSkipped,
		m.EvalDuration,
		m.Entries,
		m.StopRatchets,
		m.TargetRatchets,
		m.Exits,
		m.OrderEvents,
		m.IntentErrors,
		m.SqueezeLatched,
		m.PositionQty,
		m.FeedReconnects,
		m.FeedDrops,
		m.StaleBars,
		m.FanoutDropsTotal,
		m.ChannelSaturationPct,
		m.DecodeErrors,
		m.SQLiteCommitDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.MarketState,
	)
	return m
}

// EngineHooks returns strategy hooks that record engine activity for symbol.
// positions may be nil.
func (m *Metrics) EngineHooks(symbol string, positions model.PositionReader) strategy.Hooks {
	return strategy.Hooks{
		OnBar: func(elapsed time.Duration) {
			m.BarsTotal.WithLabelValues(symbol).Inc()
			m.EvalDuration.Observe(elapsed.Seconds())
			if positions != nil {
				pos := positions.Position()
				m.PositionQty.WithLabelValues(symbol).Set(float64(pos.Qty))
			}
		},
		OnSkip: func(reason string) {
			m.BarsSkipped.WithLabelValues(symbol, reason).Inc()
		},
		OnEntry: func(model.Bar, strategy.EntryDecision) {
			m.Entries.WithLabelValues(symbol).Inc()
		},
		OnStopRatchet: func(float64) {
			m.StopRatchets.WithLabelValues(symbol).Inc()
		},
		OnTargetRatchet: func(float64) {
			m.TargetRatchets.WithLabelValues(symbol).Inc()
		},
		OnExit: func(_ model.Bar, reason string) {
			m.Exits.WithLabelValues(symbol, reason).Inc()
		},
		OnOrderEvent: func(ev model.OrderEvent) {
			m.OrderEvents.WithLabelValues(symbol, string(ev.State)).Inc()
		},
		OnIntentError: func(string, error) {
			m.IntentErrors.WithLabelValues(symbol).Inc()
		},
		OnStateChange: func(s strategy.EngineState) {
			v := 0.0
			if s.SqueezeLatched {
				v = 1
			}
			m.SqueezeLatched.WithLabelValues(symbol).Set(v)
		},
	}
}

// RecordBreakerState updates the breaker gauges; pass it as the circuit
// breaker's state change callback.
func (m *Metrics) RecordBreakerState(state int, tripped bool) {
	m.RedisCircuitBreakerState.Set(float64(state))
	if tripped {
		m.RedisCircuitBreakerTrips.Inc()
	}
}
