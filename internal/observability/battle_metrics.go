package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BattleCollector exposes tick loop metrics.
type BattleCollector struct {
	gatherer prometheus.Gatherer

	TickDuration prometheus.Histogram
	TicksTotal   prometheus.Counter
	AgentsAlive  prometheus.Gauge
	SkippedTurns prometheus.Counter
	ForcedStops  prometheus.Counter
	Outcomes     *prometheus.CounterVec
}

// NewBattleCollector registers battle metrics against the provided registerer.
func NewBattleCollector(reg prometheus.Registerer) (*BattleCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Wall time of one battle tick, from wake to published snapshot.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	tickHistogram, err := registerHistogram(reg, tickHistogram, "arena_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_ticks_total",
		Help: "Cumulative number of battle ticks simulated.",
	})
	ticks, err = registerCounter(reg, ticks, "arena_ticks_total")
	if err != nil {
		return nil, err
	}

	alive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arena_agents_alive",
		Help: "Number of agents alive at the last published tick.",
	})
	alive, err = registerGauge(reg, alive, "arena_agents_alive")
	if err != nil {
		return nil, err
	}

	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_skipped_turns_total",
		Help: "Cumulative number of turns agents failed to synchronize within the turn timeout.",
	})
	skipped, err = registerCounter(reg, skipped, "arena_skipped_turns_total")
	if err != nil {
		return nil, err
	}

	forced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_forced_stops_total",
		Help: "Cumulative number of agents forcibly stopped by their host.",
	})
	forced, err = registerCounter(reg, forced, "arena_forced_stops_total")
	if err != nil {
		return nil, err
	}

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_agent_outcomes_total",
		Help: "Agent run outcomes, labeled by kind.",
	}, []string{"outcome"})
	outcomes, err = registerCounterVec(reg, outcomes, "arena_agent_outcomes_total")
	if err != nil {
		return nil, err
	}

	return &BattleCollector{
		gatherer:     gatherer,
		TickDuration: tickHistogram,
		TicksTotal:   ticks,
		AgentsAlive:  alive,
		SkippedTurns: skipped,
		ForcedStops:  forced,
		Outcomes:     outcomes,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *BattleCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one completed tick.
func (c *BattleCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	if c.TickDuration != nil {
		c.TickDuration.Observe(d.Seconds())
	}
	if c.TicksTotal != nil {
		c.TicksTotal.Inc()
	}
}

// SetAgentsAlive satisfies state.BattleMetricsRecorder.
func (c *BattleCollector) SetAgentsAlive(n int) {
	if c == nil || c.AgentsAlive == nil {
		return
	}
	c.AgentsAlive.Set(float64(n))
}

// IncSkippedTurns counts one skipped turn.
func (c *BattleCollector) IncSkippedTurns() {
	if c == nil || c.SkippedTurns == nil {
		return
	}
	c.SkippedTurns.Inc()
}

// IncForcedStops counts one forced stop.
func (c *BattleCollector) IncForcedStops() {
	if c == nil || c.ForcedStops == nil {
		return
	}
	c.ForcedStops.Inc()
}

// RecordOutcome counts an agent's final outcome.
func (c *BattleCollector) RecordOutcome(kind string) {
	if c == nil || c.Outcomes == nil {
		return
	}
	c.Outcomes.WithLabelValues(kind).Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
