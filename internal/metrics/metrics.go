// Package metrics exposes control loop counters and gauges to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/nightlight/internal/control"
	"github.com/sweeney/nightlight/internal/logic"
)

// Metrics holds the nightlight collectors.
type Metrics struct {
	writes       prometheus.Counter
	writeErrors  prometheus.Counter
	resyncs      *prometheus.CounterVec
	events       *prometheus.CounterVec
	trusted      prometheus.Gauge
	synced       prometheus.Gauge
	ratio        prometheus.Gauge
	displayed    *prometheus.GaugeVec
	tickDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nightlight_writes_total",
			Help: "Colors successfully written to the fixture.",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nightlight_write_errors_total",
			Help: "Failed fixture writes.",
		}),
		resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nightlight_resyncs_total",
			Help: "Clock resync attempts by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nightlight_events_total",
			Help: "Light and clock events by type.",
		}, []string{"event"}),
		trusted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nightlight_clock_trusted",
			Help: "1 when the wall clock is trusted.",
		}),
		synced: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nightlight_clock_synced",
			Help: "1 when the last resync succeeded.",
		}),
		ratio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nightlight_ratio",
			Help: "Intensity ratio of the current appearance.",
		}),
		displayed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nightlight_displayed_channel",
			Help: "Displayed color channel value (0-255).",
		}, []string{"channel"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nightlight_tick_duration_seconds",
			Help:    "Time spent in one control loop tick.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	reg.MustRegister(m.writes, m.writeErrors, m.resyncs, m.events,
		m.trusted, m.synced, m.ratio, m.displayed, m.tickDuration)
	return m
}

// Observe records the outcome of one tick. st is the state after the tick.
func (m *Metrics) Observe(rep control.Report, st *logic.ControllerState, took time.Duration) {
	m.tickDuration.Observe(took.Seconds())

	if rep.ResyncAttempted {
		result := "ok"
		if rep.ResyncErr != nil {
			result = "failed"
		}
		m.resyncs.WithLabelValues(result).Inc()
	}
	if rep.Wrote {
		m.writes.Inc()
	}
	if rep.WriteErr != nil {
		m.writeErrors.Inc()
	}
	for _, ev := range rep.Events {
		m.events.WithLabelValues(string(ev.Type)).Inc()
	}

	m.trusted.Set(boolToFloat(rep.Trusted))
	m.synced.Set(boolToFloat(st.Synced))
	m.ratio.Set(float64(st.Current.Ratio))
	c := st.Current.Dimmed()
	m.displayed.WithLabelValues("r").Set(float64(c.R))
	m.displayed.WithLabelValues("g").Set(float64(c.G))
	m.displayed.WithLabelValues("b").Set(float64(c.B))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
