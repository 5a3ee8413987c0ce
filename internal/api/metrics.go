package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AaronLay10/SentientJobs/internal/events"
	"github.com/AaronLay10/SentientJobs/internal/sim"
	"github.com/AaronLay10/SentientJobs/internal/version"
)

// Metrics groups the engine's Prometheus instruments. Each instance owns its
// registry.
type Metrics struct {
	registry *prometheus.Registry

	Events        *prometheus.CounterVec
	Ticks         prometheus.Counter
	TickDuration  prometheus.Histogram
	TriggerStarts prometheus.Counter
	Jobs          prometheus.Gauge
	Entities      prometheus.Gauge
}

// NewMetrics registers the instruments under namespace.
func NewMetrics(namespace, instance string) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"instance": instance, "version": version.Version}
	started := time.Now()

	m := &Metrics{
		registry: reg,
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events emitted by name.",
		}, []string{"event"}),
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Simulation ticks run.",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in one tick.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		TriggerStarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_starts_total",
			Help:      "Jobs started by triggers.",
		}),
		Jobs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs",
			Help:      "Jobs bound to entities.",
		}),
		Entities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entities",
			Help:      "Live entities.",
		}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "uptime_seconds",
		Help:        "Seconds since the engine started.",
		ConstLabels: labels,
	}, func() float64 { return time.Since(started).Seconds() })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_clients",
		Help:      "Active WebSocket event subscribers.",
	}, func() float64 { return float64(events.SubscriberCount()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mqtt_connected",
		Help:      "Whether the MQTT broker is connected (1) or not (0).",
	}, func() float64 {
		_, mqtt, _ := connectivity()
		return boolGauge(mqtt)
	})
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "journal_connected",
		Help:      "Whether the event journal is reachable (1) or not (0).",
	}, func() float64 {
		_, _, journal := connectivity()
		return boolGauge(journal)
	})

	return m
}

// ObserveEvent counts an emitted event. Register it with events.Observe.
func (m *Metrics) ObserveEvent(e events.Event) {
	m.Events.WithLabelValues(e.Name).Inc()
}

// ObserveTick records one finished tick. Wire it to sim.Options.OnTick.
func (m *Metrics) ObserveTick(st sim.TickStats) {
	m.Ticks.Inc()
	m.TickDuration.Observe(st.Duration.Seconds())
	m.TriggerStarts.Add(float64(st.Started))
	m.Jobs.Set(float64(st.Jobs))
	m.Entities.Set(float64(st.Entities))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
