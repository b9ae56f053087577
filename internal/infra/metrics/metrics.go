// Package metrics provides the Prometheus collectors of the shuffler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ContainerFetchesTotal *prometheus.CounterVec
	TracksSampledTotal    prometheus.Counter
	FetchDuration         prometheus.Histogram
	SwipesTotal           *prometheus.CounterVec
	ReplenishTotal        *prometheus.CounterVec
	PublishTotal          *prometheus.CounterVec
	AuthTransitionsTotal  *prometheus.CounterVec
	CacheLookupsTotal     *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ContainerFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musicshuffler_container_fetches_total",
				Help: "Container fetches by result",
			},
			[]string{"result"},
		),
		TracksSampledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "musicshuffler_tracks_sampled_total",
				Help: "Tracks produced by the sampler",
			},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "musicshuffler_sample_duration_seconds",
				Help:    "Time spent resolving one sample",
				Buckets: prometheus.DefBuckets,
			},
		),
		SwipesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musicshuffler_swipes_total",
				Help: "Swipes by direction",
			},
			[]string{"direction"},
		),
		ReplenishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musicshuffler_replenish_total",
				Help: "Replenishment fetches by outcome",
			},
			[]string{"outcome"},
		),
		PublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musicshuffler_publish_total",
				Help: "Playlist publish attempts by outcome",
			},
			[]string{"outcome"},
		),
		AuthTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musicshuffler_auth_transitions_total",
				Help: "Authorization state transitions by target state",
			},
			[]string{"state"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musicshuffler_cache_lookups_total",
				Help: "Response cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
	}

	m.registry.MustRegister(
		m.ContainerFetchesTotal,
		m.TracksSampledTotal,
		m.FetchDuration,
		m.SwipesTotal,
		m.ReplenishTotal,
		m.PublishTotal,
		m.AuthTransitionsTotal,
		m.CacheLookupsTotal,
	)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ContainerFetch records one container fetch.
func (m *Metrics) ContainerFetch(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ContainerFetchesTotal.WithLabelValues(result).Inc()
}

// Sampled records the outcome of one sample call.
func (m *Metrics) Sampled(tracks int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TracksSampledTotal.Add(float64(tracks))
	m.FetchDuration.Observe(elapsed.Seconds())
}

// Swipe records a swipe.
func (m *Metrics) Swipe(direction string) {
	if m == nil {
		return
	}
	m.SwipesTotal.WithLabelValues(direction).Inc()
}

// Replenish records a replenishment outcome ("appended", "stale", "error").
func (m *Metrics) Replenish(outcome string) {
	if m == nil {
		return
	}
	m.ReplenishTotal.WithLabelValues(outcome).Inc()
}

// Publish records a publish outcome.
func (m *Metrics) Publish(outcome string) {
	if m == nil {
		return
	}
	m.PublishTotal.WithLabelValues(outcome).Inc()
}

// AuthTransition records a transition of the authorization state.
func (m *Metrics) AuthTransition(state string) {
	if m == nil {
		return
	}
	m.AuthTransitionsTotal.WithLabelValues(state).Inc()
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(cache, result).Inc()
}
