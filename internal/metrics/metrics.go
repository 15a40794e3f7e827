// Package metrics exposes device telemetry in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the appliance on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   prometheus.Counter
	errorsTotal     prometheus.Counter
	commandsTotal   *prometheus.CounterVec
	droppedCommands prometheus.Counter
	stationFailures prometheus.Counter
	sampleOverflows prometheus.Gauge
	probeFailures   prometheus.Gauge
	playbackState   prometheus.Gauge
	recoveryState   prometheus.Gauge
	volume          prometheus.Gauge
	bufferPercent   prometheus.Gauge
	stations        prometheus.Gauge
}

// New creates and registers the appliance metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiobox_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiobox_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radiobox_commands_total",
			Help: "Total number of commands applied, by kind",
		}, []string{"kind"}),
		droppedCommands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiobox_commands_dropped_total",
			Help: "Total number of commands rejected because the queue was full",
		}),
		stationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiobox_station_failures_total",
			Help: "Total number of playback sessions that ended in error",
		}),
		sampleOverflows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radiobox_sampler_overflows",
			Help: "Sample batches dropped by the visualizer since start",
		}),
		probeFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radiobox_probe_failures",
			Help: "Failed connectivity probes since start",
		}),
		playbackState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radiobox_playback_state",
			Help: "Playback state (0 idle, 1 connecting, 2 starting, 3 buffering, 4 playing, 5 error)",
		}),
		recoveryState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radiobox_recovery_state",
			Help: "Network recovery state (0 ok, 1 auto, 2 manual, 3 rebooting)",
		}),
		volume: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radiobox_volume",
			Help: "Output volume in [0, 1]",
		}),
		bufferPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radiobox_prebuffer_percent",
			Help: "Fill level of the network prebuffer",
		}),
		stations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radiobox_stations",
			Help: "Number of configured stations",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.commandsTotal,
		m.droppedCommands,
		m.stationFailures,
		m.sampleOverflows,
		m.probeFailures,
		m.playbackState,
		m.recoveryState,
		m.volume,
		m.bufferPercent,
		m.stations,
	)
	return m
}

func (m *Metrics) IncRequests() { m.requestsTotal.Inc() }

func (m *Metrics) IncErrors() { m.errorsTotal.Inc() }

// IncCommand counts one applied command of the given kind.
func (m *Metrics) IncCommand(kind string) {
	m.commandsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncDroppedCommands() { m.droppedCommands.Inc() }

func (m *Metrics) IncStationFailures() { m.stationFailures.Inc() }

// Snapshot is the set of gauge values refreshed before each scrape.
type Snapshot struct {
	PlaybackState   int
	RecoveryState   int
	Volume          float64
	BufferPercent   int
	Stations        int
	SampleOverflows uint64
	ProbeFailures   uint64
}

// Update sets every gauge from s.
func (m *Metrics) Update(s Snapshot) {
	m.playbackState.Set(float64(s.PlaybackState))
	m.recoveryState.Set(float64(s.RecoveryState))
	m.volume.Set(s.Volume)
	m.bufferPercent.Set(float64(s.BufferPercent))
	m.stations.Set(float64(s.Stations))
	m.sampleOverflows.Set(float64(s.SampleOverflows))
	m.probeFailures.Set(float64(s.ProbeFailures))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}
