package metrics

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seatsense/seat-monitor/pkg/types"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame processing counters
	FramesIngested  atomic.Uint64
	FramesProcessed atomic.Uint64
	FramesRejected  atomic.Uint64
	DetectionsTotal atomic.Uint64
	DetectionsKept  atomic.Uint64

	// Error counters
	IngestErrors  atomic.Uint64
	PublishErrors atomic.Uint64

	// Latency tracking
	FrameLatencyMs   atomic.Uint64 // detector timestamp to processed, ms
	ProcessLatencyUs atomic.Uint64 // last pipeline run, microseconds

	// Occupancy
	SeatsOccupied atomic.Uint64

	// Stream client tracking
	ActiveClients atomic.Uint64
	TotalClients  atomic.Uint64

	// Recording state
	RecordingActive atomic.Uint64 // 0 = inactive, 1 = active
	RecordingBytes  atomic.Uint64
	RecordingFrames atomic.Uint64

	seatStatus  *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	published   *prometheus.CounterVec

	mu         sync.Mutex
	lastStatus map[string]types.SeatStatus

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry:   prometheus.NewRegistry(),
		lastStatus: make(map[string]types.SeatStatus),
	}

	// Register Prometheus gauges
	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) gauge(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	// Frame processing metrics
	m.gauge("seat_frames_ingested_total", "Total detection frames received", &m.FramesIngested)
	m.gauge("seat_frames_processed_total", "Total frames run through the pipeline", &m.FramesProcessed)
	m.gauge("seat_frames_rejected_total", "Total frames rejected (bad payload or no session)", &m.FramesRejected)
	m.gauge("seat_detections_total", "Total detections received", &m.DetectionsTotal)
	m.gauge("seat_detections_kept_total", "Total detections left after class and zone filtering", &m.DetectionsKept)

	// Error metrics
	m.gauge("seat_ingest_errors_total", "Total frame ingest errors", &m.IngestErrors)
	m.gauge("seat_publish_errors_total", "Total status publish errors", &m.PublishErrors)

	// Latency metrics
	m.gauge("seat_frame_latency_ms", "Latency from detector timestamp to processed result in milliseconds", &m.FrameLatencyMs)
	m.gauge("seat_process_latency_us", "Pipeline processing time of the last frame in microseconds", &m.ProcessLatencyUs)

	m.gauge("seat_occupied_seats", "Seats currently reported occupied", &m.SeatsOccupied)

	// Client metrics
	m.gauge("seat_active_clients", "Number of connected stream clients", &m.ActiveClients)
	m.gauge("seat_total_clients", "Total stream clients connected", &m.TotalClients)

	// Recording metrics
	m.gauge("seat_recording_active", "Recording active (0=inactive, 1=active)", &m.RecordingActive)
	m.gauge("seat_recording_bytes", "Total bytes written to recording", &m.RecordingBytes)
	m.gauge("seat_recording_frames", "Total frames written to recording", &m.RecordingFrames)

	m.seatStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "seat_status_code",
		Help: "Current status code per seat (1=occupied, 2=on-hold, 3=empty)",
	}, []string{"seat"})
	m.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_status_transitions_total",
		Help: "Emitted status changes per seat",
	}, []string{"seat", "from", "to"})
	m.published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_status_published_total",
		Help: "Status events delivered per sink",
	}, []string{"sink"})
	m.registry.MustRegister(m.seatStatus, m.transitions, m.published)
}

// ObserveFrame records one processed frame. It satisfies pipeline.Observer.
func (m *Metrics) ObserveFrame(result *types.FrameResult, elapsed time.Duration) {
	m.FramesProcessed.Add(1)
	m.DetectionsTotal.Add(uint64(result.DetectionsTotal))
	m.DetectionsKept.Add(uint64(result.DetectionsKept))
	m.SeatsOccupied.Store(uint64(result.Occupied))
	m.UpdateProcessLatency(elapsed)
	if !result.Timestamp.IsZero() {
		m.UpdateFrameLatency(result.Timestamp)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, seat := range result.Seats {
		id := strings.ToUpper(seat.SeatID)
		m.seatStatus.WithLabelValues(id).Set(float64(seat.Status.Code()))
		if prev, ok := m.lastStatus[id]; ok && prev != seat.Status {
			m.transitions.WithLabelValues(id, string(prev), string(seat.Status)).Inc()
		}
		m.lastStatus[id] = seat.Status
	}
}

// ResetSeats forgets previous statuses so a new session does not count a transition
// against the old one.
func (m *Metrics) ResetSeats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.lastStatus)
}

// Published counts one delivered event for sink.
func (m *Metrics) Published(sink string) {
	m.published.WithLabelValues(sink).Inc()
}

// UpdateFrameLatency updates the frame latency
func (m *Metrics) UpdateFrameLatency(captureTime time.Time) {
	latency := time.Since(captureTime).Milliseconds()
	if latency < 0 {
		latency = 0
	}
	m.FrameLatencyMs.Store(uint64(latency))
}

// UpdateProcessLatency updates the processing latency
func (m *Metrics) UpdateProcessLatency(duration time.Duration) {
	m.ProcessLatencyUs.Store(uint64(duration.Microseconds()))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts a dedicated metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
