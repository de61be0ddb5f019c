package webmonitor

import (
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/seatsense/seat-monitor/internal/logger"
	"github.com/seatsense/seat-monitor/internal/metrics"
	"github.com/seatsense/seat-monitor/internal/pipeline"
	"github.com/seatsense/seat-monitor/internal/publish"
	"github.com/seatsense/seat-monitor/internal/recorder"
	"github.com/seatsense/seat-monitor/pkg/types"
)

// Monitor sits between the HTTP layer and the pipeline: it records accepted frames, keeps
// counters and remembers the most recent status changes.
type Monitor struct {
	proc      *pipeline.Processor
	recorder  *recorder.Recorder
	metrics   *metrics.Metrics
	startTime time.Time
	maxHist   int

	mu        sync.Mutex
	history   []publish.StatusUpdate // newest first
	lastCodes map[string]int
	lastFrame time.Time
	fps       float64
}

// NewMonitor creates a Monitor and registers it with proc.
func NewMonitor(proc *pipeline.Processor, rec *recorder.Recorder, m *metrics.Metrics, historySize int) *Monitor {
	mon := &Monitor{
		proc:      proc,
		recorder:  rec,
		metrics:   m,
		startTime: time.Now(),
		maxHist:   max(historySize, 1),
	}
	proc.AddObserver(mon)
	return mon
}

// Ingest runs one frame through the pipeline.
func (m *Monitor) Ingest(frame types.Frame) (*types.FrameResult, error) {
	m.metrics.FramesIngested.Add(1)

	result, err := m.proc.Process(frame)
	if err != nil {
		m.metrics.FramesRejected.Add(1)
		if !errors.Is(err, pipeline.ErrNotRunning) {
			m.metrics.IngestErrors.Add(1)
		}
		return nil, err
	}

	if m.recorder != nil && m.recorder.SendFrame(frame) {
		status := m.recorder.GetStatus()
		m.metrics.RecordingFrames.Store(status.FrameCount)
		m.metrics.RecordingBytes.Store(status.BytesWritten)
	}
	return result, nil
}

// Start begins a detection session. History from the previous session is discarded.
func (m *Monitor) Start() (string, bool) {
	id, already := m.proc.Start()
	if already {
		return id, true
	}
	m.metrics.ResetSeats()

	m.mu.Lock()
	m.history = nil
	m.lastCodes = nil
	m.lastFrame = time.Time{}
	m.fps = 0
	m.mu.Unlock()
	return id, false
}

// Stop ends the detection session.
func (m *Monitor) Stop() error {
	return m.proc.Stop()
}

// ObserveFrame tracks frame rate and status changes. It runs under the pipeline lock.
func (m *Monitor) ObserveFrame(result *types.FrameResult, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if !m.lastFrame.IsZero() {
		if dt := now.Sub(m.lastFrame).Seconds(); dt > 0 {
			inst := 1 / dt
			if m.fps == 0 {
				m.fps = inst
			} else {
				m.fps = 0.9*m.fps + 0.1*inst
			}
		}
	}
	m.lastFrame = now

	if maps.Equal(m.lastCodes, result.StatusCodes) {
		return
	}
	update := publish.NewStatusUpdate(result)
	if m.lastCodes != nil {
		logger.Debug("Monitor", "Status change at frame %d: %v", result.FrameNumber, update.StatusCodes)
	}
	m.lastCodes = maps.Clone(result.StatusCodes)
	m.history = append([]publish.StatusUpdate{update}, m.history...)
	if len(m.history) > m.maxHist {
		m.history = m.history[:m.maxHist]
	}
}

// Snapshot returns the payload for /api/status.
func (m *Monitor) Snapshot() StatusPayload {
	// Pipeline state first: ObserveFrame takes m.mu while the pipeline lock is held.
	session := m.proc.Session()
	latest, _ := m.proc.Latest()

	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]publish.StatusUpdate, len(m.history))
	copy(history, m.history)

	return StatusPayload{
		Session: session,
		Monitor: MonitorStats{
			UptimeSeconds:  time.Since(m.startTime).Seconds(),
			FramesIngested: m.metrics.FramesIngested.Load(),
			FramesRejected: m.metrics.FramesRejected.Load(),
			CurrentFPS:     m.fps,
			ActiveClients:  m.metrics.ActiveClients.Load(),
		},
		Latest:    latest,
		History:   history,
		Timestamp: float64(time.Now().Unix()),
	}
}
