// Package pipeline runs one frame of detections through class filtering, the zone filter, seat
// assignment and temporal smoothing, and tracks the monitoring session those frames belong to.
package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seatsense/seat-monitor/internal/assign"
	"github.com/seatsense/seat-monitor/internal/logger"
	"github.com/seatsense/seat-monitor/internal/smoother"
	"github.com/seatsense/seat-monitor/internal/zonefilter"
	"github.com/seatsense/seat-monitor/internal/zones"
	"github.com/seatsense/seat-monitor/pkg/types"
)

// ErrNotRunning is returned when frames arrive or Stop is called without an active session.
var ErrNotRunning = errors.New("detection session not running")

// Config holds pipeline settings
type Config struct {
	Margin           float64
	Assign           assign.Config
	Smoothing        bool
	Smoother         smoother.Config
	ClassThresholds  map[string]float64 // empty map with DefaultThreshold 0 disables confidence filtering
	DefaultThreshold float64
	AllowedClasses   []string // empty allows every class
	ProgressEvery    uint64   // log progress every N frames, 0 disables
}

// DefaultConfig returns default pipeline configuration
func DefaultConfig() Config {
	return Config{
		Margin:           zonefilter.DefaultMargin,
		Assign:           assign.DefaultConfig(),
		Smoothing:        true,
		Smoother:         smoother.DefaultConfig(),
		ClassThresholds:  DefaultClassThresholds(),
		DefaultThreshold: DefaultThreshold,
		AllowedClasses:   DefaultAllowedClasses(),
		ProgressEvery:    10,
	}
}

// Observer receives every processed frame. Observers run while the pipeline lock is held,
// so they must not block or call back into the Processor.
type Observer interface {
	ObserveFrame(result *types.FrameResult, elapsed time.Duration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(result *types.FrameResult, elapsed time.Duration)

func (f ObserverFunc) ObserveFrame(result *types.FrameResult, elapsed time.Duration) {
	f(result, elapsed)
}

// SessionInfo describes the current monitoring session.
type SessionInfo struct {
	Running         bool      `json:"running"`
	SessionID       string    `json:"session_id,omitempty"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	FramesProcessed uint64    `json:"frames_processed"`
	Seats           int       `json:"seats"`
	Smoothing       bool      `json:"smoothing"`
	Method          string    `json:"method,omitempty"`
	WindowSize      int       `json:"window_size,omitempty"`
}

// Processor owns the per-session state. All methods are safe for concurrent use.
type Processor struct {
	cfg     Config
	zones   *zones.Zones
	engine  *assign.Engine
	classes classFilter
	now     func() time.Time

	mu        sync.Mutex
	smoother  *smoother.Smoother // nil when smoothing is off
	running   bool
	sessionID string
	startedAt time.Time
	frames    uint64
	latest    *types.FrameResult
	observers []Observer
}

// New creates a stopped Processor for the given zones.
func New(cfg Config, z *zones.Zones) (*Processor, error) {
	if z == nil || z.Len() == 0 {
		return nil, fmt.Errorf("pipeline: no seat zones configured")
	}
	if cfg.Margin < 0 {
		return nil, fmt.Errorf("pipeline: negative zone margin %v", cfg.Margin)
	}

	engine := assign.New(cfg.Assign)
	allowed := cfg.AllowedClasses
	if len(allowed) > 0 {
		// The allow list never hides the class that marks a seat occupied.
		allowed = append(slices.Clone(allowed), engine.Config().PrivilegedClass)
	}

	p := &Processor{
		cfg:     cfg,
		zones:   z,
		engine:  engine,
		classes: newClassFilter(cfg.ClassThresholds, cfg.DefaultThreshold, allowed),
		now:     time.Now,
	}
	if cfg.Smoothing {
		s, err := smoother.New(cfg.Smoother)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		p.smoother = s
	}
	return p, nil
}

// AddObserver registers o for every subsequent frame.
func (p *Processor) AddObserver(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Zones returns the seat zones the processor was built with.
func (p *Processor) Zones() *zones.Zones {
	return p.zones
}

// Config returns the processor's configuration.
func (p *Processor) Config() Config {
	return p.cfg
}

// Start begins a new session with fresh smoothing history. If a session is already running
// its id is returned with alreadyRunning set and nothing changes.
func (p *Processor) Start() (sessionID string, alreadyRunning bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return p.sessionID, true
	}

	p.running = true
	p.sessionID = uuid.NewString()
	p.startedAt = p.now()
	p.frames = 0
	p.latest = nil
	if p.smoother != nil {
		p.smoother.Reset()
	}

	logger.Info("Pipeline", "Session %s started (%d seats, smoothing=%s)", p.sessionID, p.zones.Len(), p.methodLocked())
	return p.sessionID, false
}

// Stop ends the running session.
func (p *Processor) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrNotRunning
	}
	p.running = false
	logger.Info("Pipeline", "Session %s stopped after %d frames", p.sessionID, p.frames)
	return nil
}

// Running reports whether a session is active.
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Session returns a snapshot of the session state.
func (p *Processor) Session() SessionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := SessionInfo{
		Running:         p.running,
		SessionID:       p.sessionID,
		StartedAt:       p.startedAt,
		FramesProcessed: p.frames,
		Seats:           p.zones.Len(),
		Smoothing:       p.smoother != nil,
	}
	if p.smoother != nil {
		info.Method = p.cfg.Smoother.Method.String()
		info.WindowSize = p.cfg.Smoother.WindowSize
	}
	return info
}

func (p *Processor) methodLocked() string {
	if p.smoother == nil {
		return "off"
	}
	return p.cfg.Smoother.Method.String()
}

// Process runs one frame through the pipeline. It fails with ErrNotRunning outside a session.
func (p *Processor) Process(frame types.Frame) (*types.FrameResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil, ErrNotRunning
	}

	start := time.Now()

	kept := p.classes.apply(frame.Detections)
	kept = zonefilter.Filter(kept, p.zones, p.cfg.Margin)
	seats := p.engine.Assign(kept, p.zones)
	if p.smoother != nil {
		p.smoother.Apply(seats)
	}

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = p.now()
	}

	result := &types.FrameResult{
		SessionID:       p.sessionID,
		FrameNumber:     frame.FrameNumber,
		Timestamp:       ts,
		Seats:           seats,
		StatusCodes:     make(map[string]int, len(seats)),
		DetectionsTotal: len(frame.Detections),
		DetectionsKept:  len(kept),
	}
	for _, s := range seats {
		result.StatusCodes[strings.ToUpper(s.SeatID)] = s.Status.Code()
		if s.Status == types.StatusOccupied {
			result.Occupied++
		}
	}

	p.frames++
	p.latest = result

	if p.cfg.ProgressEvery > 0 && p.frames%p.cfg.ProgressEvery == 0 {
		logger.Info("Pipeline", "Frame %d: %d detections (%d kept), %d/%d seats occupied, smoothing=%s",
			frame.FrameNumber, result.DetectionsTotal, result.DetectionsKept, result.Occupied, len(seats), p.methodLocked())
	}

	elapsed := time.Since(start)
	for _, o := range p.observers {
		o.ObserveFrame(result, elapsed)
	}

	return Clone(result), nil
}

// Latest returns a copy of the most recent frame result of the current session.
func (p *Processor) Latest() (*types.FrameResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return nil, false
	}
	return Clone(p.latest), true
}

// ResetSmoother clears smoothing history for the given seats, or for every seat when none
// are given. It is a no-op when smoothing is off.
func (p *Processor) ResetSmoother(seatIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.smoother != nil {
		p.smoother.Reset(seatIDs...)
	}
}

// History returns the smoothing window of one seat, oldest first.
func (p *Processor) History(seatID string) []types.SeatStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.smoother == nil {
		return []types.SeatStatus{}
	}
	return p.smoother.History(seatID)
}

// SmootherStats returns smoother diagnostics. ok is false when smoothing is off.
func (p *Processor) SmootherStats() (stats smoother.Stats, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.smoother == nil {
		return smoother.Stats{}, false
	}
	return p.smoother.Stats(), true
}

// Clone deep-copies a frame result so callers can hand it across goroutines.
func Clone(r *types.FrameResult) *types.FrameResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Seats = make([]types.SeatAssignmentResult, len(r.Seats))
	for i, s := range r.Seats {
		s.Detections = slices.Clone(s.Detections)
		out.Seats[i] = s
	}
	out.StatusCodes = maps.Clone(r.StatusCodes)
	return &out
}
