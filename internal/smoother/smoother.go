// Package smoother stabilises per-seat status over time to suppress frame-to-frame flicker.
//
// A Smoother keeps, per seat, a bounded window of the most recent raw statuses and derives the
// emitted status from it with one of three methods chosen at construction. A Smoother is not
// safe for concurrent use: it must have a single owner that serialises Update and Reset calls.
package smoother

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/seatsense/seat-monitor/pkg/types"
)

var (
	ErrUnknownMethod = errors.New("unknown smoothing method")
	ErrInvalidConfig = errors.New("invalid smoother config")
)

// Method selects the smoothing strategy.
type Method int

const (
	MajorityVoting Method = iota
	Hysteresis
	Exponential
)

var methodNames = map[Method]string{
	MajorityVoting: "majority_voting",
	Hysteresis:     "hysteresis",
	Exponential:    "exponential",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod parses majority_voting, hysteresis or exponential.
func ParseMethod(s string) (Method, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range methodNames {
		if n == name {
			return m, nil
		}
	}
	return MajorityVoting, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Config holds the smoothing knobs.
type Config struct {
	Method              Method
	WindowSize          int     // frames kept per seat
	HysteresisThreshold int     // consecutive disagreeing frames before a change is accepted
	Alpha               float64 // exponential decay factor, (0, 1]
}

// DefaultConfig returns the defaults used by the monitor.
func DefaultConfig() Config {
	return Config{
		Method:              MajorityVoting,
		WindowSize:          3,
		HysteresisThreshold: 3,
		Alpha:               0.3,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if _, ok := methodNames[c.Method]; !ok {
		return fmt.Errorf("%w: %v", ErrUnknownMethod, c.Method)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window size must be at least 1, got %d", ErrInvalidConfig, c.WindowSize)
	}
	if c.Method == Hysteresis && c.HysteresisThreshold < 1 {
		return fmt.Errorf("%w: hysteresis threshold must be at least 1, got %d", ErrInvalidConfig, c.HysteresisThreshold)
	}
	if c.Method == Exponential && (c.Alpha <= 0 || c.Alpha > 1) {
		return fmt.Errorf("%w: alpha must be in (0, 1], got %g", ErrInvalidConfig, c.Alpha)
	}
	return nil
}

type seatState struct {
	history     *window
	transitions int
	lastOutput  types.SeatStatus
}

// Smoother holds the smoothing state of every seat seen so far.
type Smoother struct {
	cfg   Config
	strat strategy
	seats map[string]*seatState
}

// New validates cfg and returns an empty Smoother.
func New(cfg Config) (*Smoother, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var strat strategy
	switch cfg.Method {
	case MajorityVoting:
		strat = majorityVoting{}
	case Hysteresis:
		strat = hysteresis{threshold: cfg.HysteresisThreshold}
	case Exponential:
		strat = exponential{alpha: cfg.Alpha}
	}
	return &Smoother{
		cfg:   cfg,
		strat: strat,
		seats: make(map[string]*seatState),
	}, nil
}

// Config returns the configuration the Smoother was built with.
func (s *Smoother) Config() Config {
	return s.cfg
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Update records raw for the seat and returns the smoothed status. The first observation of a
// seat (or the first after a reset) is returned unchanged.
func (s *Smoother) Update(seatID string, raw types.SeatStatus) types.SeatStatus {
	id := normalizeID(seatID)
	st, ok := s.seats[id]
	if !ok {
		st = &seatState{history: newWindow(s.cfg.WindowSize), lastOutput: raw}
		st.history.push(raw)
		s.seats[id] = st
		return raw
	}
	st.history.push(raw)
	out := s.strat.next(st, raw)
	st.lastOutput = out
	return out
}

// UpdateBatch smooths one frame's worth of raw statuses keyed by seat id, visiting seats in
// sorted id order. Apply is the zone-ordered form used by the pipeline.
func (s *Smoother) UpdateBatch(raw map[string]types.SeatStatus) map[string]types.SeatStatus {
	out := make(map[string]types.SeatStatus, len(raw))
	for _, id := range slices.Sorted(maps.Keys(raw)) {
		out[id] = s.Update(id, raw[id])
	}
	return out
}

// Apply smooths results in place: Status becomes the smoothed status, RawStatus keeps the
// frame's own status.
func (s *Smoother) Apply(results []types.SeatAssignmentResult) {
	for i := range results {
		r := &results[i]
		if r.RawStatus == "" {
			r.RawStatus = r.Status
		}
		r.Status = s.Update(r.SeatID, r.RawStatus)
	}
}

// Reset clears the given seats, or every seat when called without arguments.
func (s *Smoother) Reset(seatIDs ...string) {
	if len(seatIDs) == 0 {
		clear(s.seats)
		return
	}
	for _, id := range seatIDs {
		delete(s.seats, normalizeID(id))
	}
}

// History returns a copy of the seat's raw window, oldest first.
func (s *Smoother) History(seatID string) []types.SeatStatus {
	st, ok := s.seats[normalizeID(seatID)]
	if !ok {
		return []types.SeatStatus{}
	}
	return st.history.values()
}

// SeatStats describes one seat's smoothing state.
type SeatStats struct {
	SeatID            string           `json:"seat_id"`
	HistoryLength     int              `json:"history_length"`
	CurrentStatus     types.SeatStatus `json:"current_status"`
	TransitionCounter int              `json:"transition_counter"`
}

// Stats is a diagnostic snapshot of the Smoother.
type Stats struct {
	Method       string      `json:"method"`
	WindowSize   int         `json:"window_size"`
	TrackedSeats int         `json:"tracked_seats"`
	Seats        []SeatStats `json:"seats"`
}

// Stats returns a snapshot with seats sorted by id.
func (s *Smoother) Stats() Stats {
	stats := Stats{
		Method:       s.cfg.Method.String(),
		WindowSize:   s.cfg.WindowSize,
		TrackedSeats: len(s.seats),
		Seats:        make([]SeatStats, 0, len(s.seats)),
	}
	for id, st := range s.seats {
		stats.Seats = append(stats.Seats, SeatStats{
			SeatID:            id,
			HistoryLength:     st.history.len(),
			CurrentStatus:     st.lastOutput,
			TransitionCounter: st.transitions,
		})
	}
	sort.Slice(stats.Seats, func(i, j int) bool { return stats.Seats[i].SeatID < stats.Seats[j].SeatID })
	return stats
}
