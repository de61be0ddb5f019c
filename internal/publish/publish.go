// Package publish delivers processed frames to external consumers such as Redis Streams and
// MQTT. Delivery runs on its own goroutine so a slow broker never stalls frame processing.
package publish

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seatsense/seat-monitor/internal/pipeline"
	"github.com/seatsense/seat-monitor/pkg/types"
)

// Sink delivers frame results somewhere.
type Sink interface {
	Name() string
	Publish(ctx context.Context, result *types.FrameResult) error
	Close() error
}

// StatusUpdate is the compact per-frame event: wall-clock time and one code per seat.
type StatusUpdate struct {
	Timestamp   string         `json:"timestamp"`
	StatusCodes map[string]int `json:"status_codes"`
}

// NewStatusUpdate builds the compact event for r. Seat ids are uppercased.
func NewStatusUpdate(r *types.FrameResult) StatusUpdate {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	codes := make(map[string]int, len(r.Seats))
	for _, s := range r.Seats {
		codes[strings.ToUpper(s.SeatID)] = s.Status.Code()
	}
	return StatusUpdate{
		Timestamp:   ts.Local().Format(time.TimeOnly),
		StatusCodes: codes,
	}
}

// Hooks are optional callbacks for delivery bookkeeping.
type Hooks struct {
	OnPublished func(sink string)
	OnError     func(sink string, err error)
}

// Dispatcher fans results out to every sink from a single background goroutine.
type Dispatcher struct {
	sinks   []Sink
	hooks   Hooks
	log     *zap.Logger
	timeout time.Duration

	queue   chan *types.FrameResult
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// NewDispatcher creates a dispatcher with a queue of the given size.
func NewDispatcher(log *zap.Logger, buffer int, hooks Hooks, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if buffer < 1 {
		buffer = 1
	}
	return &Dispatcher{
		sinks:   sinks,
		hooks:   hooks,
		log:     log,
		timeout: 2 * time.Second,
		queue:   make(chan *types.FrameResult, buffer),
		done:    make(chan struct{}),
	}
}

// Len returns the number of sinks.
func (d *Dispatcher) Len() int {
	return len(d.sinks)
}

// Start launches the delivery goroutine.
func (d *Dispatcher) Start() {
	go d.run()
}

// ObserveFrame enqueues a copy of result without blocking; when the queue is full the frame is dropped.
// It satisfies pipeline.Observer.
func (d *Dispatcher) ObserveFrame(result *types.FrameResult, _ time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- pipeline.Clone(result):
	default:
		d.dropped++
		d.log.Warn("publish queue full, dropping frame",
			zap.Uint64("frame_number", result.FrameNumber),
			zap.Uint64("dropped", d.dropped))
	}
}

// Dropped returns how many frames were dropped because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for result := range d.queue {
		for _, s := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			err := s.Publish(ctx, result)
			cancel()
			if err != nil {
				d.log.Error("publish failed", zap.String("sink", s.Name()), zap.Error(err))
				if d.hooks.OnError != nil {
					d.hooks.OnError(s.Name(), err)
				}
				continue
			}
			if d.hooks.OnPublished != nil {
				d.hooks.OnPublished(s.Name())
			}
		}
	}
}

// Close drains the queue, waits for the goroutine started by Start and closes every sink.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done

	var firstErr error
	for _, s := range d.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
