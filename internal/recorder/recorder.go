package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/seatsense/seat-monitor/internal/logger"
	"github.com/seatsense/seat-monitor/pkg/types"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

// Recorder records incoming detection frames to a JSON Lines file for later replay
type Recorder struct {
	mu           sync.RWMutex
	file         *os.File
	filename     string
	basePath     string
	recording    bool
	frameCount   uint64
	bytesWritten uint64
	dropped      uint64
	startTime    time.Time
	frameChan    chan types.Frame
	wg           sync.WaitGroup
}

// NewRecorder creates a new recorder writing into basePath
func NewRecorder(basePath string) *Recorder {
	return &Recorder{basePath: basePath}
}

// Start starts recording to a new file and returns its path. An empty name picks a
// timestamped one.
func (r *Recorder) Start(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return "", ErrAlreadyRecording
	}

	if name == "" {
		name = fmt.Sprintf("frames_%s.jsonl", time.Now().Format("20060102_150405"))
	}
	name = filepath.Base(name)
	if !strings.HasSuffix(name, ".jsonl") {
		name += ".jsonl"
	}

	if err := os.MkdirAll(r.basePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording directory: %w", err)
	}
	path := filepath.Join(r.basePath, name)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	// Initialize state
	r.file = file
	r.filename = path
	r.recording = true
	r.frameCount = 0
	r.bytesWritten = 0
	r.dropped = 0
	r.startTime = time.Now()
	r.frameChan = make(chan types.Frame, 64)

	// Start recorder goroutine
	r.wg.Add(1)
	go r.writeFrames(r.frameChan)

	logger.Info("Recorder", "Recording frames to %s", path)
	return path, nil
}

// Stop stops recording, flushes queued frames and returns the file path
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return "", ErrNotRecording
	}
	r.recording = false
	close(r.frameChan)
	r.mu.Unlock()

	// Wait for write goroutine to drain
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.filename
	if r.file != nil {
		if err := r.file.Sync(); err != nil {
			return path, fmt.Errorf("failed to sync file: %w", err)
		}
		if err := r.file.Close(); err != nil {
			return path, fmt.Errorf("failed to close file: %w", err)
		}
		r.file = nil
	}

	logger.Info("Recorder", "Recording stopped: %s (%d frames, %d dropped)", path, r.frameCount, r.dropped)
	return path, nil
}

// SendFrame queues a frame for writing without blocking. It reports false when not
// recording or when the queue is full.
func (r *Recorder) SendFrame(frame types.Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return false
	}

	select {
	case r.frameChan <- frame:
		return true
	default:
		// Channel full, drop frame
		r.dropped++
		return false
	}
}

// writeFrames writes queued frames until the channel is closed
func (r *Recorder) writeFrames(frames <-chan types.Frame) {
	defer r.wg.Done()
	for frame := range frames {
		r.writeFrame(frame)
	}
}

// writeFrame appends one frame as a JSON line
func (r *Recorder) writeFrame(frame types.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		logger.Warn("Recorder", "Skipping frame %d: %v", frame.FrameNumber, err)
		return
	}
	data = append(data, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return
	}
	n, err := r.file.Write(data)
	if err != nil {
		logger.Warn("Recorder", "Write failed: %v", err)
		return
	}
	r.bytesWritten += uint64(n)
	r.frameCount++
}

// IsRecording returns true if currently recording
func (r *Recorder) IsRecording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// GetStatus returns the current recording status
func (r *Recorder) GetStatus() RecordingStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var duration time.Duration
	if r.recording {
		duration = time.Since(r.startTime)
	}

	return RecordingStatus{
		Recording:     r.recording,
		Filename:      r.filename,
		FrameCount:    r.frameCount,
		FramesDropped: r.dropped,
		BytesWritten:  r.bytesWritten,
		DurationMs:    duration.Milliseconds(),
		StartTime:     r.startTime,
	}
}

// Close stops any active recording
func (r *Recorder) Close() error {
	if r.IsRecording() {
		_, err := r.Stop()
		return err
	}
	return nil
}

// RecordingStatus holds the current recording status
type RecordingStatus struct {
	Recording     bool      `json:"recording"`
	Filename      string    `json:"filename"`
	FrameCount    uint64    `json:"frame_count"`
	FramesDropped uint64    `json:"frames_dropped"`
	BytesWritten  uint64    `json:"bytes_written"`
	DurationMs    int64     `json:"duration_ms"`
	StartTime     time.Time `json:"start_time"`
}
