package webmonitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seatsense/seat-monitor/internal/logger"
	"github.com/seatsense/seat-monitor/internal/metrics"
	"github.com/seatsense/seat-monitor/internal/overlay"
	"github.com/seatsense/seat-monitor/internal/pipeline"
	"github.com/seatsense/seat-monitor/internal/recorder"
	"github.com/seatsense/seat-monitor/internal/zones"
	"github.com/seatsense/seat-monitor/pkg/types"
)

// Server serves the seat monitor endpoints.
type Server struct {
	cfg               Config
	proc              *pipeline.Processor
	monitor           *Monitor
	recorder          *recorder.Recorder
	metrics           *metrics.Metrics
	statusBroadcaster *StatusBroadcaster
	upgrader          websocket.Upgrader
}

// NewServer wires the monitor, metrics and status broadcaster into proc and returns a
// server ready to serve. rec may be nil to disable recording.
func NewServer(cfg Config, proc *pipeline.Processor, rec *recorder.Recorder, m *metrics.Metrics) *Server {
	def := DefaultConfig()
	if cfg.StatusInterval == 0 {
		cfg.StatusInterval = def.StatusInterval
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if m == nil {
		m = metrics.New()
	}

	proc.AddObserver(m)
	monitor := NewMonitor(proc, rec, m, cfg.HistorySize)

	statusBroadcaster := NewStatusBroadcaster(cfg.StatusInterval, m)
	proc.AddObserver(statusBroadcaster)
	statusBroadcaster.Start()

	return &Server{
		cfg:               cfg,
		proc:              proc,
		monitor:           monitor,
		recorder:          rec,
		metrics:           m,
		statusBroadcaster: statusBroadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Monitor returns the server's monitor, used by the command to start sessions.
func (s *Server) Monitor() *Monitor {
	return s.monitor
}

// Close disconnects stream clients and stops background work.
func (s *Server) Close() error {
	s.statusBroadcaster.Stop()
	if s.recorder != nil {
		return s.recorder.Close()
	}
	return nil
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	assetHandler := newAssetHandler(s.cfg.BuildAssetsDir, s.cfg.AssetsDir)

	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/assets/", http.StripPrefix("/assets/", assetHandler))
	mux.HandleFunc("/api/seats", s.handleSeats)
	mux.HandleFunc("/api/frames", s.handleFrames)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/detection/start", s.handleDetectionStart)
	mux.HandleFunc("/api/detection/stop", s.handleDetectionStop)
	mux.HandleFunc("/api/smoother/reset", s.handleSmootherReset)
	mux.HandleFunc("/api/smoother/history", s.handleSmootherHistory)
	mux.HandleFunc("/api/smoother/stats", s.handleSmootherStats)
	mux.HandleFunc("/api/overlay.png", s.handleOverlay)
	mux.HandleFunc("/api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("/api/recording/stop", s.handleRecordingStop)
	mux.HandleFunc("/api/recording/status", s.handleRecordingStatus)
	mux.Handle("/metrics", s.metrics.Handler())

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleSeats(w http.ResponseWriter, r *http.Request) {
	all := s.proc.Zones().All()
	payload := make([]ZonePayload, 0, len(all))
	for _, z := range all {
		payload = append(payload, ZonePayload{
			ID:    z.ID,
			Label: strings.ToUpper(z.ID),
			X1:    z.Box.X1,
			Y1:    z.Box.Y1,
			X2:    z.Box.X2,
			Y2:    z.Box.Y2,
		})
	}
	writeJSON(w, map[string]any{"seats": payload})
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var frame types.Frame
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err := dec.Decode(&frame); err != nil {
		s.metrics.FramesRejected.Add(1)
		writeJSONWithStatus(w, map[string]any{"error": "Invalid frame data: " + err.Error()}, http.StatusBadRequest)
		return
	}

	result, err := s.monitor.Ingest(frame)
	if errors.Is(err, pipeline.ErrNotRunning) {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	}
	if err != nil {
		logger.Error("Server", "Frame %d failed: %v", frame.FrameNumber, err)
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.monitor.Snapshot())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.statusBroadcaster.Subscribe()
	defer s.statusBroadcaster.Unsubscribe(id)

	streamStatusEventsFromChannel(w, r, eventCh, wantsProtobuf(r))
}

func (s *Server) handleDetectionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, already := s.monitor.Start()
	status := "started"
	if already {
		status = "already running"
	}
	writeJSON(w, map[string]any{
		"status":     status,
		"session_id": id,
		"started_at": float64(time.Now().Unix()),
	})
}

func (s *Server) handleDetectionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.monitor.Stop(); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{
		"status":     "stopped",
		"session":    s.proc.Session(),
		"stopped_at": float64(time.Now().Unix()),
	})
}

// seatParam returns the canonical ?seat= value. ok is false when a response was written.
func (s *Server) seatParam(w http.ResponseWriter, r *http.Request, required bool) (id string, ok bool) {
	raw := r.URL.Query().Get("seat")
	if raw == "" {
		if required {
			writeJSONWithStatus(w, map[string]any{"error": "seat parameter is required"}, http.StatusBadRequest)
			return "", false
		}
		return "", true
	}
	id = zones.NormalizeID(raw)
	if _, found := s.proc.Zones().Get(id); !found {
		writeJSONWithStatus(w, map[string]any{"error": fmt.Sprintf("unknown seat %q", raw)}, http.StatusNotFound)
		return "", false
	}
	return id, true
}

func (s *Server) handleSmootherReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := s.seatParam(w, r, false)
	if !ok {
		return
	}

	seats := s.proc.Zones().IDs()
	if id != "" {
		s.proc.ResetSmoother(id)
		seats = []string{id}
	} else {
		s.proc.ResetSmoother()
	}
	writeJSON(w, map[string]any{"status": "reset", "seats": seats})
}

func (s *Server) handleSmootherHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.seatParam(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{
		"seat_id": id,
		"history": s.proc.History(id),
	})
}

func (s *Server) handleSmootherStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := s.proc.SmootherStats()
	if !ok {
		writeJSON(w, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, map[string]any{"enabled": true, "stats": stats})
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	latest, _ := s.proc.Latest()
	img := overlay.Render(s.proc.Zones(), latest, overlay.DefaultOptions())

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := overlay.EncodePNG(w, img); err != nil {
		logger.Warn("Server", "Overlay encode failed: %v", err)
	}
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.recorder == nil {
		writeJSONWithStatus(w, map[string]any{"error": "recording is disabled"}, http.StatusBadRequest)
		return
	}

	filename, err := s.recorder.Start(r.URL.Query().Get("name"))
	if errors.Is(err, recorder.ErrAlreadyRecording) {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	}
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
		return
	}
	s.metrics.RecordingActive.Store(1)

	writeJSON(w, map[string]any{
		"status":     "recording",
		"file":       filename,
		"started_at": float64(time.Now().Unix()),
	})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.recorder == nil {
		writeJSONWithStatus(w, map[string]any{"error": "recording is disabled"}, http.StatusBadRequest)
		return
	}

	filename, err := s.recorder.Stop()
	if errors.Is(err, recorder.ErrNotRecording) {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	}
	s.metrics.RecordingActive.Store(0)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
		return
	}

	status := s.recorder.GetStatus()
	s.metrics.RecordingFrames.Store(status.FrameCount)
	s.metrics.RecordingBytes.Store(status.BytesWritten)
	writeJSON(w, map[string]any{
		"status":     "stopped",
		"file":       filename,
		"stats":      status,
		"stopped_at": float64(time.Now().Unix()),
	})
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeJSON(w, map[string]any{"recording": false, "enabled": false})
		return
	}
	writeJSON(w, s.recorder.GetStatus())
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
