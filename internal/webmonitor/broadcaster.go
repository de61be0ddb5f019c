package webmonitor

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/seatsense/seat-monitor/internal/logger"
	"github.com/seatsense/seat-monitor/internal/metrics"
	"github.com/seatsense/seat-monitor/internal/publish"
	"github.com/seatsense/seat-monitor/internal/wire"
	"github.com/seatsense/seat-monitor/pkg/types"
)

// SerializedEvent holds pre-serialized data in every format a client may ask for.
// This avoids redundant serialization when broadcasting to multiple clients.
type SerializedEvent struct {
	JSONData     []byte // FrameResult as JSON
	ProtobufData []byte // StatusEvent protobuf, base64 encoded for SSE
	UpdateData   []byte // status_update WebSocket message
}

// NewSerializedEvent serializes r once for all transports.
func NewSerializedEvent(r *types.FrameResult) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	update, err := json.Marshal(wsMessage{Type: "status_update", Data: publish.NewStatusUpdate(r)})
	if err != nil {
		return nil, err
	}
	pbData, err := wire.Marshal(r)
	if err != nil {
		return nil, err
	}
	pbBase64 := []byte(base64.StdEncoding.EncodeToString(pbData))
	return &SerializedEvent{
		JSONData:     jsonData,
		ProtobufData: pbBase64,
		UpdateData:   update,
	}, nil
}

// StatusBroadcaster manages fanout of status events to SSE and WebSocket clients.
// Events are pushed as frames are processed; when no frame arrives for an interval the
// latest event is sent again so dashboards stay fresh.
type StatusBroadcaster struct {
	mu       sync.Mutex
	clients  map[int]chan *SerializedEvent
	nextID   int
	latest   *SerializedEvent
	sentAt   time.Time
	stop     chan struct{}
	stopped  bool
	interval time.Duration
	metrics  *metrics.Metrics
}

// NewStatusBroadcaster creates a broadcaster for status events.
func NewStatusBroadcaster(interval time.Duration, m *metrics.Metrics) *StatusBroadcaster {
	return &StatusBroadcaster{
		clients:  make(map[int]chan *SerializedEvent),
		stop:     make(chan struct{}),
		interval: interval,
		metrics:  m,
	}
}

// Subscribe adds a new client and returns a channel for receiving status events.
// The latest event, if any, is delivered immediately.
func (sb *StatusBroadcaster) Subscribe() (int, <-chan *SerializedEvent) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	id := sb.nextID
	sb.nextID++
	ch := make(chan *SerializedEvent, 4) // Buffer a few events to avoid blocking
	if sb.stopped {
		close(ch)
		return id, ch
	}
	if sb.latest != nil {
		ch <- sb.latest
	}
	sb.clients[id] = ch

	if sb.metrics != nil {
		sb.metrics.ActiveClients.Store(uint64(len(sb.clients)))
		sb.metrics.TotalClients.Add(1)
	}
	logger.Debug("StatusBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(sb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (sb *StatusBroadcaster) Unsubscribe(id int) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if ch, ok := sb.clients[id]; ok {
		close(ch)
		delete(sb.clients, id)
		if sb.metrics != nil {
			sb.metrics.ActiveClients.Store(uint64(len(sb.clients)))
		}
		logger.Debug("StatusBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(sb.clients))
	}
}

// ClientCount returns the number of subscribed clients.
func (sb *StatusBroadcaster) ClientCount() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return len(sb.clients)
}

// Start begins the idle resend loop.
func (sb *StatusBroadcaster) Start() {
	if sb.interval > 0 {
		go sb.run()
	}
}

// Stop halts the broadcaster and disconnects every client.
func (sb *StatusBroadcaster) Stop() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.stopped {
		return
	}
	close(sb.stop)
	sb.stopped = true
	for id, ch := range sb.clients {
		close(ch)
		delete(sb.clients, id)
	}
	if sb.metrics != nil {
		sb.metrics.ActiveClients.Store(0)
	}
}

// ObserveFrame serializes and fans out one processed frame. It satisfies pipeline.Observer.
func (sb *StatusBroadcaster) ObserveFrame(result *types.FrameResult, _ time.Duration) {
	event, err := NewSerializedEvent(result)
	if err != nil {
		logger.Error("StatusBroadcaster", "Serialize error for frame %d: %v", result.FrameNumber, err)
		return
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.latest = event
	sb.broadcastLocked(event)
}

func (sb *StatusBroadcaster) run() {
	logger.Info("StatusBroadcaster", "Starting status event broadcaster (interval=%v)...", sb.interval)
	ticker := time.NewTicker(sb.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sb.stop:
			return
		case <-ticker.C:
			sb.mu.Lock()
			if len(sb.clients) > 0 && sb.latest != nil && time.Since(sb.sentAt) >= sb.interval {
				sb.broadcastLocked(sb.latest)
			}
			sb.mu.Unlock()
		}
	}
}

func (sb *StatusBroadcaster) broadcastLocked(event *SerializedEvent) {
	if sb.stopped {
		return
	}
	sb.sentAt = time.Now()
	for _, ch := range sb.clients {
		select {
		case ch <- event:
			// Sent successfully
		default:
			// Client too slow, skip this event for this client
		}
	}
}
