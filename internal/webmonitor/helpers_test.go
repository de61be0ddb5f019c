package webmonitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seatsense/seat-monitor/internal/metrics"
	"github.com/seatsense/seat-monitor/internal/pipeline"
	"github.com/seatsense/seat-monitor/internal/recorder"
	"github.com/seatsense/seat-monitor/internal/zones"
	"github.com/seatsense/seat-monitor/pkg/types"
)

const defaultRequestTimeout = 2 * time.Second

type apiClient struct {
	baseURL string
	client  *http.Client
	server  *Server
}

func testZones() *zones.Zones {
	return zones.MustNew(
		types.SeatZone{ID: "T1", Box: types.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
		types.SeatZone{ID: "A2", Box: types.Box{X1: 200, Y1: 0, X2: 300, Y2: 100}},
	)
}

func newAPIClient(t *testing.T, autoStart bool) *apiClient {
	t.Helper()
	proc, err := pipeline.New(pipeline.DefaultConfig(), testZones())
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if autoStart {
		proc.Start()
	}

	cfg := DefaultConfig()
	cfg.AssetsDir = t.TempDir()
	cfg.BuildAssetsDir = ""
	server := NewServer(cfg, proc, recorder.NewRecorder(t.TempDir()), metrics.New())

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = server.Close() })

	return &apiClient{
		baseURL: ts.URL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		server:  server,
	}
}

func (c *apiClient) do(t *testing.T, method, path string, body io.Reader) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	_ = resp.Body.Close()
	return resp, data
}

func (c *apiClient) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	return c.do(t, http.MethodGet, path, nil)
}

func (c *apiClient) post(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	return c.do(t, http.MethodPost, path, nil)
}

func (c *apiClient) postJSON(t *testing.T, path string, payload any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return c.do(t, http.MethodPost, path, bytes.NewReader(data))
}

func (c *apiClient) postFrame(t *testing.T, frame types.Frame) map[string]any {
	t.Helper()
	resp, body := c.postJSON(t, "/api/frames", frame)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/frames status = %d body=%s", resp.StatusCode, body)
	}
	return decodeJSONMap(t, body)
}

func personIn(x1, y1, x2, y2 float64) types.Detection {
	return types.Detection{ClassName: "person", Confidence: 0.9, BBox: types.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}}
}

func readSSEEvent(url string, accept string, timeout time.Duration) (string, http.Header, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 256)
	for {
		n, readErr := resp.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			if idx := bytes.Index(buf, []byte("\n\n")); idx >= 0 {
				return string(buf[:idx]), resp.Header, nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return "", nil, fmt.Errorf("sse stream closed before event")
			}
			return "", nil, fmt.Errorf("read sse: %w", readErr)
		}
	}
}

func sseData(t *testing.T, event string) string {
	t.Helper()
	for _, line := range strings.Split(event, "\n") {
		if strings.HasPrefix(line, "data:") {
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				t.Fatalf("empty sse data line")
			}
			return payload
		}
	}
	t.Fatalf("no data line in sse event: %q", event)
	return ""
}

func decodeJSONMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode json: %v\nbody=%s", err, string(body))
	}
	return payload
}

func requireString(t *testing.T, value any, field string) string {
	t.Helper()
	str, ok := value.(string)
	if !ok {
		t.Fatalf("expected %s to be string, got %T", field, value)
	}
	return str
}

func requireNumber(t *testing.T, value any, field string) float64 {
	t.Helper()
	num, ok := value.(float64)
	if !ok {
		t.Fatalf("expected %s to be number, got %T", field, value)
	}
	return num
}

func requireMap(t *testing.T, value any, field string) map[string]any {
	t.Helper()
	m, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected %s to be object, got %T", field, value)
	}
	return m
}

func requireSlice(t *testing.T, value any, field string) []any {
	t.Helper()
	s, ok := value.([]any)
	if !ok {
		t.Fatalf("expected %s to be array, got %T", field, value)
	}
	return s
}

// assertFrameResult checks the shape of a FrameResult payload and returns seat statuses by id.
func assertFrameResult(t *testing.T, payload map[string]any) map[string]string {
	t.Helper()
	requireString(t, payload["session_id"], "session_id")
	requireNumber(t, payload["frame_number"], "frame_number")
	requireString(t, payload["timestamp"], "timestamp")
	requireNumber(t, payload["occupied"], "occupied")
	requireMap(t, payload["status_codes"], "status_codes")

	statuses := map[string]string{}
	for i, raw := range requireSlice(t, payload["seats"], "seats") {
		seat := requireMap(t, raw, fmt.Sprintf("seats[%d]", i))
		id := requireString(t, seat["seat_id"], "seats.seat_id")
		statuses[id] = requireString(t, seat["status"], "seats.status")
		requireString(t, seat["raw_status"], "seats.raw_status")
		requireString(t, seat["reason"], "seats.reason")
		requireSlice(t, seat["detected_objects"], "seats.detected_objects")
	}
	return statuses
}

func assertStatusPayload(t *testing.T, payload map[string]any) {
	t.Helper()
	session := requireMap(t, payload["session"], "session")
	if _, ok := session["running"].(bool); !ok {
		t.Fatalf("expected session.running to be bool, got %T", session["running"])
	}
	requireNumber(t, session["frames_processed"], "session.frames_processed")

	monitor := requireMap(t, payload["monitor"], "monitor")
	requireNumber(t, monitor["uptime_seconds"], "monitor.uptime_seconds")
	requireNumber(t, monitor["frames_ingested"], "monitor.frames_ingested")
	requireNumber(t, monitor["current_fps"], "monitor.current_fps")

	requireNumber(t, payload["timestamp"], "timestamp")
	if payload["latest"] != nil {
		assertFrameResult(t, requireMap(t, payload["latest"], "latest"))
	}
	if payload["status_history"] != nil {
		for i, raw := range requireSlice(t, payload["status_history"], "status_history") {
			item := requireMap(t, raw, fmt.Sprintf("status_history[%d]", i))
			requireString(t, item["timestamp"], "status_history.timestamp")
			requireMap(t, item["status_codes"], "status_history.status_codes")
		}
	}
}
