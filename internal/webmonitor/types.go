package webmonitor

import (
	"github.com/seatsense/seat-monitor/internal/pipeline"
	"github.com/seatsense/seat-monitor/internal/publish"
	"github.com/seatsense/seat-monitor/pkg/types"
)

// ZonePayload is one entry of /api/seats.
type ZonePayload struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
}

// MonitorStats summarises ingestion for /api/status.
type MonitorStats struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`
	FramesIngested uint64  `json:"frames_ingested"`
	FramesRejected uint64  `json:"frames_rejected"`
	CurrentFPS     float64 `json:"current_fps"`
	ActiveClients  uint64  `json:"active_clients"`
}

// StatusPayload is the body of /api/status.
type StatusPayload struct {
	Session   pipeline.SessionInfo   `json:"session"`
	Monitor   MonitorStats           `json:"monitor"`
	Latest    *types.FrameResult     `json:"latest"`
	History   []publish.StatusUpdate `json:"status_history"`
	Timestamp float64                `json:"timestamp"`
}

// wsMessage is the envelope of every WebSocket message.
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
