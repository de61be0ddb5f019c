package webmonitor

import (
	"path/filepath"
	"time"
)

// Config defines the runtime configuration for the web monitor server.
type Config struct {
	Addr           string
	AssetsDir      string
	BuildAssetsDir string
	StatusInterval time.Duration // idle resend of the latest status to stream clients
	MaxBodyBytes   int64         // cap on POST /api/frames bodies
	HistorySize    int           // status changes kept for /api/status
}

// DefaultConfig returns the stock server settings.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		AssetsDir:      filepath.Clean("./web_assets"),
		BuildAssetsDir: filepath.Clean("./build/web"),
		StatusInterval: 2 * time.Second,
		MaxBodyBytes:   1 << 20,
		HistorySize:    8,
	}
}
