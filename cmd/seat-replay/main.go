// Command seat-replay runs a recorded JSONL frame file through the seat pipeline offline and
// prints the per-seat status of every frame.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"strings"

	"github.com/seatsense/seat-monitor/internal/config"
	"github.com/seatsense/seat-monitor/internal/logger"
	"github.com/seatsense/seat-monitor/internal/pipeline"
	"github.com/seatsense/seat-monitor/internal/recorder"
	"github.com/seatsense/seat-monitor/internal/zones"
	"github.com/seatsense/seat-monitor/pkg/types"
)

func main() {
	envFile := config.EnvFileFromArgs(os.Args[1:], ".env")
	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var framesPath, allowed, thresholds string
	var limit uint64
	var asJSON, changesOnly bool
	logLevel := "warn"

	flag.String("env", envFile, "dotenv file with SEAT_* settings (same as seat-monitor)")
	flag.StringVar(&cfg.ZonesPath, "zones", cfg.ZonesPath, "Seat zone YAML file")
	flag.StringVar(&framesPath, "frames", "", "Recorded frames (JSONL)")
	flag.BoolVar(&cfg.Smoothing, "smoothing", cfg.Smoothing, "Enable temporal smoothing")
	flag.StringVar(&cfg.SmoothingMethod, "method", cfg.SmoothingMethod, "Smoothing method (majority_voting, hysteresis, exponential)")
	flag.IntVar(&cfg.WindowSize, "window", cfg.WindowSize, "Smoothing window size")
	flag.IntVar(&cfg.HysteresisThreshold, "hysteresis", cfg.HysteresisThreshold, "Consecutive frames before a hysteresis switch")
	flag.Float64Var(&cfg.Alpha, "alpha", cfg.Alpha, "Exponential smoothing factor")
	flag.Float64Var(&cfg.Margin, "margin", cfg.Margin, "Zone filter margin in pixels")
	flag.StringVar(&cfg.PrivilegedClass, "privileged-class", cfg.PrivilegedClass, "Class that marks a seat occupied")
	flag.StringVar(&cfg.PersonOrder, "person-order", cfg.PersonOrder, "Order persons are assigned in (detection, confidence)")
	flag.Float64Var(&cfg.DefaultThreshold, "confidence", cfg.DefaultThreshold, "Confidence threshold for classes without their own")
	flag.StringVar(&allowed, "classes", "", "Comma-separated allowed classes (overrides config)")
	flag.StringVar(&thresholds, "thresholds", "", "Per-class thresholds, e.g. person=0.3,book=0.1 (overrides config)")
	flag.Uint64Var(&limit, "limit", 0, "Stop after N frames (0: all)")
	flag.BoolVar(&asJSON, "json", false, "Print each frame result as JSON")
	flag.BoolVar(&changesOnly, "changes", false, "Print only frames whose status codes changed")
	flag.StringVar(&logLevel, "log-level", logLevel, "Log level (debug, info, warn, error, silent)")
	flag.Parse()

	if framesPath == "" {
		log.Fatal("-frames is required")
	}
	if allowed != "" {
		cfg.AllowedClasses = config.ParseList(allowed)
	}
	if thresholds != "" {
		parsed, err := config.ParseThresholds(thresholds)
		if err != nil {
			log.Fatalf("Invalid thresholds: %v", err)
		}
		cfg.ClassThresholds = parsed
	}
	cfg.LogLevel = logLevel
	pcfg, err := cfg.Pipeline()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	pcfg.ProgressEvery = 0

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init(level, os.Stderr, false)
	defer logger.Sync()

	z, err := zones.Load(cfg.ZonesPath)
	if err != nil {
		log.Fatalf("Failed to load seat zones: %v", err)
	}
	proc, err := pipeline.New(pcfg, z)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	proc.Start()

	out := bufio.NewWriter(os.Stdout)
	stats, err := replay(proc, framesPath, out, replayOptions{Limit: limit, JSON: asJSON, ChangesOnly: changesOnly})
	out.Flush()
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	stats.writeSummary(os.Stderr)
}

type replayOptions struct {
	Limit       uint64 // 0 replays everything
	JSON        bool
	ChangesOnly bool
}

type replayStats struct {
	Frames    uint64
	Changes   int
	Smoothing bool
	Method    string
}

// writeSummary prints the end-of-run totals.
func (s replayStats) writeSummary(w io.Writer) {
	fmt.Fprintf(w, "Replayed %d frames, %d status changes (smoothing=%v %s)\n",
		s.Frames, s.Changes, s.Smoothing, s.Method)
}

// replay runs every frame of the recording at path through a started proc.
func replay(proc *pipeline.Processor, path string, out io.Writer, opts replayOptions) (replayStats, error) {
	enc := json.NewEncoder(out)

	var prev map[string]int
	changes := 0
	err := recorder.ReadFile(path, func(frame types.Frame) error {
		result, err := proc.Process(frame)
		if err != nil {
			return err
		}
		changed := prev == nil || !maps.Equal(prev, result.StatusCodes)
		if changed && prev != nil {
			changes++
		}
		prev = result.StatusCodes

		if !opts.ChangesOnly || changed {
			if opts.JSON {
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else if _, err := fmt.Fprintln(out, formatResult(result)); err != nil {
				return err
			}
		}
		if opts.Limit > 0 && proc.Session().FramesProcessed >= opts.Limit {
			return recorder.ErrStop
		}
		return nil
	})

	session := proc.Session()
	return replayStats{
		Frames:    session.FramesProcessed,
		Changes:   changes,
		Smoothing: session.Smoothing,
		Method:    session.Method,
	}, err
}

func formatResult(r *types.FrameResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "frame %-6d", r.FrameNumber)
	for _, s := range r.Seats {
		fmt.Fprintf(&sb, " %s=%s", strings.ToUpper(s.SeatID), s.Status)
		if s.RawStatus != s.Status {
			fmt.Fprintf(&sb, "(raw %s)", s.RawStatus)
		}
	}
	fmt.Fprintf(&sb, "  occupied=%d/%d kept=%d/%d", r.Occupied, len(r.Seats), r.DetectionsKept, r.DetectionsTotal)
	return sb.String()
}
