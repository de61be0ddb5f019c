package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seatsense/seat-monitor/internal/config"
	"github.com/seatsense/seat-monitor/internal/logger"
	"github.com/seatsense/seat-monitor/internal/metrics"
	"github.com/seatsense/seat-monitor/internal/pipeline"
	"github.com/seatsense/seat-monitor/internal/publish"
	"github.com/seatsense/seat-monitor/internal/recorder"
	"github.com/seatsense/seat-monitor/internal/webmonitor"
	"github.com/seatsense/seat-monitor/internal/zones"
)

func main() {
	envFile := config.EnvFileFromArgs(os.Args[1:], ".env")

	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var allowed, thresholds string
	flag.String("env", envFile, "dotenv file with SEAT_* settings")
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP server address")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Separate metrics server address (empty: /metrics on the HTTP server only)")
	flag.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "Web assets directory")
	flag.StringVar(&cfg.ZonesPath, "zones", cfg.ZonesPath, "Seat zone YAML file")
	flag.StringVar(&cfg.RecordingDir, "record-path", cfg.RecordingDir, "Recording output path (empty disables recording)")
	flag.DurationVar(&cfg.StatusInterval, "status-interval", cfg.StatusInterval, "Idle resend interval for stream clients")
	flag.BoolVar(&cfg.AutoStart, "auto-start", cfg.AutoStart, "Start a detection session on boot")
	flag.Float64Var(&cfg.Margin, "margin", cfg.Margin, "Zone filter margin in pixels")
	flag.StringVar(&cfg.PrivilegedClass, "privileged-class", cfg.PrivilegedClass, "Class that marks a seat occupied")
	flag.StringVar(&cfg.PersonOrder, "person-order", cfg.PersonOrder, "Order persons are assigned in (detection, confidence)")
	flag.BoolVar(&cfg.Smoothing, "smoothing", cfg.Smoothing, "Enable temporal smoothing")
	flag.StringVar(&cfg.SmoothingMethod, "method", cfg.SmoothingMethod, "Smoothing method (majority_voting, hysteresis, exponential)")
	flag.IntVar(&cfg.WindowSize, "window", cfg.WindowSize, "Smoothing window size")
	flag.IntVar(&cfg.HysteresisThreshold, "hysteresis", cfg.HysteresisThreshold, "Consecutive frames before a hysteresis switch")
	flag.Float64Var(&cfg.Alpha, "alpha", cfg.Alpha, "Exponential smoothing factor")
	flag.Float64Var(&cfg.DefaultThreshold, "confidence", cfg.DefaultThreshold, "Confidence threshold for classes without their own")
	flag.StringVar(&allowed, "classes", "", "Comma-separated allowed classes (overrides config)")
	flag.StringVar(&thresholds, "thresholds", "", "Per-class thresholds, e.g. person=0.3,book=0.1 (overrides config)")
	flag.StringVar(&cfg.Redis.Addr, "redis", cfg.Redis.Addr, "Redis address for the status stream (empty disables)")
	flag.StringVar(&cfg.Redis.Stream, "redis-stream", cfg.Redis.Stream, "Redis stream key")
	flag.StringVar(&cfg.MQTT.Broker, "mqtt", cfg.MQTT.Broker, "MQTT broker URL (empty disables)")
	flag.StringVar(&cfg.MQTT.Topic, "mqtt-topic", cfg.MQTT.Topic, "MQTT status topic")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error, silent)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (console, json)")
	flag.BoolVar(&cfg.LogColor, "log-color", cfg.LogColor, "Enable colored log output")
	flag.Parse()

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

	pcfg, err := cfg.Pipeline()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logger
	level, _ := logger.ParseLevel(cfg.LogLevel)
	format, _ := logger.ParseFormat(cfg.LogFormat)
	logger.InitWithFormat(level, os.Stderr, cfg.LogColor, format)
	defer logger.Sync()

	logger.Info("Main", "Seat monitor starting...")
	logger.Info("Main", "Log level: %s", level)

	z, err := zones.Load(cfg.ZonesPath)
	if err != nil {
		logger.Error("Main", "Failed to load seat zones: %v", err)
		os.Exit(1)
	}
	logger.Info("Main", "Loaded %d seat zones from %s: %v", z.Len(), cfg.ZonesPath, z.IDs())

	proc, err := pipeline.New(pcfg, z)
	if err != nil {
		logger.Error("Main", "Failed to create pipeline: %v", err)
		os.Exit(1)
	}

	m := metrics.New()

	var rec *recorder.Recorder
	if cfg.RecordingDir != "" {
		if err := os.MkdirAll(cfg.RecordingDir, 0755); err != nil {
			logger.Error("Main", "Failed to create recordings directory: %v", err)
			os.Exit(1)
		}
		rec = recorder.NewRecorder(cfg.RecordingDir)
	}

	dispatcher := newDispatcher(cfg, m)
	if dispatcher != nil {
		proc.AddObserver(dispatcher)
		dispatcher.Start()
	}

	wcfg := webmonitor.DefaultConfig()
	wcfg.Addr = cfg.HTTPAddr
	wcfg.AssetsDir = cfg.AssetsDir
	wcfg.StatusInterval = cfg.StatusInterval
	server := webmonitor.NewServer(wcfg, proc, rec, m)

	if cfg.AutoStart {
		server.Monitor().Start()
	}

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("Main", "Starting metrics server on %s", cfg.MetricsAddr)
			if err := m.StartServer(cfg.MetricsAddr); err != nil {
				logger.Error("Main", "Metrics server error: %v", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Main", "Seat monitor listening on %s (assets: %s)", cfg.HTTPAddr, cfg.AssetsDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Main", "HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Main", "Shutting down...")

	// Disconnect stream clients first so Shutdown does not wait on them.
	if err := server.Close(); err != nil {
		logger.Warn("Main", "Error closing monitor: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("Main", "HTTP shutdown error: %v", err)
	}
	if dispatcher != nil {
		if err := dispatcher.Close(); err != nil {
			logger.Warn("Main", "Error closing publishers: %v", err)
		}
	}

	logger.Info("Main", "Seat monitor stopped")
}

// newDispatcher connects the configured sinks. A sink that cannot connect is logged and
// skipped; nil is returned when no sink is available.
func newDispatcher(cfg config.Config, m *metrics.Metrics) *publish.Dispatcher {
	var sinks []publish.Sink

	if cfg.Redis.Addr != "" {
		client, err := publish.NewRedisClient(context.Background(), publish.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("Main", "Redis sink disabled: %v", err)
		} else {
			sinks = append(sinks, publish.NewRedisSink(client, cfg.Redis.Stream, cfg.Redis.MaxLen, logger.Zap()))
			logger.Info("Main", "Publishing status to Redis stream %s on %s", cfg.Redis.Stream, cfg.Redis.Addr)
		}
	}

	if cfg.MQTT.Broker != "" {
		client, err := publish.NewMQTTClient(publish.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			logger.Warn("Main", "MQTT sink disabled: %v", err)
		} else {
			sinks = append(sinks, publish.NewMQTTSink(client, cfg.MQTT.Topic, cfg.MQTT.QoS, logger.Zap()))
			logger.Info("Main", "Publishing status to MQTT topic %s on %s", cfg.MQTT.Topic, cfg.MQTT.Broker)
		}
	}

	if len(sinks) == 0 {
		return nil
	}
	return publish.NewDispatcher(logger.Zap(), 64, publish.Hooks{
		OnPublished: m.Published,
		OnError: func(string, error) {
			m.PublishErrors.Add(1)
		},
	}, sinks...)
}
