// Package config gathers the seat monitor's runtime settings from defaults, an optional .env
// file, SEAT_* environment variables and finally command-line flags (applied by main).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/seatsense/seat-monitor/internal/assign"
	"github.com/seatsense/seat-monitor/internal/logger"
	"github.com/seatsense/seat-monitor/internal/pipeline"
	"github.com/seatsense/seat-monitor/internal/smoother"
	"github.com/seatsense/seat-monitor/internal/zonefilter"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SEAT"

// RedisConfig configures the Redis Streams status sink. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// LoadFromEnv overrides fields from <prefix>_ADDR, _PASSWORD, _DB, _STREAM and _MAXLEN.
func (c *RedisConfig) LoadFromEnv(prefix string) error {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if err := envInt(prefix+"_DB", &c.DB); err != nil {
		return err
	}
	if stream := os.Getenv(prefix + "_STREAM"); stream != "" {
		c.Stream = stream
	}
	return envInt64(prefix+"_MAXLEN", &c.MaxLen)
}

// MQTTConfig configures the MQTT status sink. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// LoadFromEnv overrides fields from <prefix>_BROKER, _CLIENT_ID, _USERNAME, _PASSWORD, _TOPIC and _QOS.
func (c *MQTTConfig) LoadFromEnv(prefix string) error {
	if broker := os.Getenv(prefix + "_BROKER"); broker != "" {
		c.Broker = broker
	}
	if clientID := os.Getenv(prefix + "_CLIENT_ID"); clientID != "" {
		c.ClientID = clientID
	}
	if username := os.Getenv(prefix + "_USERNAME"); username != "" {
		c.Username = username
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if topic := os.Getenv(prefix + "_TOPIC"); topic != "" {
		c.Topic = topic
	}
	qos := int(c.QoS)
	if err := envInt(prefix+"_QOS", &qos); err != nil {
		return err
	}
	if qos < 0 || qos > 2 {
		return fmt.Errorf("%s_QOS must be 0, 1 or 2 (got %d)", prefix, qos)
	}
	c.QoS = byte(qos)
	return nil
}

// Config is the complete runtime configuration.
type Config struct {
	HTTPAddr       string
	MetricsAddr    string // empty serves /metrics on HTTPAddr only
	AssetsDir      string
	ZonesPath      string
	RecordingDir   string
	StatusInterval time.Duration
	AutoStart      bool

	Margin          float64
	PrivilegedClass string
	PersonOrder     string

	Smoothing           bool
	SmoothingMethod     string
	WindowSize          int
	HysteresisThreshold int
	Alpha               float64

	ClassThresholds  map[string]float64
	DefaultThreshold float64
	AllowedClasses   []string

	Redis RedisConfig
	MQTT  MQTTConfig

	LogLevel  string
	LogFormat string
	LogColor  bool
}

// Default returns the stock configuration.
func Default() Config {
	sm := smoother.DefaultConfig()
	return Config{
		HTTPAddr:       ":8080",
		AssetsDir:      "./web_assets",
		ZonesPath:      "./seat_zones.yaml",
		RecordingDir:   "./recordings",
		StatusInterval: 2 * time.Second,
		AutoStart:      true,

		Margin:          zonefilter.DefaultMargin,
		PrivilegedClass: assign.DefaultPrivilegedClass,
		PersonOrder:     assign.OrderDetection.String(),

		Smoothing:           true,
		SmoothingMethod:     sm.Method.String(),
		WindowSize:          sm.WindowSize,
		HysteresisThreshold: sm.HysteresisThreshold,
		Alpha:               sm.Alpha,

		ClassThresholds:  pipeline.DefaultClassThresholds(),
		DefaultThreshold: pipeline.DefaultThreshold,
		AllowedClasses:   pipeline.DefaultAllowedClasses(),

		Redis: RedisConfig{Stream: "seat:status", MaxLen: 10000},
		MQTT:  MQTTConfig{ClientID: "seat-monitor", Topic: "seats/status", QoS: 1},

		LogLevel:  "info",
		LogFormat: "console",
		LogColor:  true,
	}
}

// Load returns Default overridden by envFile (if it exists; empty skips it) and SEAT_*
// environment variables. Variables already set in the process environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg := Default()
	if err := cfg.LoadFromEnv(EnvPrefix); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvFileFromArgs returns the value of an -env flag in args (either "-env FILE" or "-env=FILE",
// one or two dashes), or def when there is none. It runs before flag.Parse because the file
// feeds the flag defaults.
func EnvFileFromArgs(args []string, def string) string {
	envFile := def
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != "env" {
			continue
		}
		if hasValue {
			envFile = value
		} else if i+1 < len(args) {
			envFile = args[i+1]
		}
	}
	return envFile
}

// LoadFromEnv overrides fields from <prefix>_* environment variables.
func (c *Config) LoadFromEnv(prefix string) error {
	strs := map[string]*string{
		"_HTTP_ADDR":        &c.HTTPAddr,
		"_METRICS_ADDR":     &c.MetricsAddr,
		"_ASSETS_DIR":       &c.AssetsDir,
		"_ZONES":            &c.ZonesPath,
		"_RECORDING_DIR":    &c.RecordingDir,
		"_PRIVILEGED_CLASS": &c.PrivilegedClass,
		"_PERSON_ORDER":     &c.PersonOrder,
		"_SMOOTHING_METHOD": &c.SmoothingMethod,
		"_LOG_LEVEL":        &c.LogLevel,
		"_LOG_FORMAT":       &c.LogFormat,
	}
	for suffix, dst := range strs {
		if v := os.Getenv(prefix + suffix); v != "" {
			*dst = v
		}
	}

	if err := envBool(prefix+"_AUTO_START", &c.AutoStart); err != nil {
		return err
	}
	if err := envBool(prefix+"_SMOOTHING", &c.Smoothing); err != nil {
		return err
	}
	if err := envBool(prefix+"_LOG_COLOR", &c.LogColor); err != nil {
		return err
	}
	if err := envInt(prefix+"_WINDOW_SIZE", &c.WindowSize); err != nil {
		return err
	}
	if err := envInt(prefix+"_HYSTERESIS_THRESHOLD", &c.HysteresisThreshold); err != nil {
		return err
	}
	if err := envFloat(prefix+"_ALPHA", &c.Alpha); err != nil {
		return err
	}
	if err := envFloat(prefix+"_MARGIN", &c.Margin); err != nil {
		return err
	}
	if err := envFloat(prefix+"_DEFAULT_THRESHOLD", &c.DefaultThreshold); err != nil {
		return err
	}
	if v, ok := os.LookupEnv(prefix + "_STATUS_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s_STATUS_INTERVAL: %w", prefix, err)
		}
		c.StatusInterval = d
	}
	if v, ok := os.LookupEnv(prefix + "_ALLOWED_CLASSES"); ok {
		c.AllowedClasses = ParseList(v)
	}
	if v, ok := os.LookupEnv(prefix + "_CLASS_THRESHOLDS"); ok {
		th, err := ParseThresholds(v)
		if err != nil {
			return fmt.Errorf("%s_CLASS_THRESHOLDS: %w", prefix, err)
		}
		c.ClassThresholds = th
	}

	if err := c.Redis.LoadFromEnv(prefix + "_REDIS"); err != nil {
		return err
	}
	return c.MQTT.LoadFromEnv(prefix + "_MQTT")
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http address is required")
	}
	if c.ZonesPath == "" {
		return errors.New("zones file is required")
	}
	if c.Margin < 0 {
		return fmt.Errorf("zone margin must not be negative (got %v)", c.Margin)
	}
	if _, err := assign.ParsePersonOrder(c.PersonOrder); err != nil {
		return err
	}
	if _, err := c.SmootherConfig(); err != nil {
		return err
	}
	for class, th := range c.ClassThresholds {
		if th < 0 || th > 1 {
			return fmt.Errorf("confidence threshold for %q must be within [0, 1] (got %v)", class, th)
		}
	}
	if c.DefaultThreshold < 0 || c.DefaultThreshold > 1 {
		return fmt.Errorf("default confidence threshold must be within [0, 1] (got %v)", c.DefaultThreshold)
	}
	if c.StatusInterval <= 0 {
		return fmt.Errorf("status interval must be positive (got %s)", c.StatusInterval)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2 (got %d)", c.MQTT.QoS)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := logger.ParseFormat(c.LogFormat); err != nil {
		return err
	}
	return nil
}

// SmootherConfig builds and validates the smoother settings.
func (c Config) SmootherConfig() (smoother.Config, error) {
	method, err := smoother.ParseMethod(c.SmoothingMethod)
	if err != nil {
		return smoother.Config{}, err
	}
	sc := smoother.Config{
		Method:              method,
		WindowSize:          c.WindowSize,
		HysteresisThreshold: c.HysteresisThreshold,
		Alpha:               c.Alpha,
	}
	if err := sc.Validate(); err != nil {
		return smoother.Config{}, err
	}
	return sc, nil
}

// Pipeline translates the settings into a pipeline configuration.
func (c Config) Pipeline() (pipeline.Config, error) {
	if err := c.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	order, _ := assign.ParsePersonOrder(c.PersonOrder)
	sc, _ := c.SmootherConfig()

	pc := pipeline.DefaultConfig()
	pc.Margin = c.Margin
	pc.Assign = assign.Config{PrivilegedClass: c.PrivilegedClass, PersonOrder: order}
	pc.Smoothing = c.Smoothing
	pc.Smoother = sc
	pc.ClassThresholds = c.ClassThresholds
	pc.DefaultThreshold = c.DefaultThreshold
	pc.AllowedClasses = c.AllowedClasses
	return pc, nil
}

// ParseList splits a comma-separated list, dropping blanks.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseThresholds parses "person=0.3,cell phone=0.25".
func ParseThresholds(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, item := range ParseList(s) {
		class, val, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("threshold %q: want class=value", item)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", item, err)
		}
		out[strings.ToLower(strings.TrimSpace(class))] = f
	}
	return out, nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
