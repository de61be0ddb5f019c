package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatsense/seat-monitor/internal/assign"
	"github.com/seatsense/seat-monitor/internal/smoother"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	pc, err := cfg.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, 100.0, pc.Margin)
	assert.Equal(t, smoother.MajorityVoting, pc.Smoother.Method)
	assert.Equal(t, 3, pc.Smoother.WindowSize)
	assert.Equal(t, 0.3, pc.ClassThresholds["person"])
	assert.Equal(t, []string{"person", "backpack", "laptop", "book"}, pc.AllowedClasses)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SEAT_HTTP_ADDR", ":9000")
	t.Setenv("SEAT_SMOOTHING_METHOD", "hysteresis")
	t.Setenv("SEAT_WINDOW_SIZE", "5")
	t.Setenv("SEAT_HYSTERESIS_THRESHOLD", "2")
	t.Setenv("SEAT_SMOOTHING", "false")
	t.Setenv("SEAT_PERSON_ORDER", "confidence")
	t.Setenv("SEAT_STATUS_INTERVAL", "500ms")
	t.Setenv("SEAT_ALLOWED_CLASSES", "person, cup ,")
	t.Setenv("SEAT_CLASS_THRESHOLDS", "person=0.5, Cell Phone=0.2")
	t.Setenv("SEAT_REDIS_ADDR", "localhost:6379")
	t.Setenv("SEAT_REDIS_MAXLEN", "50")
	t.Setenv("SEAT_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("SEAT_MQTT_QOS", "0")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "hysteresis", cfg.SmoothingMethod)
	assert.Equal(t, 5, cfg.WindowSize)
	assert.Equal(t, 2, cfg.HysteresisThreshold)
	assert.False(t, cfg.Smoothing)
	assert.Equal(t, 500*time.Millisecond, cfg.StatusInterval)
	assert.Equal(t, []string{"person", "cup"}, cfg.AllowedClasses)
	assert.Equal(t, map[string]float64{"person": 0.5, "cell phone": 0.2}, cfg.ClassThresholds)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, int64(50), cfg.Redis.MaxLen)
	assert.Equal(t, "seat:status", cfg.Redis.Stream)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(0), cfg.MQTT.QoS)

	pc, err := cfg.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, assign.OrderConfidence, pc.Assign.PersonOrder)
	assert.Equal(t, smoother.Hysteresis, pc.Smoother.Method)
	assert.False(t, pc.Smoothing)
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("SEAT_WINDOW_SIZE", "three")
	_, err := Load("")
	assert.ErrorContains(t, err, "SEAT_WINDOW_SIZE")
}

func TestLoadFromEnvRejectsOutOfRangeQoS(t *testing.T) {
	for _, v := range []string{"3", "258", "-1"} {
		t.Setenv("SEAT_MQTT_QOS", v)
		_, err := Load("")
		assert.ErrorContains(t, err, "SEAT_MQTT_QOS", v)
	}
}

func TestEnvFileFromArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ".env"},
		{[]string{"-http", ":9000"}, ".env"},
		{[]string{"-env", "prod.env"}, "prod.env"},
		{[]string{"--env=lab.env", "-json"}, "lab.env"},
		{[]string{"-env="}, ""},
		{[]string{"-env"}, ".env"},
		{[]string{"-zones", "env"}, ".env"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EnvFileFromArgs(tt.args, ".env"), "%v", tt.args)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SEAT_ALPHA=0.6\nSEAT_SMOOTHING_METHOD=exponential\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("SEAT_ALPHA")
		os.Unsetenv("SEAT_SMOOTHING_METHOD")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Alpha)
	assert.Equal(t, "exponential", cfg.SmoothingMethod)
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative margin", func(c *Config) { c.Margin = -1 }},
		{"unknown method", func(c *Config) { c.SmoothingMethod = "kalman" }},
		{"zero window", func(c *Config) { c.WindowSize = 0 }},
		{"hysteresis threshold", func(c *Config) { c.SmoothingMethod = "hysteresis"; c.HysteresisThreshold = 0 }},
		{"alpha", func(c *Config) { c.SmoothingMethod = "exponential"; c.Alpha = 1.5 }},
		{"person order", func(c *Config) { c.PersonOrder = "random" }},
		{"class threshold", func(c *Config) { c.ClassThresholds = map[string]float64{"person": 2} }},
		{"status interval", func(c *Config) { c.StatusInterval = 0 }},
		{"mqtt qos", func(c *Config) { c.MQTT.QoS = 3 }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"zones path", func(c *Config) { c.ZonesPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := cfg.Pipeline()
			assert.Error(t, err)
		})
	}
}

func TestParseThresholds(t *testing.T) {
	_, err := ParseThresholds("person")
	assert.Error(t, err)
	_, err = ParseThresholds("person=high")
	assert.Error(t, err)
	th, err := ParseThresholds("")
	require.NoError(t, err)
	assert.Empty(t, th)
}
