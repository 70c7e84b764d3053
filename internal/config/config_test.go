package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alertbeacon/alertbeacon/internal/pattern"
	"github.com/alertbeacon/alertbeacon/internal/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func noEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultGPIOPin, cfg.Indicator.GPIOPin)
	assert.Equal(t, DefaultGPIOChip, cfg.Indicator.GPIOChip)
	assert.Equal(t, DefaultLightbulbType, cfg.Indicator.LightbulbType)
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.WebhookSecret)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, time.Duration(0), cfg.Alerts.RemindInterval)
	assert.Equal(t, DefaultFlapWindow, cfg.Alerts.FlapWindow)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, ":5000", cfg.Addr())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "8085")
	t.Setenv("GPIO_PIN", "17")
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("DEBUG", "true")
	t.Setenv("LIGHTBULB_TYPE", "MQTT")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("REMIND_INTERVAL", "15m")
	t.Setenv("APPRISE_URLS", "slack://a/b/c, ntfy://topic ,")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8085, cfg.Port)
	assert.Equal(t, 17, cfg.Indicator.GPIOPin)
	assert.Equal(t, "s3cret", cfg.WebhookSecret)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "mqtt", cfg.Indicator.LightbulbType)
	assert.Equal(t, "tcp://broker:1883", cfg.Indicator.MQTT.Broker)
	assert.Equal(t, "ON", cfg.Indicator.MQTT.PayloadOn)
	assert.Equal(t, 15*time.Minute, cfg.Alerts.RemindInterval)
	assert.Equal(t, []string{"slack://a/b/c", "ntfy://topic"}, cfg.Apprise.URLs)
}

func TestLoad_EnvFileIsOverriddenByEnvironment(t *testing.T) {
	envFile := writeFile(t, ".env", "GPIO_PIN=23\nPORT=6000\nWEBHOOK_SECRET=from-file\n")
	t.Setenv("PORT", "7000")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, 23, cfg.Indicator.GPIOPin)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "from-file", cfg.WebhookSecret)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := Load(noEnvFile(t))
	require.Error(t, err)
}

func TestLoad_NonNumericPin(t *testing.T) {
	t.Setenv("GPIO_PIN", "eighteen")
	_, err := Load(noEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GPIO_PIN")
}

func TestLoad_UnknownLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	_, err := Load(noEnvFile(t))
	require.Error(t, err)
}

func TestLoad_UnknownLightbulbTypeIsAccepted(t *testing.T) {
	t.Setenv("LIGHTBULB_TYPE", "philips_hue")
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "philips_hue", cfg.Indicator.LightbulbType)
}

func TestLoadPatterns(t *testing.T) {
	p := writeFile(t, "patterns.yaml", `patterns:
  Critical:
    on: 50ms
    off: 150ms
    repeat: 8
    final: on
  low:
    on: 1s
    repeat: 0
    final: off
`)
	got, err := LoadPatterns(p)
	require.NoError(t, err)
	require.Len(t, got, 2)

	c := got[types.SeverityCritical]
	assert.Equal(t, "critical", c.Name)
	assert.Equal(t, 50*time.Millisecond, c.On)
	assert.Equal(t, 150*time.Millisecond, c.Off)
	assert.Equal(t, 8, c.Repeat)
	assert.Equal(t, pattern.FinalOn, c.Final)
	assert.Equal(t, pattern.FinalOff, got[types.SeverityLow].Final)
}

func TestLoadPatterns_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown severity": "patterns:\n  urgent: {on: 1s, repeat: 1}\n",
		"bad final":        "patterns:\n  low: {on: 1s, repeat: 1, final: maybe}\n",
		"bad yaml":         "patterns: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPatterns(writeFile(t, "patterns.yaml", content))
			require.Error(t, err)
		})
	}

	_, err := LoadPatterns("/nonexistent/patterns.yaml")
	require.Error(t, err)
}

func TestApplyPatterns(t *testing.T) {
	tbl := pattern.NewTable()
	require.NoError(t, ApplyPatterns("", tbl))
	assert.Equal(t, 5, tbl.Lookup(types.SeverityCritical).Repeat)

	p := writeFile(t, "patterns.yaml", "patterns:\n  critical: {on: 10ms, off: 10ms, repeat: 9}\n")
	require.NoError(t, ApplyPatterns(p, tbl))
	assert.Equal(t, 9, tbl.Lookup(types.SeverityCritical).Repeat)
}

func TestWatchPatterns_ReloadsOnWrite(t *testing.T) {
	p := writeFile(t, "patterns.yaml", "patterns:\n  critical: {on: 10ms, off: 10ms, repeat: 2}\n")
	tbl := pattern.NewTable()
	require.NoError(t, ApplyPatterns(p, tbl))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- WatchPatterns(ctx, p, tbl, zerolog.Nop(), func() { reloaded <- struct{}{} })
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid write is ignored.
	require.NoError(t, os.WriteFile(p, []byte("patterns:\n  critical: {repeat: -1}\n"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, tbl.Lookup(types.SeverityCritical).Repeat)

	require.NoError(t, os.WriteFile(p, []byte("patterns:\n  critical: {on: 10ms, off: 10ms, repeat: 7}\n"), 0o600))
	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("pattern file was not reloaded")
	}
	assert.Equal(t, 7, tbl.Lookup(types.SeverityCritical).Repeat)

	cancel()
	require.NoError(t, <-errc)
}

func TestWatchPatterns_ReloadsOnRenameSave(t *testing.T) {
	p := writeFile(t, "patterns.yaml", "patterns:\n  critical: {on: 10ms, off: 10ms, repeat: 2}\n")
	tbl := pattern.NewTable()
	require.NoError(t, ApplyPatterns(p, tbl))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 8)
	errc := make(chan error, 1)
	go func() {
		errc <- WatchPatterns(ctx, p, tbl, zerolog.Nop(), func() { reloaded <- struct{}{} })
	}()
	time.Sleep(100 * time.Millisecond)

	save := func(repeat int) {
		tmp := filepath.Join(filepath.Dir(p), ".patterns.yaml.tmp")
		body := fmt.Sprintf("patterns:\n  critical: {on: 10ms, off: 10ms, repeat: %d}\n", repeat)
		require.NoError(t, os.WriteFile(tmp, []byte(body), 0o600))
		require.NoError(t, os.Rename(tmp, p))
	}

	// Two saves in a row: the second proves the watch survived the first.
	for _, repeat := range []int{7, 9} {
		save(repeat)
		require.Eventually(t, func() bool { return tbl.Lookup(types.SeverityCritical).Repeat == repeat },
			3*time.Second, 10*time.Millisecond, "rename save with repeat=%d was not picked up", repeat)
	}

	cancel()
	require.NoError(t, <-errc)
}

func TestLoadPatterns_EmptyFileIsRejected(t *testing.T) {
	_, err := LoadPatterns(writeFile(t, "patterns.yaml", ""))
	require.Error(t, err)
}
