package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alertbeacon/alertbeacon/internal/config"
	"github.com/alertbeacon/alertbeacon/internal/indicator/indicatortest"
	"github.com/alertbeacon/alertbeacon/internal/logbuf"
	"github.com/alertbeacon/alertbeacon/internal/pattern"
)

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "alertbeacon dev"), out.String())
}

func TestNewLogger_WritesToBuffer(t *testing.T) {
	var out bytes.Buffer
	lb := logbuf.NewLogBuffer(10)
	logger := newLogger(&config.Config{LogFormat: "json"}, &out, lb)

	logger.Info().Str("component", "test").Msg("hello")

	assert.Contains(t, out.String(), `"message":"hello"`)
	entries := lb.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, "dev", entries[0].Fields["version"])
}

func TestNewLogger_Console(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger(&config.Config{LogFormat: "console"}, &out, nil)

	logger.Warn().Msg("careful")
	assert.Contains(t, out.String(), "careful")
	assert.NotContains(t, out.String(), `"message"`)
}

func TestIndicatorOptions(t *testing.T) {
	cfg := &config.Config{Indicator: config.IndicatorConfig{
		LightbulbType: "mqtt",
		GPIOChip:      "gpiochip4",
		GPIOPin:       17,
		MQTT:          config.MQTTConfig{Broker: "tcp://broker:1883", Topic: "bulb/set"},
	}}
	opts := indicatorOptions(cfg)
	assert.Equal(t, "mqtt", opts.Type)
	assert.Equal(t, "gpiochip4", opts.Chip)
	assert.Equal(t, 17, opts.Pin)
	assert.Equal(t, "tcp://broker:1883", opts.MQTT.Broker)
	assert.Equal(t, "bulb/set", opts.MQTT.Topic)
}

func TestBlinkLoop_ForeverWithZeroRepeatHolds(t *testing.T) {
	engine := pattern.NewEngine(indicatortest.New(), nil, zerolog.Nop())
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	p := pattern.Pattern{Name: "steady", Repeat: 0, Final: pattern.FinalOn}
	blinkLoop(ctx, engine, p, true)

	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	assert.Equal(t, uint64(1), engine.State().Version)
	assert.True(t, engine.State().Level)
}

func TestBlinkLoop_SingleRun(t *testing.T) {
	engine := pattern.NewEngine(indicatortest.New(), nil, zerolog.Nop())
	defer engine.Close()

	p := pattern.Pattern{Name: "quick", On: time.Millisecond, Off: time.Millisecond, Repeat: 2, Final: pattern.FinalOff}
	blinkLoop(context.Background(), engine, p, false)

	assert.Equal(t, pattern.ModeOff, engine.State().Mode)
}
