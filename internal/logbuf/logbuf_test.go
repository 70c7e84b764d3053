package logbuf

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer_CapturesZerolog(t *testing.T) {
	lb := NewLogBuffer(10)
	logger := zerolog.New(lb).With().Timestamp().Str("component", "tracker").Logger()

	logger.Info().Str("group_id", "g1").Msg("Alert group fired")
	logger.Warn().Msg("flapping detected")

	entries := lb.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "Alert group fired", entries[0].Message)
	assert.Equal(t, "tracker", entries[0].Component)
	assert.Equal(t, "g1", entries[0].Fields["group_id"])
	assert.WithinDuration(t, time.Now(), entries[0].Timestamp, 5*time.Second)
	assert.Equal(t, "warn", entries[1].Level)
}

func TestLogBuffer_Wraps(t *testing.T) {
	lb := NewLogBuffer(3)
	logger := zerolog.New(lb)
	for _, msg := range []string{"one", "two", "three", "four", "five"} {
		logger.Info().Msg(msg)
	}

	entries := lb.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "three", entries[0].Message)
	assert.Equal(t, "five", entries[2].Message)
	assert.Equal(t, 3, lb.Len())

	lb.Clear()
	assert.Empty(t, lb.Entries())
}

func TestLogBuffer_Recent(t *testing.T) {
	lb := NewLogBuffer(10)
	logger := zerolog.New(lb)
	logger.Debug().Msg("d")
	logger.Info().Msg("i")
	logger.Warn().Msg("w")
	logger.Error().Msg("e")

	assert.Len(t, lb.Recent(0, ""), 4)

	recent := lb.Recent(2, "")
	require.Len(t, recent, 2)
	assert.Equal(t, "w", recent[0].Message)

	warnUp := lb.Recent(10, "warn")
	require.Len(t, warnUp, 2)
	assert.Equal(t, "w", warnUp[0].Message)
	assert.Equal(t, "e", warnUp[1].Message)
}

func TestLogBuffer_NonJSONLine(t *testing.T) {
	lb := NewLogBuffer(2)
	_, err := lb.Write([]byte("12:00PM INF console line\n"))
	require.NoError(t, err)

	entries := lb.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "12:00PM INF console line", entries[0].Message)
	assert.Equal(t, "info", entries[0].Level)
}
