package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alertbeacon/alertbeacon/internal/types"
)

func TestDefaults_CoverEverySeverity(t *testing.T) {
	d := Defaults()
	for _, sev := range types.Severities {
		p, ok := d[sev]
		require.True(t, ok, sev)
		assert.Equal(t, string(sev), p.Name)
		assert.Equal(t, FinalOn, p.Final)
		require.NoError(t, p.Validate())
	}
	c := d[types.SeverityCritical]
	assert.Equal(t, 100*time.Millisecond, c.On)
	assert.Equal(t, 100*time.Millisecond, c.Off)
	assert.Equal(t, 5, c.Repeat)
	assert.Equal(t, time.Second, c.Duration())
}

func TestTable_LookupFallsBackToInfo(t *testing.T) {
	tbl := NewTable()
	assert.Equal(t, "info", tbl.Lookup(types.Severity("bogus")).Name)
	assert.Equal(t, "critical", tbl.Lookup(types.SeverityCritical).Name)
}

func TestTable_ReplaceMergesOntoDefaults(t *testing.T) {
	tbl := NewTable()
	err := tbl.Replace(map[types.Severity]Pattern{
		types.SeverityLow: {On: 50 * time.Millisecond, Off: 50 * time.Millisecond, Repeat: 1},
	})
	require.NoError(t, err)

	low := tbl.Lookup(types.SeverityLow)
	assert.Equal(t, "low", low.Name)
	assert.Equal(t, 50*time.Millisecond, low.On)
	assert.Equal(t, FinalOn, low.Final, "final defaults to on")
	assert.Equal(t, 5, tbl.Lookup(types.SeverityCritical).Repeat)
}

func TestTable_ReplaceRejectsInvalid(t *testing.T) {
	tbl := NewTable()
	cases := map[string]map[types.Severity]Pattern{
		"unknown severity": {"urgent": {On: time.Second, Repeat: 1}},
		"negative repeat":  {types.SeverityLow: {On: time.Second, Repeat: -1}},
		"missing on":       {types.SeverityLow: {Repeat: 2}},
		"bad final":        {types.SeverityLow: {On: time.Second, Repeat: 1, Final: "blink"}},
		"negative off":     {types.SeverityLow: {On: time.Second, Off: -time.Second, Repeat: 1}},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, tbl.Replace(overrides))
			assert.Equal(t, Defaults()[types.SeverityLow], tbl.Lookup(types.SeverityLow))
		})
	}
}

func TestPattern_JSON(t *testing.T) {
	b, err := Defaults()[types.SeverityCritical].MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"critical","on_ms":100,"off_ms":100,"repeat":5,"final":"on"}`, string(b))
}
