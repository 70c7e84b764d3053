package ingest

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alertbeacon/alertbeacon/internal/types"
)

func TestParse_GrafanaIRM(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name     string
		body     string
		want     ParsedAlert
		platform string
	}{
		{
			name:     "firing with group severity",
			platform: PlatformGrafanaIRM,
			body:     `{"event_type":"alert_group_created","alert_group":{"id":"IRM1","title":"DB down","severity":"Critical"}}`,
			want:     ParsedAlert{GroupID: "IRM1", Title: "DB down", Severity: types.SeverityCritical, Platform: PlatformGrafanaIRM},
		},
		{
			name:     "severity from payload labels",
			platform: PlatformGrafanaIRM,
			body:     `{"alert_group":{"id":"IRM2"},"alert_payload":{"labels":{"severity":"warn"}}}`,
			want:     ParsedAlert{GroupID: "IRM2", Severity: types.SeverityWarning, Platform: PlatformGrafanaIRM},
		},
		{
			name:     "missing severity is info",
			platform: PlatformGrafanaIRM,
			body:     `{"alert_group":{"id":"IRM3"}}`,
			want:     ParsedAlert{GroupID: "IRM3", Severity: types.SeverityInfo, Platform: PlatformGrafanaIRM},
		},
		{
			name:     "resolved by event_type",
			platform: PlatformGrafanaIRM,
			body:     `{"event_type":"alert_group_resolved","alert_group":{"id":"IRM4","severity":"high"}}`,
			want:     ParsedAlert{GroupID: "IRM4", Severity: types.SeverityHigh, Resolved: true, Platform: PlatformGrafanaIRM},
		},
		{
			name:     "resolved by oncall event type",
			platform: PlatformGrafanaOnCall,
			body:     `{"event":{"type":"resolve"},"alert_group":{"id":"IRM5"}}`,
			want:     ParsedAlert{GroupID: "IRM5", Severity: types.SeverityInfo, Resolved: true, Platform: PlatformGrafanaOnCall},
		},
		{
			name:     "resolved by state",
			platform: PlatformGrafanaIRM,
			body:     `{"alert_group":{"id":"IRM6","state":"Resolved"}}`,
			want:     ParsedAlert{GroupID: "IRM6", Severity: types.SeverityInfo, Resolved: true, Platform: PlatformGrafanaIRM},
		},
		{
			name:     "numeric id",
			platform: PlatformGrafanaIRM,
			body:     `{"alert_group":{"id":42,"status":"firing","severity":"p2"}}`,
			want:     ParsedAlert{GroupID: "42", Severity: types.SeverityHigh, Platform: PlatformGrafanaIRM},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := reg.Parse(tc.platform, []byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_Alertmanager(t *testing.T) {
	reg := NewRegistry()

	got, err := reg.Parse(PlatformAlertmanager, []byte(`{
		"status": "firing",
		"groupKey": "{}:{alertname=\"HighCPU\"}",
		"commonLabels": {"alertname": "HighCPU", "severity": "critical"},
		"alerts": [{"status": "firing", "labels": {"severity": "warning"}}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, `{}:{alertname="HighCPU"}`, got.GroupID)
	assert.Equal(t, types.SeverityCritical, got.Severity)
	assert.Equal(t, "HighCPU", got.Title)
	assert.False(t, got.Resolved)

	got, err = reg.Parse(PlatformGrafana, []byte(`{
		"status": "resolved",
		"groupKey": "g1",
		"title": "[RESOLVED] disk",
		"alerts": [{"labels": {"severity": "major"}}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "g1", got.GroupID)
	assert.Equal(t, types.SeverityHigh, got.Severity)
	assert.Equal(t, "[RESOLVED] disk", got.Title)
	assert.Equal(t, PlatformGrafana, got.Platform)
	assert.True(t, got.Resolved)
}

func TestParse_Errors(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name string
		body string
	}{
		{"not json", `this is not json`},
		{"empty", ``},
		{"whitespace", "  \n"},
		{"no alert group", `{"event_type":"alert_group_created"}`},
		{"empty id", `{"alert_group":{"id":""}}`},
		{"wrong type", `{"alert_group":"IRM1"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Parse(PlatformGrafanaIRM, []byte(tc.body))
			require.Error(t, err)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
		})
	}

	_, err := reg.Parse(PlatformAlertmanager, []byte(`{"status":"firing"}`))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Error(), "missing alert group identifier")
}

func TestParse_UnknownPlatform(t *testing.T) {
	_, err := NewRegistry().Parse("pagerduty", []byte(`{}`))
	var ue *UnknownPlatformError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "pagerduty", ue.Platform)
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Custom", ParserFunc(func(raw []byte) (ParsedAlert, error) {
		return ParsedAlert{GroupID: string(raw), Severity: types.SeverityLow}, nil
	}))

	got, err := reg.Parse("custom", []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", got.GroupID)
	assert.Equal(t, "custom", got.Platform)
	assert.Contains(t, reg.Platforms(), "custom")
	assert.Contains(t, reg.Platforms(), PlatformGrafanaIRM)
}

func TestCheckSecret(t *testing.T) {
	const secret = "s3cret"

	tests := []struct {
		name   string
		target string
		header map[string]string
		ok     bool
	}{
		{name: "header", target: "/webhook/grafana-irm", header: map[string]string{SecretHeader: secret}, ok: true},
		{name: "authorization raw", target: "/webhook/grafana-irm", header: map[string]string{"Authorization": secret}, ok: true},
		{name: "authorization bearer", target: "/webhook/grafana-irm", header: map[string]string{"Authorization": "Bearer " + secret}, ok: true},
		{name: "query", target: "/webhook/grafana-irm?secret=" + secret, ok: true},
		{name: "missing", target: "/webhook/grafana-irm"},
		{name: "wrong", target: "/webhook/grafana-irm", header: map[string]string{SecretHeader: "nope"}},
		{name: "prefix only", target: "/webhook/grafana-irm", header: map[string]string{SecretHeader: "s3cre"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", tc.target, nil)
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			err := CheckSecret(r, secret)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			var ae *AuthError
			assert.True(t, errors.As(err, &ae), "want *AuthError, got %v", err)
		})
	}
}

func TestCheckSecret_Disabled(t *testing.T) {
	r := httptest.NewRequest("POST", "/webhook/grafana-irm", nil)
	assert.NoError(t, CheckSecret(r, ""))
}
