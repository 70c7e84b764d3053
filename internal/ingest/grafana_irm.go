package ingest

import (
	"strings"

	"github.com/alertbeacon/alertbeacon/internal/types"
)

// Platform names accepted in /webhook/<platform>.
const (
	PlatformGrafanaIRM    = "grafana-irm"
	PlatformGrafanaOnCall = "grafana-oncall"
	PlatformAlertmanager  = "alertmanager"
	PlatformGrafana       = "grafana"
)

// irmPayload covers both the legacy IRM layout (event_type,
// alert_group.status) and the OnCall outgoing-webhook layout (event.type,
// alert_group.state).
type irmPayload struct {
	EventType string `json:"event_type"`
	Event     *struct {
		Type string `json:"type"`
	} `json:"event"`
	AlertGroup *struct {
		ID       flexString `json:"id"`
		Title    string     `json:"title"`
		Severity string     `json:"severity"`
		Status   string     `json:"status"`
		State    string     `json:"state"`
	} `json:"alert_group"`
	AlertPayload *struct {
		Labels       map[string]string `json:"labels"`
		CommonLabels map[string]string `json:"commonLabels"`
	} `json:"alert_payload"`
}

func parseGrafanaIRM(raw []byte) (ParsedAlert, error) {
	var p irmPayload
	if err := decodeJSON(PlatformGrafanaIRM, raw, &p); err != nil {
		return ParsedAlert{}, err
	}
	if p.AlertGroup == nil {
		return ParsedAlert{}, &ParseError{Platform: PlatformGrafanaIRM, Reason: "missing alert_group"}
	}

	g := p.AlertGroup
	var labelSeverity string
	if p.AlertPayload != nil {
		labelSeverity = firstNonEmpty(p.AlertPayload.Labels["severity"], p.AlertPayload.CommonLabels["severity"])
	}

	eventType := strings.ToLower(p.EventType)
	if p.Event != nil && eventType == "" {
		eventType = strings.ToLower(p.Event.Type)
	}
	status := strings.ToLower(firstNonEmpty(g.Status, g.State))

	resolved := eventType == "alert_group_resolved" ||
		eventType == "resolve" ||
		eventType == "resolved" ||
		status == "resolved"

	return ParsedAlert{
		GroupID:  string(g.ID),
		Title:    g.Title,
		Severity: types.ParseSeverity(firstNonEmpty(g.Severity, labelSeverity)),
		Resolved: resolved,
	}, nil
}
