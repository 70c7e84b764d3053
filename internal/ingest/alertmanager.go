package ingest

import (
	"strings"

	"github.com/alertbeacon/alertbeacon/internal/types"
)

// alertmanagerPayload is the webhook body sent by Prometheus Alertmanager
// and Grafana unified alerting contact points.
type alertmanagerPayload struct {
	Status            string            `json:"status"`
	GroupKey          string            `json:"groupKey"`
	Title             string            `json:"title"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	Alerts            []struct {
		Status string            `json:"status"`
		Labels map[string]string `json:"labels"`
	} `json:"alerts"`
}

func parseAlertmanager(raw []byte) (ParsedAlert, error) {
	var p alertmanagerPayload
	if err := decodeJSON(PlatformAlertmanager, raw, &p); err != nil {
		return ParsedAlert{}, err
	}

	severity := p.CommonLabels["severity"]
	if severity == "" && len(p.Alerts) > 0 {
		severity = p.Alerts[0].Labels["severity"]
	}

	title := firstNonEmpty(p.Title, p.CommonAnnotations["summary"], p.CommonLabels["alertname"])

	return ParsedAlert{
		GroupID:  p.GroupKey,
		Title:    title,
		Severity: types.ParseSeverity(severity),
		Resolved: strings.EqualFold(p.Status, "resolved"),
	}, nil
}
