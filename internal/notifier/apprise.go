package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alertbeacon/alertbeacon/internal/config"
	"github.com/alertbeacon/alertbeacon/internal/types"
)

const queueSize = 64

// Notifier mirrors alert events to an Apprise API server. Events are
// queued by Notify and delivered by Run.
type Notifier struct {
	logger zerolog.Logger
	client *http.Client
	apiURL string
	urls   []string
	queue  chan types.Event
}

// NewNotifier creates a new Apprise notifier. It is disabled when no API
// URL is configured.
func NewNotifier(cfg config.AppriseConfig, logger zerolog.Logger) *Notifier {
	return &Notifier{
		logger: logger.With().Str("component", "notifier").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		urls:   cfg.URLs,
		queue:  make(chan types.Event, queueSize),
	}
}

// Enabled reports whether an Apprise API URL is configured.
func (n *Notifier) Enabled() bool {
	return n.apiURL != ""
}

// Notify queues ev for delivery. It never blocks; events are dropped
// when the queue is full.
func (n *Notifier) Notify(ev types.Event) {
	if !n.Enabled() {
		return
	}
	select {
	case n.queue <- ev:
	default:
		n.logger.Warn().
			Str("group_id", ev.GroupID).
			Str("kind", string(ev.Kind)).
			Msg("Notification queue full, dropping event")
	}
}

// Run delivers queued events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			if err := n.send(ctx, ev); err != nil {
				n.logger.Error().
					Err(err).
					Str("group_id", ev.GroupID).
					Msg("Failed to send notification")
				continue
			}
			n.logger.Info().
				Str("group_id", ev.GroupID).
				Str("kind", string(ev.Kind)).
				Msg("Notification sent")
		}
	}
}

// appriseRequest is the body accepted by the Apprise API /notify endpoint.
type appriseRequest struct {
	URLs   string `json:"urls,omitempty"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Type   string `json:"type"`
	Format string `json:"format"`
}

// formatMessage formats an event into an Apprise title and body
func formatMessage(ev types.Event) (title, body string) {
	var emoji string
	switch ev.Severity {
	case types.SeverityCritical, types.SeverityHigh:
		emoji = "🔴"
	case types.SeverityWarning:
		emoji = "⚠️"
	default:
		emoji = "ℹ️"
	}

	switch ev.Kind {
	case types.EventResolved:
		emoji = "🟢"
	case types.EventFlapping:
		emoji = "🔁"
	}

	name := ev.Title
	if name == "" {
		name = ev.GroupID
	}
	title = fmt.Sprintf("%s Alert %s: %s", emoji, ev.Kind, name)
	body = fmt.Sprintf("Group: %s\nSeverity: %s\nIndicator owner: %t\nAt: %s",
		ev.GroupID, ev.Severity, ev.Owner, ev.At.Format(time.RFC3339))
	return title, body
}

// notifyType maps an event onto an Apprise message type.
func notifyType(ev types.Event) string {
	if ev.Kind == types.EventResolved {
		return "success"
	}
	switch ev.Severity {
	case types.SeverityCritical, types.SeverityHigh:
		return "failure"
	case types.SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

func (n *Notifier) send(ctx context.Context, ev types.Event) error {
	title, body := formatMessage(ev)
	payload := appriseRequest{
		URLs:   strings.Join(n.urls, ","),
		Title:  title,
		Body:   body,
		Type:   notifyType(ev),
		Format: "text",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL+"/notify", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("apprise API error: %d - %s", resp.StatusCode, string(b))
	}
	return nil
}
