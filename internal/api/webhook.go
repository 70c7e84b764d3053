package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alertbeacon/alertbeacon/internal/alerter"
	"github.com/alertbeacon/alertbeacon/internal/ingest"
	"github.com/alertbeacon/alertbeacon/internal/types"
)

const (
	testPlatform = "test"
	testGroupID  = "test-alert"
)

// Webhook results recorded in metrics.
const (
	resultOK           = "ok"
	resultUnauthorized = "unauthorized"
	resultBadRequest   = "bad_request"
	resultNotFound     = "unknown_platform"
)

// handleWebhook serves /webhook/<platform>.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	platform := strings.ToLower(strings.Trim(strings.TrimPrefix(r.URL.Path, "/webhook/"), "/"))
	if platform == "" || strings.Contains(platform, "/") {
		jsonErr(w, http.StatusNotFound, "webhook platform required")
		return
	}
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.authorize(w, r, platform) {
		return
	}

	if platform == testPlatform {
		s.handleTestWebhook(w, r)
		return
	}

	log := s.reqLogger(r)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.observe(platform, resultBadRequest)
		log.Warn().Err(err).Str("platform", platform).Msg("Failed to read webhook body")
		jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large or unreadable")
		return
	}

	alert, err := s.registry.Parse(platform, raw)
	if err != nil {
		var pe *ingest.ParseError
		var ue *ingest.UnknownPlatformError
		switch {
		case errors.As(err, &ue):
			s.observe("unknown", resultNotFound)
			log.Warn().Str("platform", platform).Msg("Webhook for unknown platform")
			jsonErr(w, http.StatusNotFound, err.Error())
		case errors.As(err, &pe):
			s.observe(platform, resultBadRequest)
			log.Warn().Err(err).Str("platform", platform).Msg("Rejected malformed webhook")
			jsonErr(w, http.StatusBadRequest, err.Error())
		default:
			s.observe(platform, "error")
			log.Error().Err(err).Str("platform", platform).Msg("Webhook parsing failed")
			jsonErr(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	var outcome alerter.Outcome
	action := "turned on"
	if alert.Resolved {
		outcome = s.tracker.HandleResolved(alert.GroupID)
		action = "turned off"
	} else {
		outcome = s.tracker.HandleFiring(alerter.FireRequest{
			ID:       alert.GroupID,
			Title:    alert.Title,
			Severity: alert.Severity,
			Platform: alert.Platform,
		})
	}
	s.observe(platform, resultOK)

	log.Info().
		Str("platform", alert.Platform).
		Str("group_id", alert.GroupID).
		Str("severity", string(alert.Severity)).
		Bool("resolved", alert.Resolved).
		Str("action", string(outcome)).
		Msg("Webhook processed")

	jsonResp(w, http.StatusOK, webhookResponse(alert, outcome, action))
}

// handleTestWebhook fires a warning-level test alert that takes the
// indicator; ?status=resolved clears it.
func (s *Server) handleTestWebhook(w http.ResponseWriter, r *http.Request) {
	alert := ingest.ParsedAlert{
		GroupID:  testGroupID,
		Title:    "Test Alert",
		Severity: types.SeverityWarning,
		Platform: testPlatform,
		Resolved: strings.EqualFold(r.URL.Query().Get("status"), string(types.StatusResolved)),
	}

	var outcome alerter.Outcome
	action := "turned on"
	if alert.Resolved {
		outcome = s.tracker.HandleResolved(testGroupID)
		action = "turned off"
	} else {
		outcome = s.tracker.HandleFiring(alerter.FireRequest{
			ID:       testGroupID,
			Title:    alert.Title,
			Severity: alert.Severity,
			Platform: testPlatform,
			Preempt:  true,
		})
	}
	s.observe(testPlatform, resultOK)

	s.reqLogger(r).Info().
		Str("group_id", testGroupID).
		Str("action", string(outcome)).
		Msg("Test webhook processed")

	resp := webhookResponse(alert, outcome, action)
	resp["message"] = "Test lightbulb control successful"
	jsonResp(w, http.StatusOK, resp)
}

// authorize checks the shared secret and writes a 401 on failure.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, platform string) bool {
	err := ingest.CheckSecret(r, s.secret)
	if err == nil {
		return true
	}
	if platform != "" {
		s.observe(metricPlatform(s.registry, platform), resultUnauthorized)
	}
	s.reqLogger(r).Warn().
		Err(err).
		Str("path", r.URL.Path).
		Str("remote", r.RemoteAddr).
		Msg("Rejected unauthenticated request")
	jsonErr(w, http.StatusUnauthorized, "unauthorized")
	return false
}

// metricPlatform bounds the platform label to known values.
func metricPlatform(reg *ingest.Registry, platform string) string {
	if platform == testPlatform {
		return platform
	}
	for _, p := range reg.Platforms() {
		if p == platform {
			return platform
		}
	}
	return "unknown"
}

func webhookResponse(alert ingest.ParsedAlert, outcome alerter.Outcome, action string) map[string]interface{} {
	title := alert.Title
	if title == "" {
		title = "Unknown"
	}
	return map[string]interface{}{
		"status":      "success",
		"action":      action,
		"outcome":     outcome,
		"group_id":    alert.GroupID,
		"severity":    alert.Severity,
		"alert_title": title,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
}
