// Package ingest authenticates and parses inbound alert webhooks.
//
// Each source platform has its own Parser; everything downstream only sees
// ParsedAlert, so adding a platform never touches the tracker or the
// pattern engine.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/alertbeacon/alertbeacon/internal/types"
)

// ParsedAlert is the platform-neutral result of parsing a webhook.
type ParsedAlert struct {
	GroupID  string         `json:"group_id"`
	Title    string         `json:"title,omitempty"`
	Severity types.Severity `json:"severity"`
	Resolved bool           `json:"resolved"`
	Platform string         `json:"platform"`
}

// Parser turns a raw payload from one platform into a ParsedAlert.
type Parser interface {
	Parse(raw []byte) (ParsedAlert, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(raw []byte) (ParsedAlert, error)

func (f ParserFunc) Parse(raw []byte) (ParsedAlert, error) { return f(raw) }

// ParseError reports a malformed or incomplete payload.
type ParseError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s payload: %s: %v", e.Platform, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s payload: %s", e.Platform, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnknownPlatformError is returned for a platform with no parser.
type UnknownPlatformError struct {
	Platform string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown webhook platform %q", e.Platform)
}

// Registry maps platform names to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry with every built-in platform.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register(PlatformGrafanaIRM, ParserFunc(parseGrafanaIRM))
	r.Register(PlatformGrafanaOnCall, ParserFunc(parseGrafanaIRM))
	r.Register(PlatformAlertmanager, ParserFunc(parseAlertmanager))
	r.Register(PlatformGrafana, ParserFunc(parseAlertmanager))
	return r
}

// Register adds or replaces the parser for platform.
func (r *Registry) Register(platform string, p Parser) {
	r.parsers[strings.ToLower(platform)] = p
}

// Platforms lists the registered platform names, sorted.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Parse decodes raw with the parser registered for platform.
func (r *Registry) Parse(platform string, raw []byte) (ParsedAlert, error) {
	name := strings.ToLower(platform)
	p, ok := r.parsers[name]
	if !ok {
		return ParsedAlert{}, &UnknownPlatformError{Platform: platform}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return ParsedAlert{}, &ParseError{Platform: name, Reason: "empty body"}
	}
	alert, err := p.Parse(raw)
	if err != nil {
		return ParsedAlert{}, err
	}
	alert.GroupID = strings.TrimSpace(alert.GroupID)
	if alert.GroupID == "" {
		return ParsedAlert{}, &ParseError{Platform: name, Reason: "missing alert group identifier"}
	}
	if !alert.Severity.Valid() {
		alert.Severity = types.SeverityInfo
	}
	alert.Platform = name
	return alert, nil
}

// decodeJSON unmarshals raw into out, wrapping failures in a ParseError.
func decodeJSON(platform string, raw []byte, out interface{}) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &ParseError{Platform: platform, Reason: "malformed JSON", Err: err}
	}
	return nil
}

// flexString accepts a JSON string or number (some platforms send numeric
// ids).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
