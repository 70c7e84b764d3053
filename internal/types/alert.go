package types

import (
	"strings"
	"time"
)

// Severity is the urgency label that selects a blink pattern.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
)

// Severities lists every severity, most urgent first.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityWarning, SeverityInfo, SeverityLow}

var severityAliases = map[string]Severity{
	"critical":      SeverityCritical,
	"crit":          SeverityCritical,
	"disaster":      SeverityCritical,
	"emergency":     SeverityCritical,
	"fatal":         SeverityCritical,
	"p1":            SeverityCritical,
	"high":          SeverityHigh,
	"error":         SeverityHigh,
	"major":         SeverityHigh,
	"p2":            SeverityHigh,
	"warning":       SeverityWarning,
	"warn":          SeverityWarning,
	"average":       SeverityWarning,
	"medium":        SeverityWarning,
	"minor":         SeverityWarning,
	"p3":            SeverityWarning,
	"info":          SeverityInfo,
	"information":   SeverityInfo,
	"informational": SeverityInfo,
	"notice":        SeverityInfo,
	"p4":            SeverityInfo,
	"low":           SeverityLow,
	"debug":         SeverityLow,
	"p5":            SeverityLow,
}

// ParseSeverity maps a source-platform label onto a Severity.
// Unknown or empty labels map to SeverityInfo.
func ParseSeverity(label string) Severity {
	if s, ok := severityAliases[strings.ToLower(strings.TrimSpace(label))]; ok {
		return s
	}
	return SeverityInfo
}

// Valid reports whether s is one of the enumerated severities.
func (s Severity) Valid() bool {
	for _, v := range Severities {
		if v == s {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an alert group.
type Status string

const (
	StatusFiring   Status = "firing"
	StatusResolved Status = "resolved"
)

// AlertGroup is one incident tracked by the alert state tracker.
type AlertGroup struct {
	ID       string    `json:"id"`
	Title    string    `json:"title,omitempty"`
	Platform string    `json:"platform,omitempty"`
	Severity Severity  `json:"severity"`
	Status   Status    `json:"status"`
	FiredAt  time.Time `json:"fired_at"`
	LastSeen time.Time `json:"last_seen"`

	// Order is the fire sequence number; higher fired more recently.
	Order uint64 `json:"-"`
}

// EventKind names a tracker transition forwarded to notifiers.
type EventKind string

const (
	EventFired    EventKind = "fired"
	EventChanged  EventKind = "changed"
	EventResolved EventKind = "resolved"
	EventFlapping EventKind = "flapping"
)

// Event describes a tracker transition for an alert group.
type Event struct {
	Kind     EventKind `json:"kind"`
	GroupID  string    `json:"group_id"`
	Title    string    `json:"title,omitempty"`
	Severity Severity  `json:"severity"`
	Owner    bool      `json:"owner"`
	At       time.Time `json:"at"`
}
