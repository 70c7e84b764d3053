// Package logbuf keeps the most recent log lines in memory for /api/logs.
package logbuf

import (
	"encoding/json"
	"sync"
	"time"
)

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Raw       string                 `json:"raw,omitempty"`
}

// LogBuffer is a thread-safe ring buffer for log entries. It implements
// io.Writer so it can sit behind a zerolog.MultiLevelWriter.
type LogBuffer struct {
	entries []LogEntry
	size    int
	head    int
	count   int
	now     func() time.Time
	mu      sync.RWMutex
}

// NewLogBuffer creates a new log buffer with the specified capacity
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = 1
	}
	return &LogBuffer{
		entries: make([]LogEntry, size),
		size:    size,
		now:     time.Now,
	}
}

// Write implements io.Writer for capturing zerolog JSON output. Lines that
// are not JSON are kept verbatim.
func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	entry := parseEntry(p, lb.now())

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries[lb.head] = entry
	lb.head = (lb.head + 1) % lb.size
	if lb.count < lb.size {
		lb.count++
	}

	return len(p), nil
}

// Entries returns all log entries in chronological order
func (lb *LogBuffer) Entries() []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	result := make([]LogEntry, lb.count)
	if lb.count == 0 {
		return result
	}

	start := 0
	if lb.count == lb.size {
		start = lb.head
	}

	for i := 0; i < lb.count; i++ {
		idx := (start + i) % lb.size
		result[i] = lb.entries[idx]
	}

	return result
}

// Recent returns the most recent n entries, optionally only those at or
// above minLevel.
func (lb *LogBuffer) Recent(n int, minLevel string) []LogEntry {
	entries := lb.Entries()
	if minLevel != "" {
		floor := levelRank(minLevel)
		filtered := entries[:0]
		for _, e := range entries {
			if levelRank(e.Level) >= floor {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// Len returns the number of buffered entries.
func (lb *LogBuffer) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.count
}

// Clear clears all log entries
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.head = 0
	lb.count = 0
}

var levelRanks = map[string]int{
	"trace": 0,
	"debug": 1,
	"info":  2,
	"warn":  3,
	"error": 4,
	"fatal": 5,
	"panic": 6,
}

func levelRank(level string) int {
	if r, ok := levelRanks[level]; ok {
		return r
	}
	return levelRanks["info"]
}

// parseEntry decodes a zerolog JSON line. Known keys become entry fields;
// everything else lands in Fields.
func parseEntry(p []byte, now time.Time) LogEntry {
	entry := LogEntry{Timestamp: now, Level: "info"}

	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		entry.Message = string(trimNewline(p))
		entry.Raw = entry.Message
		return entry
	}

	if v, ok := fields["level"].(string); ok {
		entry.Level = v
		delete(fields, "level")
	}
	if v, ok := fields["message"].(string); ok {
		entry.Message = v
		delete(fields, "message")
	}
	if v, ok := fields["component"].(string); ok {
		entry.Component = v
		delete(fields, "component")
	}
	if v, ok := fields["time"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			entry.Timestamp = ts
		}
		delete(fields, "time")
	}
	if len(fields) > 0 {
		entry.Fields = fields
	}
	return entry
}

func trimNewline(p []byte) []byte {
	for len(p) > 0 && (p[len(p)-1] == '\n' || p[len(p)-1] == '\r') {
		p = p[:len(p)-1]
	}
	return p
}
