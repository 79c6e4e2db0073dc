// Package domain holds the data shapes shared by the console components.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Meta carries the diagnostics the remote assistant attaches to a reply.
type Meta struct {
	RunID      string `json:"run_id,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Message represents a single conversational turn. Messages are appended once
// and never mutated; only a conversation reset removes them.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Meta      *Meta  `json:"meta,omitempty"`
}

// NewUserMessage builds a tester-authored turn.
func NewUserMessage(content string, at time.Time) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: at.UnixMilli()}
}

// NewAssistantMessage builds an assistant turn. meta may be nil.
func NewAssistantMessage(content string, meta *Meta, at time.Time) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: at.UnixMilli(), Meta: meta}
}

// Time returns the creation instant.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// FormatDuration renders a duration in milliseconds the way the panel shows it.
func FormatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}

// ShortRunID returns the segment after the last underscore of a run id.
func (m Meta) ShortRunID() string {
	if i := strings.LastIndex(m.RunID, "_"); i >= 0 {
		return m.RunID[i+1:]
	}
	return m.RunID
}

// String formats the meta line shown under a reply.
func (m Meta) String() string {
	return fmt.Sprintf("Duration: %s  ID: %s", FormatDuration(m.DurationMs), m.ShortRunID())
}

// Transcript renders the whole log as "[ROLE] content" blocks separated by a blank line.
func Transcript(msgs []Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, fmt.Sprintf("[%s] %s", strings.ToUpper(string(m.Role)), m.Content))
	}
	return strings.Join(parts, "\n\n")
}
