package server

import (
	"encoding/json"
	"time"

	"github.com/ffpull/ffpull/internal/engine"
)

// MessageType names a WebSocket message
type MessageType string

const (
	// MessageTypeSyncStarted is sent when a batch begins
	MessageTypeSyncStarted MessageType = "sync_started"

	// MessageTypeSyncProgress is sent after each project
	MessageTypeSyncProgress MessageType = "sync_progress"

	// MessageTypeSyncComplete is sent when a batch ends, canceled or not
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeLogLine carries one new line of the in-app log
	MessageTypeLogLine MessageType = "log_line"

	// MessageTypeProjectsChanged carries the full project list after any change
	MessageTypeProjectsChanged MessageType = "projects_changed"
)

// Message is one broadcast
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SyncStartedData announces a batch
type SyncStartedData struct {
	Total int `json:"total"`
}

// SyncProgressData reports one finished project
type SyncProgressData struct {
	Index    int         `json:"index"`
	Total    int         `json:"total"`
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Outcome  engine.Kind `json:"outcome"`
	Detail   string      `json:"detail,omitempty"`
	OldHead  string      `json:"old_head,omitempty"`
	NewHead  string      `json:"new_head,omitempty"`
	Fraction float64     `json:"fraction"`
}

func progressData(p engine.Progress) SyncProgressData {
	return SyncProgressData{
		Index:    p.Index,
		Total:    p.Total,
		Name:     p.Record.Name,
		Path:     p.Record.Path,
		Outcome:  p.Outcome.Kind,
		Detail:   p.Outcome.Reason,
		OldHead:  p.Outcome.OldHead,
		NewHead:  p.Outcome.NewHead,
		Fraction: p.Fraction,
	}
}

// SyncCompleteData reports how a batch ended
type SyncCompleteData struct {
	engine.Summary
	Canceled bool          `json:"canceled"`
	Duration time.Duration `json:"duration"`
}

// LogLineData carries one log line
type LogLineData struct {
	Line string `json:"line"`
}

// newMessage marshals data into a timestamped message. Data that cannot be
// marshaled is dropped.
func newMessage(t MessageType, data any) Message {
	msg := Message{Type: t, Timestamp: time.Now()}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			msg.Data = raw
		}
	}
	return msg
}
