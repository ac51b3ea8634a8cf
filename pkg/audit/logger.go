package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relayline/governor/pkg/canonicalize"
)

// EventType defines the category of the audit event.
type EventType string

const (
	EventDecision   EventType = "DECISION"
	EventApproval   EventType = "APPROVAL"
	EventEscalation EventType = "ESCALATION"
	EventMutation   EventType = "MUTATION"
	EventSystem     EventType = "SYSTEM"
)

// Event represents a structured audit record. ContentHash is the
// canonical hash of Metadata so records can be compared and deduped
// across sinks regardless of key ordering.
type Event struct {
	ID          string                 `json:"id"`
	AgentID     string                 `json:"agent_id"`
	Type        EventType              `json:"type"`
	Action      string                 `json:"action"`
	Resource    string                 `json:"resource"`
	Timestamp   time.Time              `json:"timestamp"`
	ContentHash string                 `json:"content_hash,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Logger defines the interface for recording audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]interface{}) error
}

// logger implements Logger, writing structured JSON to a configurable Writer.
type logger struct {
	mu      sync.Mutex
	writer  io.Writer
	agentID string
	clock   func() time.Time
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger(agentID string) Logger {
	return NewLoggerWithWriter(agentID, os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// This allows injection for testing and custom sinks.
func NewLoggerWithWriter(agentID string, w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w, agentID: agentID, clock: time.Now}
}

func (l *logger) Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]interface{}) error {
	event := Event{
		ID:        uuid.New().String(),
		AgentID:   l.agentID,
		Type:      eventType,
		Action:    action,
		Resource:  resource,
		Timestamp: l.clock(),
		Metadata:  metadata,
	}
	if len(metadata) > 0 {
		if h, err := canonicalize.CanonicalHash(metadata); err == nil {
			event.ContentHash = h
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(bytes, '\n')...))
	return err
}
