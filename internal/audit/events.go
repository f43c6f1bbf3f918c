package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

const (
	EventTypeRequest        EventType = "request"
	EventTypeAuthorization  EventType = "authorization"
	EventTypeSecurity       EventType = "security"
	EventTypeConfiguration  EventType = "configuration"
	EventTypeAdministrative EventType = "administrative"
)

// Action names the audited operation.
type Action string

const (
	ActionProxyRequest      Action = "proxy_request"
	ActionAccess            Action = "access"
	ActionDeny              Action = "deny"
	ActionEgressBlocked     Action = "egress_blocked"
	ActionDecryptionFailed  Action = "decryption_failed"
	ActionRateLimitExceeded Action = "rate_limit_exceeded"
	ActionBreakerOpened     Action = "breaker_opened"
	ActionBreakerReset      Action = "breaker_reset"
	ActionConfigReload      Action = "config_reload"
)

// Outcome is the result of the audited operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

// Level is the severity of an audit event.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Subject is the principal behind an audited operation.
type Subject struct {
	ID       string   `json:"id,omitempty"`
	TenantID string   `json:"tenant_id,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	ClientIP string   `json:"client_ip,omitempty"`
}

// Resource is the target of an audited operation.
type Resource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Event is a single audit record. Secret material never appears in an
// event; callers record identifiers and outcomes only.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Action    Action         `json:"action"`
	Outcome   Outcome        `json:"outcome"`
	Level     Level          `json:"level"`
	Subject   *Subject       `json:"subject,omitempty"`
	Resource  *Resource      `json:"resource,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEvent creates an event with a fresh id and timestamp.
func NewEvent(eventType EventType, action Action, outcome Outcome) *Event {
	level := LevelInfo
	switch outcome {
	case OutcomeDenied, OutcomeFailure:
		level = LevelWarning
	case OutcomeError:
		level = LevelCritical
	}
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Action:    action,
		Outcome:   outcome,
		Level:     level,
	}
}

// WithLevel overrides the derived severity.
func (e *Event) WithLevel(level Level) *Event {
	e.Level = level
	return e
}
