package goLogin

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditSeverity classifies audit events for downstream alerting.
type AuditSeverity string

const (
	// SeverityInfo marks routine outcomes.
	SeverityInfo AuditSeverity = "info"
	// SeverityWarning marks suspicious but non-blocking outcomes, e.g. a
	// login from an unknown device.
	SeverityWarning AuditSeverity = "warning"
	// SeverityHigh marks security-relevant outcomes such as blocked logins
	// and MFA removal.
	SeverityHigh AuditSeverity = "high"
)

// AuditEvent is a structured security event emitted by the engine. Emission
// is fire-and-forget; a failing sink never affects the login outcome.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Severity  AuditSeverity     `json:"severity"`
	UserID    string            `json:"user_id,omitempty"`
	AuthTxID  string            `json:"auth_tx_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives emitted audit events.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailed           = "login_failed"
	auditEventLoginBlocked          = "login_blocked"
	auditEventUnknownDevice         = "unknown_device"
	auditEventChallengeStarted      = "mfa_challenge_started"
	auditEventMFAVerified           = "mfa_verified"
	auditEventMFAFailed             = "mfa_failed"
	auditEventAttemptsExceeded      = "mfa_attempts_exceeded"
	auditEventMFASetupStarted       = "mfa_setup_started"
	auditEventMFASetupCompleted     = "mfa_setup_completed"
	auditEventMFADisabled           = "mfa_disabled"
	auditEventBackupCodeUsed        = "backup_code_used"
	auditEventBackupCodeRegenerated = "backup_code_regenerated"
)
