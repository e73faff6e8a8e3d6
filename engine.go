package goLogin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Engine is the multi-step login orchestrator. Build one through [Builder];
// a built engine is immutable and safe for concurrent use.
type Engine struct {
	config   Config
	txStore  *authTxStore
	registry *methodRegistry
	totp     *totpManager
	audit    *auditDispatcher
	metrics  *Metrics

	users    UserProvider
	sessions SessionService
	settings SettingsProvider
	captcha  CaptchaValidator
	codes    OneTimeCodeService
	hasher   PasswordVerifier

	now func() time.Time
}

// Close drains the audit dispatcher. Call it when the embedding process
// shuts down.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil &&
		e.txStore != nil &&
		e.registry != nil &&
		e.users != nil &&
		e.sessions != nil &&
		e.settings != nil &&
		e.hasher != nil
}

// emitAudit sends a fire-and-forget security event. meta is lazy so callers
// pay for map construction only when auditing is enabled.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	severity AuditSeverity,
	success bool,
	userID, authTxID string,
	cause error,
	meta func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Severity:  severity,
		UserID:    userID,
		AuthTxID:  authTxID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if meta != nil {
		event.Metadata = meta()
	}

	e.audit.Emit(ctx, event)
}

// loadUser fetches a user record by id, keeping the provider's not-found
// signal distinct from backend failures. Only a missing account maps to
// [ErrUserNotFound]; everything else surfaces as a store outage.
func (e *Engine) loadUser(ctx context.Context, userID string) (UserRecord, error) {
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
