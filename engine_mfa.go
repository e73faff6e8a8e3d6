package goLogin

import (
	"context"
)

// DisableMFA turns off TOTP for an authenticated user. The caller must
// re-prove the password and a current authenticator code; on success the
// secret and backup code stop working and every active session is revoked.
func (e *Engine) DisableMFA(ctx context.Context, userID, password, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Status != AccountActive {
		return ErrUserNotActive
	}
	if !user.TOTPEnabled {
		return ErrMFANotEnabled
	}

	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	if err := e.verifyTOTPMethod(ctx, user, nil, code); err != nil {
		return err
	}

	if err := e.users.DisableTOTP(ctx, userID); err != nil {
		return err
	}
	if err := e.sessions.RevokeAll(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricMFADisabled)
	e.emitAudit(ctx, auditEventMFADisabled, SeverityHigh, true, userID, "", nil, nil)
	return nil
}

// RegenerateBackupCode replaces the stored backup code for an enrolled user
// and returns the new plaintext. The previous code stops working
// immediately.
func (e *Engine) RegenerateBackupCode(ctx context.Context, userID string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Status != AccountActive {
		return "", ErrUserNotActive
	}
	if !user.TOTPEnabled {
		return "", ErrMFANotEnabled
	}

	code, err := e.issueBackupCode(ctx, userID)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodeRegenerated, SeverityWarning, true, userID, "", nil, nil)
	return code, nil
}
