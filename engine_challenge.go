package goLogin

import (
	"context"
)

// CompleteChallenge verifies a challenge response against an open auth
// transaction. On success the transaction is consumed and the login
// completes with the risk snapshot captured at creation time. Failed
// attempts bump the transaction counter; once the ceiling is reached every
// further call fails with [ErrTooManyAttempts] regardless of the code.
func (e *Engine) CompleteChallenge(ctx context.Context, authTxID string, method ChallengeMethod, code string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.codes == nil && (method == MethodEmailOTP || method == MethodDeviceVerify) {
		return nil, ErrEngineNotReady
	}

	tx, err := e.txStore.GetOrFail(ctx, authTxID)
	if err != nil {
		if err == ErrTransactionExpired {
			e.metricInc(MetricTransactionExpired)
		}
		return nil, err
	}

	if err := e.txStore.AssertBinding(tx, bindingFromContext(ctx)); err != nil {
		e.metricInc(MetricBindingMismatch)
		e.emitAudit(ctx, auditEventMFAFailed, SeverityWarning, false, tx.UserID, tx.ID, err, func() map[string]string {
			return map[string]string{
				"reason": "binding_mismatch",
			}
		})
		return nil, err
	}

	if tx.ChallengeType == ChallengeMFAEnroll {
		// An open enrollment completes through EnrollConfirm only.
		return nil, ErrActionNotAllowed
	}
	if tx.State != TxChallenge || tx.ChallengeType == ChallengeNone {
		return nil, ErrInvalidState
	}

	if err := e.txStore.AssertAttemptsAllowed(tx); err != nil {
		e.metricInc(MetricChallengeAttemptsExceeded)
		e.emitAudit(ctx, auditEventAttemptsExceeded, SeverityWarning, false, tx.UserID, tx.ID, err, nil)
		return nil, err
	}

	// The user record is loaded fresh so account changes made while the
	// challenge was open (deactivation, MFA removal) take effect.
	user, err := e.loadUser(ctx, tx.UserID)
	if err != nil {
		return nil, err
	}
	if user.Status != AccountActive {
		return nil, ErrUserNotActive
	}

	handler, err := e.challengeHandler(ctx, user, tx, method)
	if err != nil {
		return nil, err
	}

	if verr := handler.verify(ctx, user, tx, code); verr != nil {
		if _, ierr := e.txStore.IncrementAttempts(ctx, tx.ID); ierr != nil {
			return nil, ierr
		}
		e.metricInc(MetricChallengeFailure)
		e.emitAudit(ctx, auditEventMFAFailed, SeverityInfo, false, tx.UserID, tx.ID, verr, func() map[string]string {
			return map[string]string{
				"method": string(method),
			}
		})
		return nil, verr
	}

	if method == MethodBackupCode {
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, SeverityWarning, true, tx.UserID, tx.ID, nil, nil)
	}

	result, err := e.finishLogin(ctx, user, tx)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricChallengeSuccess)
	e.emitAudit(ctx, auditEventMFAVerified, SeverityInfo, true, tx.UserID, tx.ID, nil, func() map[string]string {
		return map[string]string{
			"method": string(method),
		}
	})
	return result, nil
}

// GetChallengeMethods re-reads the challenge payload for an open
// transaction without consuming an attempt. Clients use it to rebuild the
// method picker after a page reload.
func (e *Engine) GetChallengeMethods(ctx context.Context, authTxID string) (*Challenge, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	tx, err := e.txStore.GetOrFail(ctx, authTxID)
	if err != nil {
		return nil, err
	}
	if err := e.txStore.AssertBinding(tx, bindingFromContext(ctx)); err != nil {
		e.metricInc(MetricBindingMismatch)
		return nil, err
	}
	if tx.State != TxChallenge || tx.ChallengeType == ChallengeNone {
		return nil, ErrInvalidState
	}

	user, err := e.loadUser(ctx, tx.UserID)
	if err != nil {
		return nil, err
	}

	methods, err := e.availableMethods(ctx, user, tx, tx.ChallengeType)
	if err != nil {
		return nil, err
	}

	switch tx.ChallengeType {
	case ChallengeDeviceVerify:
		return e.buildDeviceVerifyChallenge(user, methods, tx.Security), nil
	case ChallengeMFAEnroll:
		return &Challenge{Type: ChallengeMFAEnroll, AvailableMethods: methods}, nil
	default:
		return e.buildMFARequiredChallenge(ctx, user, methods), nil
	}
}

// challengeHandler resolves the handler for a requested method, rejecting
// methods that are not configured for the transaction's challenge type or
// not currently available to the user.
func (e *Engine) challengeHandler(ctx context.Context, user UserRecord, tx *AuthTransaction, method ChallengeMethod) (methodHandler, error) {
	handler, ok := e.registry.handler(method)
	if !ok {
		return methodHandler{}, ErrMethodUnavailable
	}

	configured, err := e.settings.ChallengeMethods(ctx, tx.ChallengeType)
	if err != nil {
		return methodHandler{}, err
	}
	if configured == nil {
		configured = e.config.Methods[tx.ChallengeType]
	}

	allowed := false
	for _, setting := range configured {
		if setting.Method == method {
			allowed = true
			break
		}
	}
	if !allowed || !handler.capability.available(ctx, user, tx) {
		return methodHandler{}, ErrMethodUnavailable
	}
	return handler, nil
}
