package goLogin

import (
	"context"
	"crypto/subtle"

	"github.com/google/uuid"

	"github.com/MrEthical07/goLogin/internal"
)

// EnrollStart begins TOTP enrollment inside an open mfa_required challenge
// for a user without an authenticator. The generated secret stays pending
// on the transaction until [Engine.EnrollConfirm] proves the user captured
// it; nothing is written to the user record yet.
func (e *Engine) EnrollStart(ctx context.Context, authTxID string) (*EnrollSetup, error) {
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
	if tx.State != TxChallenge || tx.ChallengeType != ChallengeMFARequired {
		return nil, ErrInvalidState
	}

	user, err := e.loadUser(ctx, tx.UserID)
	if err != nil {
		return nil, err
	}
	if user.Status != AccountActive {
		return nil, ErrUserNotActive
	}
	if user.TOTPEnabled {
		return nil, ErrMFAAlreadySetUp
	}

	secret, uri, err := e.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}

	enroll := EnrollData{
		EnrollToken: uuid.NewString(),
		TempSecret:  secret,
		StartedAt:   e.now().Unix(),
	}
	if _, err := e.txStore.AttachEnroll(ctx, tx.ID, enroll); err != nil {
		return nil, err
	}

	e.metricInc(MetricEnrollStarted)
	e.emitAudit(ctx, auditEventMFASetupStarted, SeverityInfo, true, user.UserID, tx.ID, nil, nil)

	return &EnrollSetup{
		EnrollToken:     enroll.EnrollToken,
		SecretBase32:    secret,
		ProvisioningURI: uri,
	}, nil
}

// EnrollConfirm proves possession of the pending secret, enables TOTP on
// the account, issues the single backup code and completes the login in
// one step. The plaintext backup code is returned exactly once.
func (e *Engine) EnrollConfirm(ctx context.Context, authTxID, enrollToken, code string) (*EnrollResult, error) {
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
	if tx.State != TxChallenge || tx.ChallengeType != ChallengeMFAEnroll || tx.Enroll == nil {
		return nil, ErrInvalidState
	}

	if ttl := e.config.TOTP.EnrollTTL; ttl > 0 && tx.Enroll.StartedAt+int64(ttl.Seconds()) <= e.now().Unix() {
		return nil, ErrEnrollTokenInvalid
	}
	if subtle.ConstantTimeCompare([]byte(enrollToken), []byte(tx.Enroll.EnrollToken)) != 1 {
		return nil, ErrEnrollTokenInvalid
	}

	if err := e.txStore.AssertAttemptsAllowed(tx); err != nil {
		e.metricInc(MetricChallengeAttemptsExceeded)
		e.emitAudit(ctx, auditEventAttemptsExceeded, SeverityWarning, false, tx.UserID, tx.ID, err, nil)
		return nil, err
	}

	user, err := e.loadUser(ctx, tx.UserID)
	if err != nil {
		return nil, err
	}
	if user.Status != AccountActive {
		return nil, ErrUserNotActive
	}
	if user.TOTPEnabled {
		return nil, ErrMFAAlreadySetUp
	}

	if !e.totp.VerifyCode(tx.Enroll.TempSecret, code, e.now()) {
		if _, ierr := e.txStore.IncrementAttempts(ctx, tx.ID); ierr != nil {
			return nil, ierr
		}
		e.metricInc(MetricChallengeFailure)
		e.emitAudit(ctx, auditEventMFAFailed, SeverityInfo, false, tx.UserID, tx.ID, ErrCodeInvalid, func() map[string]string {
			return map[string]string{
				"method": "enroll_confirm",
			}
		})
		return nil, ErrCodeInvalid
	}

	if err := e.users.EnableTOTP(ctx, user.UserID, tx.Enroll.TempSecret); err != nil {
		return nil, err
	}

	backupCode, err := e.issueBackupCode(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	user.TOTPEnabled = true
	result, err := e.finishLogin(ctx, user, tx)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricEnrollCompleted)
	e.emitAudit(ctx, auditEventMFASetupCompleted, SeverityInfo, true, user.UserID, tx.ID, nil, nil)

	return &EnrollResult{
		Result:     result,
		BackupCode: backupCode,
	}, nil
}

// issueBackupCode mints a fresh backup code, stores only its hash and
// returns the plaintext. Any previous code is overwritten.
func (e *Engine) issueBackupCode(ctx context.Context, userID string) (string, error) {
	code, err := internal.NewBackupCode(e.config.BackupCode.Length)
	if err != nil {
		return "", err
	}

	now := e.now()
	record := BackupCodeRecord{
		Hash:      internal.HashBackupCode(code),
		CreatedAt: now.Unix(),
	}
	if ttl := e.config.BackupCode.TTL; ttl > 0 {
		record.ExpiresAt = now.Add(ttl).Unix()
	}

	if err := e.users.ReplaceBackupCode(ctx, userID, record); err != nil {
		return "", err
	}
	return code, nil
}
