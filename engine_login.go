package goLogin

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CaptchaAnswer carries a solved captcha: the server-issued token and the
// user's input.
type CaptchaAnswer struct {
	Token string
	Input string
}

// StartLogin runs the password step of the login state machine. It returns
// either a completed login with a session or an open challenge bound to a
// new auth transaction. Attach the caller's network context with
// [WithClientIP] and [WithUserAgent] before calling.
func (e *Engine) StartLogin(ctx context.Context, email, password string, captcha *CaptchaAnswer) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricStartLoginLatency, time.Since(start))
		}
	}()

	// A flag-store outage fails the attempt; there is no config fallback.
	settings, err := e.settings.LoginSettings(ctx)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err != nil || user.PasswordHash == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailed, SeverityInfo, false, "", "", ErrUserNotFound, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "user_not_found",
			}
		})
		return nil, ErrUserNotFound
	}

	if settings.CaptchaRequired {
		if captcha == nil {
			e.metricInc(MetricCaptchaRejected)
			return nil, ErrCaptchaRequired
		}
		if e.captcha == nil {
			return nil, ErrEngineNotReady
		}
		ok, cerr := e.captcha.Validate(ctx, captcha.Token, captcha.Input)
		if cerr != nil || !ok {
			e.metricInc(MetricCaptchaRejected)
			e.emitAudit(ctx, auditEventLoginFailed, SeverityInfo, false, user.UserID, "", ErrCaptchaInvalid, func() map[string]string {
				return map[string]string{
					"reason": "captcha",
				}
			})
			return nil, ErrCaptchaInvalid
		}
	}

	// The ceiling is checked before the password comparison so a locked
	// account cannot be probed for its real password.
	if settings.PasswordAttemptLimit > 0 && user.PasswordAttempts >= settings.PasswordAttemptLimit {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailed, SeverityWarning, false, user.UserID, "", ErrPasswordMaxAttempts, func() map[string]string {
			return map[string]string{
				"reason": "password_attempts_exceeded",
			}
		})
		return nil, ErrPasswordMaxAttempts
	}

	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		if ierr := e.users.IncrementPasswordAttempts(ctx, user.UserID); ierr != nil {
			return nil, ierr
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailed, SeverityInfo, false, user.UserID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}
	password = ""

	if user.Status != AccountActive {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailed, SeverityInfo, false, user.UserID, "", ErrUserNotActive, func() map[string]string {
			return map[string]string{
				"reason": "account_status",
			}
		})
		return nil, ErrUserNotActive
	}

	if settings.PasswordExpiryEnabled && user.PasswordExpiresAt > 0 && user.PasswordExpiresAt <= e.now().Unix() {
		e.metricInc(MetricPasswordExpired)
		e.emitAudit(ctx, auditEventLoginFailed, SeverityInfo, false, user.UserID, "", ErrPasswordExpired, func() map[string]string {
			return map[string]string{
				"reason": "password_expired",
			}
		})
		return nil, ErrPasswordExpired
	}

	security, err := e.evaluateLoginRisk(ctx, user, settings)
	if err != nil {
		return nil, err
	}
	if security.Action == RiskBlock {
		e.metricInc(MetricLoginBlocked)
		e.emitAudit(ctx, auditEventLoginBlocked, SeverityHigh, false, user.UserID, "", ErrLoginBlocked, func() map[string]string {
			return map[string]string{
				"reason":             security.Reason,
				"device_fingerprint": security.DeviceFingerprint,
			}
		})
		return nil, ErrLoginBlocked
	}

	tx, err := e.txStore.Create(ctx, user.UserID, TxPasswordVerified, bindingFromContext(ctx), security, ChallengeNone)
	if err != nil {
		return nil, err
	}

	next := resolveNextStep(nextStepInput{
		HasTOTP:                   user.TOTPEnabled,
		MFARequired:               settings.MFARequired,
		RiskBased:                 settings.MFARiskBased,
		Risk:                      security.Level,
		IsNewDevice:               security.IsNewDevice,
		DeviceVerificationEnabled: settings.DeviceVerificationEnabled,
	})

	switch next {
	case ChallengeNone:
		return e.finishLogin(ctx, user, tx)
	case ChallengeDeviceVerify:
		return e.openDeviceVerifyChallenge(ctx, user, tx)
	default:
		return e.openMFAChallenge(ctx, user, tx)
	}
}

func (e *Engine) openDeviceVerifyChallenge(ctx context.Context, user UserRecord, tx *AuthTransaction) (*LoginResult, error) {
	token, err := e.codes.Send(ctx, user.UserID, user.Email, PurposeDeviceVerify)
	if err != nil || token == "" {
		return nil, ErrCodeDeliveryFailed
	}

	tx, err = e.txStore.Update(ctx, tx.ID, func(t *AuthTransaction) {
		t.State = TxChallenge
		t.ChallengeType = ChallengeDeviceVerify
		t.DeviceVerifyToken = token
	})
	if err != nil {
		return nil, err
	}

	methods, err := e.availableMethods(ctx, user, tx, ChallengeDeviceVerify)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricDeviceVerifyRequired)
	e.metricInc(MetricChallengeStarted)
	e.emitAudit(ctx, auditEventChallengeStarted, SeverityInfo, true, user.UserID, tx.ID, nil, func() map[string]string {
		return map[string]string{
			"challenge_type": ChallengeDeviceVerify.String(),
		}
	})

	return &LoginResult{
		Status:    LoginChallenge,
		AuthTxID:  tx.ID,
		Challenge: e.buildDeviceVerifyChallenge(user, methods, tx.Security),
	}, nil
}

func (e *Engine) openMFAChallenge(ctx context.Context, user UserRecord, tx *AuthTransaction) (*LoginResult, error) {
	// Users without an authenticator still need a deliverable factor, so a
	// fallback email code is issued alongside the challenge.
	var emailToken string
	if !user.TOTPEnabled {
		token, err := e.codes.Send(ctx, user.UserID, user.Email, PurposeLoginOTP)
		if err != nil || token == "" {
			return nil, ErrCodeDeliveryFailed
		}
		emailToken = token
	}

	tx, err := e.txStore.Update(ctx, tx.ID, func(t *AuthTransaction) {
		t.State = TxChallenge
		t.ChallengeType = ChallengeMFARequired
		if emailToken != "" {
			t.EmailOTPToken = emailToken
		}
	})
	if err != nil {
		return nil, err
	}

	methods, err := e.availableMethods(ctx, user, tx, ChallengeMFARequired)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricChallengeStarted)
	e.emitAudit(ctx, auditEventChallengeStarted, SeverityInfo, true, user.UserID, tx.ID, nil, func() map[string]string {
		return map[string]string{
			"challenge_type": ChallengeMFARequired.String(),
		}
	})

	return &LoginResult{
		Status:    LoginChallenge,
		AuthTxID:  tx.ID,
		Challenge: e.buildMFARequiredChallenge(ctx, user, methods),
	}, nil
}

// finishLogin consumes the transaction and issues the session using the
// stored risk snapshot. The Redis delete count is the consumption marker:
// of two concurrent completions, exactly one observes deleted=true.
func (e *Engine) finishLogin(ctx context.Context, user UserRecord, tx *AuthTransaction) (*LoginResult, error) {
	deleted, err := e.txStore.Delete(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		e.metricInc(MetricTransactionExpired)
		return nil, ErrTransactionExpired
	}

	session, err := e.sessions.CompleteLogin(ctx, user, clientIPFromContext(ctx), userAgentFromContext(ctx), tx.Security)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailed, SeverityInfo, false, user.UserID, tx.ID, err, func() map[string]string {
			return map[string]string{
				"reason": "session_issuance",
			}
		})
		return nil, err
	}

	_ = e.users.ResetPasswordAttempts(ctx, user.UserID)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, SeverityInfo, true, user.UserID, tx.ID, nil, func() map[string]string {
		return map[string]string{
			"is_new_device": boolString(tx.Security.IsNewDevice),
		}
	})

	return &LoginResult{
		Status:  LoginCompleted,
		Session: session,
	}, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
