package goLogin

import (
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goLogin/internal"
)

func openEnrollChallenge(t *testing.T, fx *testFixture) *LoginResult {
	t.Helper()

	fx.users.add(activeUser("u1", "alice@example.com"))

	result, err := fx.engine.StartLogin(testCtx(), "alice@example.com", "correct-password-123", nil)
	if err != nil {
		t.Fatalf("StartLogin failed: %v", err)
	}
	if result.Status != LoginChallenge || result.Challenge.Type != ChallengeMFARequired {
		t.Fatalf("expected mfa_required challenge, got %+v", result)
	}
	return result
}

func TestEnrollConfirmCompletesLoginAndIssuesBackupCode(t *testing.T) {
	fx, done := newTestEngine(t, testConfig(), Settings{MFARequired: true})
	defer done()

	result := openEnrollChallenge(t, fx)

	setup, err := fx.engine.EnrollStart(testCtx(), result.AuthTxID)
	if err != nil {
		t.Fatalf("EnrollStart failed: %v", err)
	}
	if setup.EnrollToken == "" || setup.SecretBase32 == "" || setup.ProvisioningURI == "" {
		t.Fatalf("incomplete enroll setup %+v", setup)
	}

	code := codeFor(t, setup.SecretBase32, fx.engine.config.TOTP, time.Now())
	enrolled, err := fx.engine.EnrollConfirm(testCtx(), result.AuthTxID, setup.EnrollToken, code)
	if err != nil {
		t.Fatalf("EnrollConfirm failed: %v", err)
	}
	if enrolled.Result == nil || enrolled.Result.Status != LoginCompleted {
		t.Fatalf("expected completed login, got %+v", enrolled.Result)
	}
	if len(enrolled.BackupCode) != fx.engine.config.BackupCode.Length {
		t.Fatalf("expected %d-char backup code, got %q", fx.engine.config.BackupCode.Length, enrolled.BackupCode)
	}

	user, _ := fx.users.GetUserByID(testCtx(), "u1")
	if !user.TOTPEnabled {
		t.Fatal("expected TOTP enabled after enrollment")
	}

	consumed, _ := fx.users.ConsumeBackupCode(testCtx(), "u1", internal.HashBackupCode(enrolled.BackupCode))
	if !consumed {
		t.Fatal("expected issued backup code to be consumable")
	}
}

func TestEnrollConfirmRejectsWrongToken(t *testing.T) {
	fx, done := newTestEngine(t, testConfig(), Settings{MFARequired: true})
	defer done()

	result := openEnrollChallenge(t, fx)

	setup, err := fx.engine.EnrollStart(testCtx(), result.AuthTxID)
	if err != nil {
		t.Fatalf("EnrollStart failed: %v", err)
	}

	code := codeFor(t, setup.SecretBase32, fx.engine.config.TOTP, time.Now())
	if _, err := fx.engine.EnrollConfirm(testCtx(), result.AuthTxID, "not-the-token", code); !errors.Is(err, ErrEnrollTokenInvalid) {
		t.Fatalf("expected ErrEnrollTokenInvalid, got %v", err)
	}
}

func TestEnrollConfirmWrongCodeThenSuccess(t *testing.T) {
	fx, done := newTestEngine(t, testConfig(), Settings{MFARequired: true})
	defer done()

	result := openEnrollChallenge(t, fx)

	setup, err := fx.engine.EnrollStart(testCtx(), result.AuthTxID)
	if err != nil {
		t.Fatalf("EnrollStart failed: %v", err)
	}

	if _, err := fx.engine.EnrollConfirm(testCtx(), result.AuthTxID, setup.EnrollToken, "000000"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}

	code := codeFor(t, setup.SecretBase32, fx.engine.config.TOTP, time.Now())
	if _, err := fx.engine.EnrollConfirm(testCtx(), result.AuthTxID, setup.EnrollToken, code); err != nil {
		t.Fatalf("EnrollConfirm after one failure failed: %v", err)
	}
}

func TestCompleteChallengeRejectedDuringEnrollment(t *testing.T) {
	fx, done := newTestEngine(t, testConfig(), Settings{MFARequired: true})
	defer done()

	result := openEnrollChallenge(t, fx)

	if _, err := fx.engine.EnrollStart(testCtx(), result.AuthTxID); err != nil {
		t.Fatalf("EnrollStart failed: %v", err)
	}

	if _, err := fx.engine.CompleteChallenge(testCtx(), result.AuthTxID, MethodEmailOTP, "654321"); !errors.Is(err, ErrActionNotAllowed) {
		t.Fatalf("expected ErrActionNotAllowed during enrollment, got %v", err)
	}
}

func TestEnrollStartRejectsEnrolledUser(t *testing.T) {
	fx, done := newTestEngine(t, testConfig(), Settings{})
	defer done()

	result, _ := openMFAChallengeForTOTPUser(t, fx)

	if _, err := fx.engine.EnrollStart(testCtx(), result.AuthTxID); !errors.Is(err, ErrMFAAlreadySetUp) {
		t.Fatalf("expected ErrMFAAlreadySetUp, got %v", err)
	}
}

func TestEnrollStartRejectsDeviceVerifyChallenge(t *testing.T) {
	settings := Settings{
		DeviceRecognitionEnabled:  true,
		DeviceVerificationEnabled: true,
	}
	fx, done := newTestEngine(t, testConfig(), settings)
	defer done()

	fx.users.add(activeUser("u1", "alice@example.com"))

	result, err := fx.engine.StartLogin(testCtx(), "alice@example.com", "correct-password-123", nil)
	if err != nil {
		t.Fatalf("StartLogin failed: %v", err)
	}
	if result.Challenge.Type != ChallengeDeviceVerify {
		t.Fatalf("expected device_verify challenge, got %q", result.Challenge.Type)
	}

	if _, err := fx.engine.EnrollStart(testCtx(), result.AuthTxID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestEnrollConfirmExpiredEnrollment(t *testing.T) {
	cfg := testConfig()
	cfg.TOTP.EnrollTTL = time.Minute
	fx, done := newTestEngine(t, cfg, Settings{MFARequired: true})
	defer done()

	result := openEnrollChallenge(t, fx)

	setup, err := fx.engine.EnrollStart(testCtx(), result.AuthTxID)
	if err != nil {
		t.Fatalf("EnrollStart failed: %v", err)
	}

	fx.engine.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	code := codeFor(t, setup.SecretBase32, fx.engine.config.TOTP, time.Now())
	if _, err := fx.engine.EnrollConfirm(testCtx(), result.AuthTxID, setup.EnrollToken, code); !errors.Is(err, ErrEnrollTokenInvalid) {
		t.Fatalf("expected ErrEnrollTokenInvalid for stale enrollment, got %v", err)
	}
}
