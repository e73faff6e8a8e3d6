package goLogin

import (
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goLogin/internal"
)

func TestDisableMFARevokesSessions(t *testing.T) {
	fx, done := newTestEngine(t, testConfig(), Settings{})
	defer done()

	fx.users.add(activeUser("u1", "alice@example.com"))
	secret := seedTOTP(t, fx, "u1")

	code := codeFor(t, secret, fx.engine.config.TOTP, time.Now())
	if err := fx.engine.DisableMFA(testCtx(), "u1", "correct-password-123", code); err != nil {
		t.Fatalf("DisableMFA failed: %v", err)
	}

	user, _ := fx.users.GetUserByID(testCtx(), "u1")
	if user.TOTPEnabled {
		t.Fatal("expected TOTP disabled")
	}
	if len(fx.sessions.revoked) != 1 || fx.sessions.revoked[0] != "u1" {
		t.Fatalf("expected all sessions revoked for u1, got %v", fx.sessions.revoked)
	}
}

func TestDisableMFARequiresPasswordAndCode(t *testing.T) {
	fx, done := newTestEngine(t, testConfig(), Settings{})
	defer done()

	fx.users.add(activeUser("u1", "alice@example.com"))
	secret := seedTOTP(t, fx, "u1")

	code := codeFor(t, secret, fx.engine.config.TOTP, time.Now())
	if err := fx.engine.DisableMFA(testCtx(), "u1", "wrong-password", code); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := fx.engine.DisableMFA(testCtx(), "u1", "correct-password-123", "000000"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}

	user, _ := fx.users.GetUserByID(testCtx(), "u1")
	if !user.TOTPEnabled {
		t.Fatal("expected TOTP to stay enabled after failed disable attempts")
	}
}

func TestDisableMFANotEnabled(t *testing.T) {
	fx, done := newTestEngine(t, testConfig(), Settings{})
	defer done()

	fx.users.add(activeUser("u1", "alice@example.com"))

	if err := fx.engine.DisableMFA(testCtx(), "u1", "correct-password-123", "000000"); !errors.Is(err, ErrMFANotEnabled) {
		t.Fatalf("expected ErrMFANotEnabled, got %v", err)
	}
}

func TestRegenerateBackupCodeInvalidatesOldCode(t *testing.T) {
	fx, done := newTestEngine(t, testConfig(), Settings{})
	defer done()

	fx.users.add(activeUser("u1", "alice@example.com"))
	seedTOTP(t, fx, "u1")

	first, err := fx.engine.RegenerateBackupCode(testCtx(), "u1")
	if err != nil {
		t.Fatalf("RegenerateBackupCode failed: %v", err)
	}
	second, err := fx.engine.RegenerateBackupCode(testCtx(), "u1")
	if err != nil {
		t.Fatalf("second RegenerateBackupCode failed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct backup codes")
	}

	if consumed, _ := fx.users.ConsumeBackupCode(testCtx(), "u1", internal.HashBackupCode(first)); consumed {
		t.Fatal("expected old backup code to be dead after regeneration")
	}
	if consumed, _ := fx.users.ConsumeBackupCode(testCtx(), "u1", internal.HashBackupCode(second)); !consumed {
		t.Fatal("expected new backup code to be consumable")
	}
}

func TestRegenerateBackupCodeRequiresMFA(t *testing.T) {
	fx, done := newTestEngine(t, testConfig(), Settings{})
	defer done()

	fx.users.add(activeUser("u1", "alice@example.com"))

	if _, err := fx.engine.RegenerateBackupCode(testCtx(), "u1"); !errors.Is(err, ErrMFANotEnabled) {
		t.Fatalf("expected ErrMFANotEnabled, got %v", err)
	}
}
