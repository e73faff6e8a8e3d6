package internal

import (
	"strings"
	"testing"
)

func TestHashBindingValueDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	a := HashBindingValue(salt, "10.0.0.1")
	b := HashBindingValue(salt, "10.0.0.1")
	if a != b {
		t.Fatal("expected stable hash for identical input")
	}

	if HashBindingValue(salt, "10.0.0.2") == a {
		t.Fatal("expected distinct hashes for distinct values")
	}
	if HashBindingValue([]byte("another-salt-value"), "10.0.0.1") == a {
		t.Fatal("expected distinct hashes under distinct salts")
	}
}

func TestHashBindingValueEmptyInputNonZero(t *testing.T) {
	var zero [32]byte
	if HashBindingValue([]byte("0123456789abcdef"), "") == zero {
		t.Fatal("expected non-zero digest for empty value")
	}
}

func TestDeviceFingerprintSeparatesComponents(t *testing.T) {
	// The separator must prevent ("ab", "c") from colliding with ("a", "bc").
	if DeviceFingerprint("ab", "c") == DeviceFingerprint("a", "bc") {
		t.Fatal("expected component separation in fingerprint input")
	}
	if len(DeviceFingerprint("agent", "ip")) != 64 {
		t.Fatal("expected hex sha256 fingerprint")
	}
}

func TestNewTxIDUnique(t *testing.T) {
	seen := make(map[string]bool, 128)
	for i := 0; i < 128; i++ {
		id, err := NewTxID()
		if err != nil {
			t.Fatalf("NewTxID failed: %v", err)
		}
		s := id.String()
		if seen[s] {
			t.Fatalf("duplicate tx id %q", s)
		}
		seen[s] = true
	}
}

func TestNewBackupCodeAlphabetAndLength(t *testing.T) {
	code, err := NewBackupCode(8)
	if err != nil {
		t.Fatalf("NewBackupCode failed: %v", err)
	}
	if len(code) != 8 {
		t.Fatalf("expected 8 chars, got %d", len(code))
	}
	for _, r := range code {
		if !strings.ContainsRune(backupCodeAlphabet, r) {
			t.Fatalf("character %q outside backup code alphabet", r)
		}
	}
}

func TestNewBackupCodeRejectsBadLength(t *testing.T) {
	if _, err := NewBackupCode(4); err == nil {
		t.Fatal("expected short length to be rejected")
	}
	if _, err := NewBackupCode(64); err == nil {
		t.Fatal("expected oversized length to be rejected")
	}
}

func TestHashBackupCodeMatchesOnEquality(t *testing.T) {
	if HashBackupCode("AAAA2222") != HashBackupCode("AAAA2222") {
		t.Fatal("expected stable backup code hash")
	}
	if HashBackupCode("AAAA2222") == HashBackupCode("AAAA2223") {
		t.Fatal("expected distinct hashes for distinct codes")
	}
}
