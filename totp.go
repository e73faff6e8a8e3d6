package goLogin

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpManager wraps time-based code generation and verification with the
// engine's fixed parameters.
type totpManager struct {
	config TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "goLogin"
	}
	return &totpManager{config: cfg}
}

// GenerateSecret creates a fresh base32 secret and its otpauth://
// provisioning URI for the given account label.
func (m *totpManager) GenerateSecret(account string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      m.config.Period,
		Digits:      otp.Digits(m.config.Digits),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyCode checks a presented code against the secret with the configured
// drift tolerance.
func (m *totpManager) VerifyCode(secretBase32, code string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secretBase32, now, totp.ValidateOpts{
		Period:    m.config.Period,
		Skew:      m.config.Skew,
		Digits:    otp.Digits(m.config.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
