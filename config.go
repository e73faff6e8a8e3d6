package goLogin

import (
	"errors"
	"time"
)

// Config groups the engine's build-time configuration. Runtime feature
// flags live in the [SettingsProvider]; everything here is fixed once the
// engine is built.
type Config struct {
	Transaction TransactionConfig
	Login       LoginConfig
	TOTP        TOTPConfig
	BackupCode  BackupCodeConfig
	Methods     map[ChallengeType][]MethodSetting
	Audit       AuditConfig
	Metrics     MetricsConfig
}

// TransactionConfig controls the auth transaction store.
type TransactionConfig struct {
	// TTL is the fixed transaction lifetime. Updates re-persist with the
	// remaining TTL, never the full one.
	TTL time.Duration
	// MaxChallengeAttempts is the challenge attempt ceiling per transaction.
	MaxChallengeAttempts int
	// RedisPrefix namespaces transaction keys.
	RedisPrefix string
	// BindingSalt keys the one-way ip/user-agent binding hashes. Required.
	BindingSalt []byte
}

// LoginConfig holds password-step defaults. The matching [Settings] fields
// override these per attempt when a SettingsProvider is installed.
type LoginConfig struct {
	CaptchaRequired       bool
	PasswordAttemptLimit  int
	PasswordExpiryEnabled bool
}

// TOTPConfig parameterizes time-based code generation and verification.
type TOTPConfig struct {
	Issuer string
	Period uint
	Digits int
	// Skew is the accepted clock drift in periods on either side.
	Skew uint
	// EnrollTTL bounds how long a started enrollment stays confirmable.
	EnrollTTL time.Duration
}

// BackupCodeConfig controls the single stored backup code.
type BackupCodeConfig struct {
	Length int
	// TTL expires unused codes. Zero means codes never expire.
	TTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Transaction: TransactionConfig{
			TTL:                  300 * time.Second,
			MaxChallengeAttempts: 5,
			RedisPrefix:          "atx",
		},
		Login: LoginConfig{
			PasswordAttemptLimit: 5,
		},
		TOTP: TOTPConfig{
			Issuer:    "goLogin",
			Period:    30,
			Digits:    6,
			Skew:      1,
			EnrollTTL: 5 * time.Minute,
		},
		BackupCode: BackupCodeConfig{
			Length: 8,
		},
		Methods: defaultMethodTable(),
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func defaultMethodTable() map[ChallengeType][]MethodSetting {
	return map[ChallengeType][]MethodSetting{
		ChallengeMFARequired: {
			{Method: MethodTOTP},
			{Method: MethodBackupCode},
			{Method: MethodEmailOTP},
		},
		ChallengeDeviceVerify: {
			{Method: MethodDeviceVerify},
		},
		ChallengeMFAEnroll: {
			{Method: MethodTOTP},
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Methods != nil {
		out.Methods = make(map[ChallengeType][]MethodSetting, len(cfg.Methods))
		for k, v := range cfg.Methods {
			out.Methods[k] = append([]MethodSetting(nil), v...)
		}
	}
	if cfg.Transaction.BindingSalt != nil {
		out.Transaction.BindingSalt = append([]byte(nil), cfg.Transaction.BindingSalt...)
	}
	return out
}

func validateConfig(cfg Config) error {
	if cfg.Transaction.TTL <= 0 {
		return errors.New("goLogin: transaction TTL must be positive")
	}
	if cfg.Transaction.MaxChallengeAttempts <= 0 {
		return errors.New("goLogin: max challenge attempts must be positive")
	}
	if len(cfg.Transaction.BindingSalt) < 16 {
		return errors.New("goLogin: binding salt must be at least 16 bytes")
	}
	if cfg.TOTP.Period == 0 || cfg.TOTP.Digits < 6 || cfg.TOTP.Digits > 8 {
		return errors.New("goLogin: invalid totp parameters")
	}
	if cfg.BackupCode.Length < 8 {
		return errors.New("goLogin: backup code length must be at least 8")
	}
	if cfg.Login.PasswordAttemptLimit < 0 {
		return errors.New("goLogin: password attempt limit must not be negative")
	}
	return nil
}
