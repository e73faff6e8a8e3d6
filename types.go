package goLogin

import (
	"context"
)

// AccountStatus represents the lifecycle state of a user account.
type AccountStatus uint8

const (
	// AccountActive is the only status that may log in.
	AccountActive AccountStatus = iota
	// AccountPendingVerification marks accounts that have not confirmed
	// their email address yet.
	AccountPendingVerification
	// AccountDisabled marks administratively disabled accounts.
	AccountDisabled
	// AccountLocked marks accounts locked by security tooling.
	AccountLocked
)

// TxState is the state of an auth transaction inside the login state
// machine. Completion has no stored state: a completed transaction is
// deleted.
type TxState uint8

const (
	// TxPasswordVerified means the password check succeeded and no challenge
	// has been chosen yet.
	TxPasswordVerified TxState = iota
	// TxChallenge means a challenge is open and awaiting completion.
	TxChallenge
)

// ChallengeType identifies which kind of challenge a transaction carries.
type ChallengeType uint8

const (
	// ChallengeNone means no challenge has been chosen.
	ChallengeNone ChallengeType = iota
	// ChallengeMFARequired asks for a second factor from an enrolled user.
	ChallengeMFARequired
	// ChallengeDeviceVerify asks the user to confirm a new device via a
	// one-time code sent to their email.
	ChallengeDeviceVerify
	// ChallengeMFAEnroll is the enrollment sub-flow for users that must set
	// up a code-based method before completing login.
	ChallengeMFAEnroll
)

func (t ChallengeType) String() string {
	switch t {
	case ChallengeMFARequired:
		return "mfa_required"
	case ChallengeDeviceVerify:
		return "device_verify"
	case ChallengeMFAEnroll:
		return "mfa_enroll"
	default:
		return "none"
	}
}

// RiskLevel grades the risk evaluator's decision for the risk-based MFA
// setting.
type RiskLevel uint8

const (
	// RiskLow is the grade for recognized devices.
	RiskLow RiskLevel = iota
	// RiskMedium is the grade for unknown devices.
	RiskMedium
	// RiskHigh is reserved for embedder-supplied evaluators.
	RiskHigh
)

// RiskAction is the risk evaluator's verdict.
type RiskAction uint8

const (
	// RiskAllow lets the login proceed.
	RiskAllow RiskAction = iota
	// RiskBlock fails the login with [ErrLoginBlocked].
	RiskBlock
)

// SecurityCheckResult is the risk evaluator's output. It is captured once at
// transaction creation and replayed verbatim at completion, never
// recomputed.
type SecurityCheckResult struct {
	Action            RiskAction
	Reason            string
	DeviceFingerprint string
	IsNewDevice       bool
	Level             RiskLevel
}

// EnrollData is attached to a transaction while the enrollment sub-flow is
// open. TempSecret is the base32 TOTP secret awaiting confirmation.
type EnrollData struct {
	EnrollToken string
	TempSecret  string
	StartedAt   int64
}

// AuthTransaction is the short-lived, cache-resident record tracking one
// login attempt from password verification through challenge completion.
// Binding hashes are salted one-way hashes of the ip/user-agent captured at
// creation and are never cleared by an update.
type AuthTransaction struct {
	ID                string
	UserID            string
	State             TxState
	CreatedAt         int64
	ExpiresAt         int64
	ChallengeAttempts uint16
	IPHash            [32]byte
	UAHash            [32]byte
	ChallengeType     ChallengeType
	Security          SecurityCheckResult
	EmailOTPToken     string
	DeviceVerifyToken string
	Enroll            *EnrollData
}

// ChallengeMethod identifies one verification strategy.
type ChallengeMethod string

const (
	// MethodTOTP verifies a time-based code from an authenticator app.
	MethodTOTP ChallengeMethod = "totp"
	// MethodBackupCode verifies the single-use backup code.
	MethodBackupCode ChallengeMethod = "backup_code"
	// MethodEmailOTP verifies a one-time code sent to the account email.
	MethodEmailOTP ChallengeMethod = "email_otp"
	// MethodDeviceVerify verifies a new-device confirmation code.
	MethodDeviceVerify ChallengeMethod = "device_verify"
)

// ChallengeMethodOption describes one verification strategy currently
// offered to the caller.
type ChallengeMethodOption struct {
	Method        ChallengeMethod `json:"method"`
	Label         string          `json:"label"`
	Description   string          `json:"description,omitempty"`
	RequiresSetup bool            `json:"requires_setup"`
}

// MethodSetting is one entry of the per-challenge-type method
// configuration. Label and Description override the handler defaults when
// non-empty.
type MethodSetting struct {
	Method      ChallengeMethod
	Label       string
	Description string
}

// LoginStatus discriminates the result of StartLogin / CompleteChallenge.
type LoginStatus string

const (
	// LoginCompleted means a session was issued.
	LoginCompleted LoginStatus = "completed"
	// LoginChallenge means an additional verification step is required.
	LoginChallenge LoginStatus = "challenge"
)

// Challenge describes an open challenge to the caller.
type Challenge struct {
	Type             ChallengeType           `json:"type"`
	AvailableMethods []ChallengeMethodOption `json:"available_methods"`

	// HasBackupCode is set for mfa_required challenges.
	HasBackupCode bool `json:"has_backup_code,omitempty"`

	// MaskedDestination, IsNewDevice and DeviceFingerprint are set for
	// device_verify challenges.
	MaskedDestination string `json:"masked_destination,omitempty"`
	IsNewDevice       bool   `json:"is_new_device,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
}

// LoginResult is the discriminated result of StartLogin, CompleteChallenge
// and EnrollConfirm.
type LoginResult struct {
	Status    LoginStatus
	Session   *Session
	AuthTxID  string
	Challenge *Challenge
}

// Session is the opaque session handle produced by the [SessionService]
// collaborator.
type Session struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// EnrollSetup is returned by EnrollStart. SecretBase32 and the otpauth://
// provisioning URI are shown to the user exactly once.
type EnrollSetup struct {
	EnrollToken     string
	SecretBase32    string
	ProvisioningURI string
}

// EnrollResult is returned by EnrollConfirm. BackupCode is the plaintext
// backup code; it is never retrievable again.
type EnrollResult struct {
	Result     *LoginResult
	BackupCode string
}

// UserRecord is the account snapshot the engine needs from the
// [UserProvider]. PasswordExpiresAt is a unix timestamp, zero meaning the
// password never expires.
type UserRecord struct {
	UserID            string
	Email             string
	PasswordHash      string
	Status            AccountStatus
	TOTPEnabled       bool
	PasswordAttempts  int
	PasswordExpiresAt int64
}

// TOTPRecord carries the stored base32 secret for an enrolled user.
type TOTPRecord struct {
	Secret  string
	Enabled bool
}

// BackupCodeRecord stores the SHA-256 hash of the single backup code kept
// per user. The plaintext is never persisted.
type BackupCodeRecord struct {
	Hash      [32]byte
	CreatedAt int64
	ExpiresAt int64
	Used      bool
}

// UserProvider is the interface callers implement to integrate the engine
// with their user database. GetUserByEmail and GetUserByID signal a missing
// account with an error wrapping [ErrUserNotFound]; the engine treats every
// other error as a backend failure and wraps it in [ErrStoreUnavailable].
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	IncrementPasswordAttempts(ctx context.Context, userID string) error
	ResetPasswordAttempts(ctx context.Context, userID string) error

	GetTOTPSecret(ctx context.Context, userID string) (*TOTPRecord, error)
	EnableTOTP(ctx context.Context, userID, secretBase32 string) error
	DisableTOTP(ctx context.Context, userID string) error

	GetBackupCode(ctx context.Context, userID string) (*BackupCodeRecord, error)
	ReplaceBackupCode(ctx context.Context, userID string, record BackupCodeRecord) error
	ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error)
}

// SessionService issues sessions on successful login and answers device
// fingerprint lookups for the risk evaluator. Token issuance and session
// persistence are implemented elsewhere; [sessionredis.Service] is a
// reference implementation.
type SessionService interface {
	CompleteLogin(ctx context.Context, user UserRecord, ip, userAgent string, security SecurityCheckResult) (*Session, error)
	HasActiveFingerprint(ctx context.Context, userID, fingerprint string) (bool, error)
	RevokeAll(ctx context.Context, userID string) error
}

// Settings are the runtime feature flags consulted per login attempt.
type Settings struct {
	CaptchaRequired bool

	PasswordAttemptLimit  int // 0 disables attempt limiting
	PasswordExpiryEnabled bool

	MFARequired  bool
	MFARiskBased bool

	DeviceVerificationEnabled bool
	DeviceRecognitionEnabled  bool
	AuditUnknownDevice        bool
	BlockUnknownDevice        bool
}

// SettingsProvider supplies feature flags and the per-challenge-type method
// configuration. Use [StaticSettings] when flags do not change at runtime.
type SettingsProvider interface {
	LoginSettings(ctx context.Context) (Settings, error)
	ChallengeMethods(ctx context.Context, challengeType ChallengeType) ([]MethodSetting, error)
}

// StaticSettings adapts a fixed [Settings] value and the builder config's
// method table into a [SettingsProvider].
type StaticSettings struct {
	Settings Settings
	Methods  map[ChallengeType][]MethodSetting
}

// LoginSettings returns the fixed settings value.
func (s StaticSettings) LoginSettings(context.Context) (Settings, error) {
	return s.Settings, nil
}

// ChallengeMethods returns the configured method list for the challenge type.
func (s StaticSettings) ChallengeMethods(_ context.Context, challengeType ChallengeType) ([]MethodSetting, error) {
	return s.Methods[challengeType], nil
}

// CaptchaValidator checks a captcha token against the user's input.
type CaptchaValidator interface {
	Validate(ctx context.Context, token, userInput string) (bool, error)
}

// CodePurpose scopes one-time codes so a code issued for one flow cannot
// verify another.
type CodePurpose string

const (
	// PurposeLoginOTP scopes the fallback email code for mfa_required
	// challenges.
	PurposeLoginOTP CodePurpose = "login_otp"
	// PurposeDeviceVerify scopes new-device confirmation codes.
	PurposeDeviceVerify CodePurpose = "device_verify"
)

// OneTimeCodeService delivers and verifies purpose-scoped one-time codes.
// Send returns an opaque token bound to the pending code. Verify returns
// the user id the token was issued for, or the empty string when the code
// does not match.
type OneTimeCodeService interface {
	Send(ctx context.Context, userID, destination string, purpose CodePurpose) (string, error)
	Verify(ctx context.Context, token string, purpose CodePurpose, code string) (string, error)
}

// PasswordVerifier compares a plaintext password to a stored hash.
// [password.Argon2] satisfies it.
type PasswordVerifier interface {
	Verify(password, hash string) (bool, error)
}
