package goLogin

import "errors"

var (
	// ErrEngineNotReady is returned when the engine is missing a required
	// collaborator or was not built through [Builder.Build].
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrUserNotFound is returned when no account exists for the supplied
	// email, or the account has no password set.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned on password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotActive is returned when the account status is not active.
	ErrUserNotActive = errors.New("user not active")
	// ErrPasswordExpired is returned when password expiry checking is enabled
	// and the stored expiry timestamp is in the past.
	ErrPasswordExpired = errors.New("password expired")
	// ErrPasswordMaxAttempts is returned when the account's recorded failed
	// password attempts reached the configured ceiling.
	ErrPasswordMaxAttempts = errors.New("password attempts exceeded")

	// ErrCaptchaRequired is returned when captcha is required and none was supplied.
	ErrCaptchaRequired = errors.New("captcha required")
	// ErrCaptchaInvalid is returned when captcha validation fails.
	ErrCaptchaInvalid = errors.New("captcha invalid")

	// ErrLoginBlocked is returned when the risk evaluator blocks the attempt.
	ErrLoginBlocked = errors.New("login blocked")

	// ErrTransactionExpired is returned when an auth transaction id is
	// unknown, expired, or already consumed.
	ErrTransactionExpired = errors.New("auth transaction expired")
	// ErrBindingMismatch is returned when the caller's ip/user-agent hashes
	// differ from the ones captured at transaction creation.
	ErrBindingMismatch = errors.New("auth transaction binding mismatch")
	// ErrInvalidState is returned when an operation is attempted against a
	// transaction in the wrong state.
	ErrInvalidState = errors.New("invalid transaction state")
	// ErrTooManyAttempts is returned once the challenge attempt counter
	// reaches the configured ceiling.
	ErrTooManyAttempts = errors.New("too many challenge attempts")
	// ErrStoreUnavailable wraps transaction store and user provider backend
	// failures. These are fatal and propagate unmodified; there is no local
	// fallback cache.
	ErrStoreUnavailable = errors.New("backing store unavailable")

	// ErrCodeInvalid is the default verification failure for challenge codes.
	ErrCodeInvalid = errors.New("verification code invalid")
	// ErrBackupCodeInvalid is returned when a backup code does not match or
	// was already consumed.
	ErrBackupCodeInvalid = errors.New("backup code invalid")
	// ErrMethodUnavailable is returned when the requested challenge method is
	// not registered or not currently offered to the user.
	ErrMethodUnavailable = errors.New("challenge method unavailable")

	// ErrMFAAlreadySetUp is returned by enrollment when the user already has
	// a code-based method enabled.
	ErrMFAAlreadySetUp = errors.New("mfa already set up")
	// ErrMFANotEnabled is returned by operations that require a code-based
	// method to be enabled first.
	ErrMFANotEnabled = errors.New("mfa not enabled")
	// ErrMFABroken is returned when an enabled account is missing its stored
	// secret, an inconsistent state that requires operator attention.
	ErrMFABroken = errors.New("mfa state broken")
	// ErrEnrollTokenInvalid is returned when the presented enroll token does
	// not match the one attached to the transaction.
	ErrEnrollTokenInvalid = errors.New("enroll token invalid")
	// ErrActionNotAllowed is returned when an operation is not permitted for
	// the current account or transaction state.
	ErrActionNotAllowed = errors.New("action not allowed")

	// ErrCodeDeliveryFailed is returned when the one-time-code service could
	// not issue a code for a challenge that requires one.
	ErrCodeDeliveryFailed = errors.New("one-time code delivery failed")
)
