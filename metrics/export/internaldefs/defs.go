package internaldefs

import (
	goLogin "github.com/MrEthical07/goLogin"
)

// CounterDef binds one engine counter to its stable exported name.
type CounterDef struct {
	ID   goLogin.MetricID
	Name string
	Help string
}

// HistogramDef binds one engine histogram to its stable exported name.
type HistogramDef struct {
	ID   goLogin.MetricID
	Name string
	Help string
}

// CounterDefs enumerates every engine counter with its exported name.
var CounterDefs = []CounterDef{
	{ID: goLogin.MetricLoginSuccess, Name: "gologin_login_success_total", Help: "Fully completed logins."},
	{ID: goLogin.MetricLoginFailure, Name: "gologin_login_failure_total", Help: "Failed password steps."},
	{ID: goLogin.MetricLoginBlocked, Name: "gologin_login_blocked_total", Help: "Logins blocked by the risk evaluator."},
	{ID: goLogin.MetricCaptchaRejected, Name: "gologin_captcha_rejected_total", Help: "Missing or invalid captchas."},
	{ID: goLogin.MetricPasswordExpired, Name: "gologin_password_expired_total", Help: "Logins rejected for expired passwords."},
	{ID: goLogin.MetricChallengeStarted, Name: "gologin_challenge_started_total", Help: "Transactions entering a challenge."},
	{ID: goLogin.MetricChallengeSuccess, Name: "gologin_challenge_success_total", Help: "Verified challenges."},
	{ID: goLogin.MetricChallengeFailure, Name: "gologin_challenge_failure_total", Help: "Failed challenge attempts."},
	{ID: goLogin.MetricChallengeAttemptsExceeded, Name: "gologin_challenge_attempts_exceeded_total", Help: "Challenges rejected at the attempt ceiling."},
	{ID: goLogin.MetricBindingMismatch, Name: "gologin_binding_mismatch_total", Help: "Transaction binding rejections."},
	{ID: goLogin.MetricTransactionExpired, Name: "gologin_transaction_expired_total", Help: "Expired or consumed transaction lookups."},
	{ID: goLogin.MetricDeviceVerifyRequired, Name: "gologin_device_verify_required_total", Help: "New-device verification challenges."},
	{ID: goLogin.MetricEnrollStarted, Name: "gologin_enroll_started_total", Help: "Started MFA enrollments."},
	{ID: goLogin.MetricEnrollCompleted, Name: "gologin_enroll_completed_total", Help: "Confirmed MFA enrollments."},
	{ID: goLogin.MetricMFADisabled, Name: "gologin_mfa_disabled_total", Help: "MFA removals."},
	{ID: goLogin.MetricBackupCodeUsed, Name: "gologin_backup_code_used_total", Help: "Consumed backup codes."},
	{ID: goLogin.MetricBackupCodeRegenerated, Name: "gologin_backup_code_regenerated_total", Help: "Regenerated backup codes."},
}

// HistogramDefs enumerates every engine histogram with its exported name.
var HistogramDefs = []HistogramDef{
	{ID: goLogin.MetricStartLoginLatency, Name: "gologin_start_login_latency_seconds", Help: "StartLogin latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's fixed millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds the metric-name-safe suffix per bound.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// exporters expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
