package goLogin

import (
	"context"
	"strings"
)

// buildMFARequiredChallenge shapes the challenge payload for an enrolled (or
// to-be-enrolled) user, including whether a usable backup code exists.
func (e *Engine) buildMFARequiredChallenge(
	ctx context.Context,
	user UserRecord,
	methods []ChallengeMethodOption,
) *Challenge {
	return &Challenge{
		Type:             ChallengeMFARequired,
		AvailableMethods: methods,
		HasBackupCode:    e.hasUsableBackupCode(ctx, user.UserID),
	}
}

// buildDeviceVerifyChallenge shapes the new-device challenge payload with
// the masked delivery destination and the device metadata from the risk
// snapshot.
func (e *Engine) buildDeviceVerifyChallenge(
	user UserRecord,
	methods []ChallengeMethodOption,
	security SecurityCheckResult,
) *Challenge {
	return &Challenge{
		Type:              ChallengeDeviceVerify,
		AvailableMethods:  methods,
		MaskedDestination: MaskEmail(user.Email),
		IsNewDevice:       security.IsNewDevice,
		DeviceFingerprint: security.DeviceFingerprint,
	}
}

// MaskEmail reveals the first two characters of the local part and masks
// the remainder up to the domain separator: "alice@example.com" becomes
// "al***@example.com".
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return email
	}

	// Rune-wise so a multibyte local part is never split mid-character.
	local := []rune(email[:at])
	keep := 2
	if len(local) < keep {
		keep = len(local)
	}
	return string(local[:keep]) + strings.Repeat("*", len(local)-keep) + email[at:]
}
