package goLogin

// nextStepInput feeds the pure next-step decision after a successful
// password check.
type nextStepInput struct {
	HasTOTP                   bool
	MFARequired               bool
	RiskBased                 bool
	Risk                      RiskLevel
	IsNewDevice               bool
	DeviceVerificationEnabled bool
}

// resolveNextStep decides which challenge, if any, follows password
// verification. Pure; the precedence order is part of the contract:
//
//  1. no TOTP + new device + device verification on  -> device verify
//  2. MFA required but user has no TOTP              -> mfa challenge
//  3. user has TOTP                                  -> mfa challenge
//  4. risk-based MFA on and risk is medium or higher -> mfa challenge
//  5. otherwise                                      -> none, complete login
func resolveNextStep(in nextStepInput) ChallengeType {
	switch {
	case !in.HasTOTP && in.IsNewDevice && in.DeviceVerificationEnabled:
		return ChallengeDeviceVerify
	case in.MFARequired && !in.HasTOTP:
		return ChallengeMFARequired
	case in.HasTOTP:
		return ChallengeMFARequired
	case in.RiskBased && in.Risk >= RiskMedium:
		return ChallengeMFARequired
	default:
		return ChallengeNone
	}
}
