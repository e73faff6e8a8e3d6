package goLogin

import (
	"context"

	"github.com/MrEthical07/goLogin/internal"
)

// methodCapability describes one verification strategy to callers and
// answers whether it is currently usable for a given user/transaction.
type methodCapability struct {
	label         string
	description   string
	requiresSetup bool
	available     func(ctx context.Context, user UserRecord, tx *AuthTransaction) bool
}

// methodHandler pairs a capability with its verification function. verify
// returns nil on success; the error is the failure cause surfaced to the
// caller after the attempt counter is bumped.
type methodHandler struct {
	capability methodCapability
	verify     func(ctx context.Context, user UserRecord, tx *AuthTransaction, code string) error
}

// methodRegistry is the closed dispatch table over the fixed method set.
// It is built once by the builder and injected into the engine; there are
// no runtime-mutable registrations.
type methodRegistry struct {
	handlers map[ChallengeMethod]methodHandler
}

func newMethodRegistry(e *Engine) *methodRegistry {
	return &methodRegistry{
		handlers: map[ChallengeMethod]methodHandler{
			MethodTOTP: {
				capability: methodCapability{
					label:         "Authenticator app",
					description:   "Enter the code from your authenticator app.",
					requiresSetup: true,
					available: func(_ context.Context, user UserRecord, _ *AuthTransaction) bool {
						return user.TOTPEnabled
					},
				},
				verify: e.verifyTOTPMethod,
			},
			MethodBackupCode: {
				capability: methodCapability{
					label:         "Backup code",
					description:   "Use your single-use backup code.",
					requiresSetup: true,
					available: func(ctx context.Context, user UserRecord, _ *AuthTransaction) bool {
						return e.hasUsableBackupCode(ctx, user.UserID)
					},
				},
				verify: e.verifyBackupCodeMethod,
			},
			MethodEmailOTP: {
				capability: methodCapability{
					label:         "Email code",
					description:   "Enter the code sent to your email address.",
					requiresSetup: false,
					available: func(_ context.Context, user UserRecord, _ *AuthTransaction) bool {
						return user.Status == AccountActive
					},
				},
				verify: e.verifyEmailOTPMethod,
			},
			MethodDeviceVerify: {
				capability: methodCapability{
					label:         "Device verification",
					description:   "Confirm this device with the code sent to your email.",
					requiresSetup: false,
					available: func(context.Context, UserRecord, *AuthTransaction) bool {
						return true
					},
				},
				verify: e.verifyDeviceMethod,
			},
		},
	}
}

func (r *methodRegistry) handler(method ChallengeMethod) (methodHandler, bool) {
	h, ok := r.handlers[method]
	return h, ok
}

// availableMethods filters the configured method list for a challenge type
// down to the handlers whose availability predicate holds, preserving the
// configured order and applying label overrides.
func (e *Engine) availableMethods(
	ctx context.Context,
	user UserRecord,
	tx *AuthTransaction,
	challengeType ChallengeType,
) ([]ChallengeMethodOption, error) {
	configured, err := e.settings.ChallengeMethods(ctx, challengeType)
	if err != nil {
		return nil, err
	}
	if configured == nil {
		configured = e.config.Methods[challengeType]
	}

	options := make([]ChallengeMethodOption, 0, len(configured))
	for _, setting := range configured {
		h, ok := e.registry.handler(setting.Method)
		if !ok {
			continue
		}
		if !h.capability.available(ctx, user, tx) {
			continue
		}

		option := ChallengeMethodOption{
			Method:        setting.Method,
			Label:         h.capability.label,
			Description:   h.capability.description,
			RequiresSetup: h.capability.requiresSetup,
		}
		if setting.Label != "" {
			option.Label = setting.Label
		}
		if setting.Description != "" {
			option.Description = setting.Description
		}
		options = append(options, option)
	}
	return options, nil
}

func (e *Engine) verifyTOTPMethod(ctx context.Context, user UserRecord, _ *AuthTransaction, code string) error {
	record, err := e.users.GetTOTPSecret(ctx, user.UserID)
	if err != nil {
		return err
	}
	if record == nil || !record.Enabled || record.Secret == "" {
		return ErrMFABroken
	}
	if !e.totp.VerifyCode(record.Secret, code, e.now()) {
		return ErrCodeInvalid
	}
	return nil
}

func (e *Engine) hasUsableBackupCode(ctx context.Context, userID string) bool {
	record, err := e.users.GetBackupCode(ctx, userID)
	if err != nil || record == nil || record.Used {
		return false
	}
	if record.ExpiresAt > 0 && record.ExpiresAt <= e.now().Unix() {
		return false
	}
	return true
}

func (e *Engine) verifyBackupCodeMethod(ctx context.Context, user UserRecord, _ *AuthTransaction, code string) error {
	if len(code) != e.config.BackupCode.Length {
		return ErrBackupCodeInvalid
	}

	consumed, err := e.users.ConsumeBackupCode(ctx, user.UserID, internal.HashBackupCode(code))
	if err != nil {
		return err
	}
	if !consumed {
		return ErrBackupCodeInvalid
	}
	return nil
}

func (e *Engine) verifyEmailOTPMethod(ctx context.Context, user UserRecord, tx *AuthTransaction, code string) error {
	return e.verifyOneTimeCode(ctx, user, tx.EmailOTPToken, PurposeLoginOTP, code)
}

func (e *Engine) verifyDeviceMethod(ctx context.Context, user UserRecord, tx *AuthTransaction, code string) error {
	return e.verifyOneTimeCode(ctx, user, tx.DeviceVerifyToken, PurposeDeviceVerify, code)
}

func (e *Engine) verifyOneTimeCode(ctx context.Context, user UserRecord, token string, purpose CodePurpose, code string) error {
	if e.codes == nil || token == "" {
		return ErrCodeInvalid
	}

	subject, err := e.codes.Verify(ctx, token, purpose, code)
	if err != nil {
		return err
	}
	if subject == "" || subject != user.UserID {
		return ErrCodeInvalid
	}
	return nil
}
