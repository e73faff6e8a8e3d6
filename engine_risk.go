package goLogin

import (
	"context"

	"github.com/MrEthical07/goLogin/internal"
)

// evaluateLoginRisk computes the device-based risk decision for a login
// attempt. The result is captured into the transaction exactly once and
// replayed verbatim at completion; it is never recomputed, so a device that
// becomes known mid-transaction does not change the outcome.
func (e *Engine) evaluateLoginRisk(ctx context.Context, user UserRecord, settings Settings) (SecurityCheckResult, error) {
	if !settings.DeviceRecognitionEnabled {
		return SecurityCheckResult{Action: RiskAllow, Level: RiskLow}, nil
	}

	fingerprint := internal.DeviceFingerprint(userAgentFromContext(ctx), clientIPFromContext(ctx))

	known, err := e.sessions.HasActiveFingerprint(ctx, user.UserID, fingerprint)
	if err != nil {
		return SecurityCheckResult{}, err
	}

	result := SecurityCheckResult{
		Action:            RiskAllow,
		DeviceFingerprint: fingerprint,
		IsNewDevice:       !known,
		Level:             RiskLow,
	}
	if !known {
		result.Level = RiskMedium
	}

	if result.IsNewDevice && settings.AuditUnknownDevice {
		e.emitAudit(ctx, auditEventUnknownDevice, SeverityWarning, true, user.UserID, "", nil, func() map[string]string {
			return map[string]string{
				"device_fingerprint": fingerprint,
			}
		})
	}

	if result.IsNewDevice && settings.BlockUnknownDevice {
		result.Action = RiskBlock
		result.Reason = "unknown_device"
		return result, nil
	}

	return result, nil
}
