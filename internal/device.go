package internal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashBindingValue computes the salted one-way hash used for ip/user-agent
// transaction binding. An empty value hashes to a stable non-zero digest so
// binding checks still compare equal for callers without the header.
func HashBindingValue(salt []byte, v string) [32]byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(v))

	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// DeviceFingerprint derives the device fingerprint from the user agent and
// client ip. One-way; the inputs are not recoverable.
func DeviceFingerprint(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + "::" + ip))
	return hex.EncodeToString(sum[:])
}
