package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// TxID is the opaque auth transaction identifier.
type TxID [16]byte

// NewTxID generates a random transaction id.
func NewTxID() (TxID, error) {
	var id TxID
	_, err := rand.Read(id[:])
	return id, err
}

func (t TxID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(t[:])
}

// backupCodeAlphabet excludes 0/O and 1/I to keep codes transcribable.
const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBackupCode generates a backup code of the given length from the
// restricted alphabet.
func NewBackupCode(length int) (string, error) {
	if length < 8 || length > 32 {
		return "", errors.New("invalid backup code length")
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = backupCodeAlphabet[int(b)%len(backupCodeAlphabet)]
	}
	return string(buf), nil
}

// HashBackupCode hashes a presented backup code for storage or comparison.
func HashBackupCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}
