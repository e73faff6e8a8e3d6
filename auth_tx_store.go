package goLogin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goLogin/internal"
	"github.com/MrEthical07/goLogin/internal/stores"
)

// bindingContext is the caller context captured at transaction creation and
// re-checked on every subsequent call.
type bindingContext struct {
	IP        string
	UserAgent string
}

// authTxStore is the engine-facing view of the transaction store. It owns
// id generation, binding hashing and error mapping; persistence lives in
// internal/stores.
type authTxStore struct {
	store *stores.AuthTxStore
	cfg   TransactionConfig
}

func newAuthTxStore(store *stores.AuthTxStore, cfg TransactionConfig) *authTxStore {
	return &authTxStore{store: store, cfg: cfg}
}

func (s *authTxStore) hashBinding(v string) [32]byte {
	return internal.HashBindingValue(s.cfg.BindingSalt, v)
}

// Create persists a fresh transaction bound to the caller's context, with
// the configured TTL and the risk snapshot captured exactly once.
func (s *authTxStore) Create(
	ctx context.Context,
	userID string,
	state TxState,
	binding bindingContext,
	security SecurityCheckResult,
	challengeType ChallengeType,
) (*AuthTransaction, error) {
	id, err := internal.NewTxID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tx := &AuthTransaction{
		ID:            id.String(),
		UserID:        userID,
		State:         state,
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(s.cfg.TTL).Unix(),
		IPHash:        s.hashBinding(binding.IP),
		UAHash:        s.hashBinding(binding.UserAgent),
		ChallengeType: challengeType,
		Security:      security,
	}

	if err := s.store.Save(ctx, tx.ID, toStoreRecord(tx), s.cfg.TTL); err != nil {
		return nil, mapAuthTxStoreError(err)
	}
	return tx, nil
}

// GetOrFail loads a transaction, mapping absence and expiry to
// [ErrTransactionExpired].
func (s *authTxStore) GetOrFail(ctx context.Context, txID string) (*AuthTransaction, error) {
	if txID == "" {
		return nil, ErrTransactionExpired
	}
	record, err := s.store.Get(ctx, txID)
	if err != nil {
		return nil, mapAuthTxStoreError(err)
	}
	return fromStoreRecord(txID, record), nil
}

// Update merges the mutation into the stored record, preserving the
// remaining TTL. Binding hashes are never touched by updates.
func (s *authTxStore) Update(ctx context.Context, txID string, mutate func(*AuthTransaction)) (*AuthTransaction, error) {
	record, err := s.store.Update(ctx, txID, func(r *stores.AuthTxRecord) error {
		tx := fromStoreRecord(txID, r)
		mutate(tx)
		next := toStoreRecord(tx)
		next.IPHash = r.IPHash
		next.UAHash = r.UAHash
		*r = *next
		return nil
	})
	if err != nil {
		return nil, mapAuthTxStoreError(err)
	}
	return fromStoreRecord(txID, record), nil
}

// AttachEnroll sets the enrollment sub-record and switches the transaction
// into the enrollment challenge, keeping the remaining TTL.
func (s *authTxStore) AttachEnroll(ctx context.Context, txID string, enroll EnrollData) (*AuthTransaction, error) {
	return s.Update(ctx, txID, func(tx *AuthTransaction) {
		tx.ChallengeType = ChallengeMFAEnroll
		tx.Enroll = &enroll
	})
}

// IncrementAttempts bumps the challenge attempt counter.
func (s *authTxStore) IncrementAttempts(ctx context.Context, txID string) (uint16, error) {
	n, err := s.store.IncrementAttempts(ctx, txID)
	if err != nil {
		return 0, mapAuthTxStoreError(err)
	}
	return n, nil
}

// Delete removes the transaction and reports whether this caller consumed
// it.
func (s *authTxStore) Delete(ctx context.Context, txID string) (bool, error) {
	deleted, err := s.store.Delete(ctx, txID)
	if err != nil {
		return false, mapAuthTxStoreError(err)
	}
	return deleted, nil
}

// AssertBinding recomputes the caller's binding hashes and fails with
// [ErrBindingMismatch] when either differs from the stored one. A stolen
// transaction id replayed from another network or client fails here.
func (s *authTxStore) AssertBinding(tx *AuthTransaction, binding bindingContext) error {
	ipHash := s.hashBinding(binding.IP)
	uaHash := s.hashBinding(binding.UserAgent)

	ipOK := subtle.ConstantTimeCompare(ipHash[:], tx.IPHash[:]) == 1
	uaOK := subtle.ConstantTimeCompare(uaHash[:], tx.UAHash[:]) == 1
	if !ipOK || !uaOK {
		return ErrBindingMismatch
	}
	return nil
}

// AssertAttemptsAllowed fails with [ErrTooManyAttempts] once the counter
// reached the ceiling.
func (s *authTxStore) AssertAttemptsAllowed(tx *AuthTransaction) error {
	if int(tx.ChallengeAttempts) >= s.cfg.MaxChallengeAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func mapAuthTxStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrAuthTxNotFound), errors.Is(err, stores.ErrAuthTxExpired):
		return ErrTransactionExpired
	case errors.Is(err, stores.ErrAuthTxBackend):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

func toStoreRecord(tx *AuthTransaction) *stores.AuthTxRecord {
	record := &stores.AuthTxRecord{
		UserID:            tx.UserID,
		State:             uint8(tx.State),
		ChallengeType:     uint8(tx.ChallengeType),
		Attempts:          tx.ChallengeAttempts,
		CreatedAt:         tx.CreatedAt,
		ExpiresAt:         tx.ExpiresAt,
		IPHash:            tx.IPHash,
		UAHash:            tx.UAHash,
		SecurityAction:    uint8(tx.Security.Action),
		SecurityLevel:     uint8(tx.Security.Level),
		IsNewDevice:       tx.Security.IsNewDevice,
		SecurityReason:    tx.Security.Reason,
		DeviceFingerprint: tx.Security.DeviceFingerprint,
		EmailOTPToken:     tx.EmailOTPToken,
		DeviceVerifyToken: tx.DeviceVerifyToken,
	}
	if tx.Enroll != nil {
		record.EnrollToken = tx.Enroll.EnrollToken
		record.EnrollSecret = tx.Enroll.TempSecret
		record.EnrollStartedAt = tx.Enroll.StartedAt
	}
	return record
}

func fromStoreRecord(txID string, record *stores.AuthTxRecord) *AuthTransaction {
	tx := &AuthTransaction{
		ID:                txID,
		UserID:            record.UserID,
		State:             TxState(record.State),
		CreatedAt:         record.CreatedAt,
		ExpiresAt:         record.ExpiresAt,
		ChallengeAttempts: record.Attempts,
		IPHash:            record.IPHash,
		UAHash:            record.UAHash,
		ChallengeType:     ChallengeType(record.ChallengeType),
		Security: SecurityCheckResult{
			Action:            RiskAction(record.SecurityAction),
			Level:             RiskLevel(record.SecurityLevel),
			IsNewDevice:       record.IsNewDevice,
			Reason:            record.SecurityReason,
			DeviceFingerprint: record.DeviceFingerprint,
		},
		EmailOTPToken:     record.EmailOTPToken,
		DeviceVerifyToken: record.DeviceVerifyToken,
	}
	if record.EnrollToken != "" {
		tx.Enroll = &EnrollData{
			EnrollToken: record.EnrollToken,
			TempSecret:  record.EnrollSecret,
			StartedAt:   record.EnrollStartedAt,
		}
	}
	return tx
}
