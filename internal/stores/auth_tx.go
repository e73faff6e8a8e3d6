package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	authTxRecordVersion1 = 1
)

var (
	ErrAuthTxNotFound = errors.New("auth transaction not found")
	ErrAuthTxExpired  = errors.New("auth transaction expired")
	ErrAuthTxBackend  = errors.New("auth transaction backend unavailable")
)

// AuthTxRecord is the store-local transaction model. The root package maps
// it to its public AuthTransaction type.
type AuthTxRecord struct {
	UserID            string
	State             uint8
	ChallengeType     uint8
	Attempts          uint16
	CreatedAt         int64
	ExpiresAt         int64
	IPHash            [32]byte
	UAHash            [32]byte
	SecurityAction    uint8
	SecurityLevel     uint8
	IsNewDevice       bool
	SecurityReason    string
	DeviceFingerprint string
	EmailOTPToken     string
	DeviceVerifyToken string
	EnrollToken       string
	EnrollSecret      string
	EnrollStartedAt   int64
}

// AuthTxStore persists auth transactions in Redis with a hard TTL. Updates
// go through optimistic WATCH transactions and always re-persist with the
// remaining lifetime, so a transaction cannot be prolonged past its
// original expiry.
type AuthTxStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewAuthTxStore(redisClient redis.UniversalClient, prefix string) *AuthTxStore {
	if prefix == "" {
		prefix = "atx"
	}
	return &AuthTxStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *AuthTxStore) key(txID string) string {
	return s.prefix + ":" + txID
}

func (s *AuthTxStore) Save(ctx context.Context, txID string, record *AuthTxRecord, ttl time.Duration) error {
	encoded, err := encodeAuthTx(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(txID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthTxBackend, err)
	}
	return nil
}

func (s *AuthTxStore) Get(ctx context.Context, txID string) (*AuthTxRecord, error) {
	data, err := s.redis.Get(ctx, s.key(txID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAuthTxNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthTxBackend, err)
	}

	record, err := decodeAuthTx(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(txID)).Result()
		return nil, ErrAuthTxExpired
	}
	return record, nil
}

// Update applies mutate to the current record and re-persists it with the
// remaining TTL. The WATCH loop retries on concurrent writers.
func (s *AuthTxStore) Update(ctx context.Context, txID string, mutate func(*AuthTxRecord) error) (*AuthTxRecord, error) {
	const maxRetries = 4
	key := s.key(txID)

	for i := 0; i < maxRetries; i++ {
		var updated *AuthTxRecord
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeAuthTx(data)
			if err != nil {
				return err
			}

			remaining := time.Until(time.Unix(record.ExpiresAt, 0))
			if remaining <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrAuthTxExpired
			}

			if err := mutate(record); err != nil {
				return err
			}

			encoded, err := encodeAuthTx(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, remaining)
				return nil
			})
			if err == nil {
				updated = record
			}
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrAuthTxNotFound
			}
			if errors.Is(err, ErrAuthTxExpired) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrAuthTxBackend, err)
		}
		return updated, nil
	}

	return nil, ErrAuthTxNotFound
}

// IncrementAttempts bumps the challenge attempt counter and returns the new
// value. The record is never deleted here; the engine enforces the ceiling
// on entry so the terminal error stays observable.
func (s *AuthTxStore) IncrementAttempts(ctx context.Context, txID string) (uint16, error) {
	record, err := s.Update(ctx, txID, func(r *AuthTxRecord) error {
		r.Attempts++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return record.Attempts, nil
}

// Delete removes the transaction and reports whether it existed. The
// deleted count doubles as the atomic consumption marker for concurrent
// completions.
func (s *AuthTxStore) Delete(ctx context.Context, txID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(txID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrAuthTxBackend, err)
	}
	return n > 0, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > 65535 {
		return errors.New("auth transaction field length exceeded")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeAuthTx(record *AuthTxRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(authTxRecordVersion1)

	buf.WriteByte(record.State)
	buf.WriteByte(record.ChallengeType)
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.IPHash[:])
	buf.Write(record.UAHash[:])

	buf.WriteByte(record.SecurityAction)
	buf.WriteByte(record.SecurityLevel)
	if record.IsNewDevice {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	for _, v := range []string{
		record.UserID,
		record.SecurityReason,
		record.DeviceFingerprint,
		record.EmailOTPToken,
		record.DeviceVerifyToken,
	} {
		if err := writeString(&buf, v); err != nil {
			return nil, err
		}
	}

	if record.EnrollToken != "" {
		buf.WriteByte(1)
		if err := writeString(&buf, record.EnrollToken); err != nil {
			return nil, err
		}
		if err := writeString(&buf, record.EnrollSecret); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, record.EnrollStartedAt); err != nil {
			return nil, err
		}
	} else {
		buf.WriteByte(0)
	}

	return buf.Bytes(), nil
}

func decodeAuthTx(data []byte) (*AuthTxRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != authTxRecordVersion1 {
		return nil, errors.New("invalid auth transaction version")
	}

	record := &AuthTxRecord{}
	if record.State, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	if record.ChallengeType, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.IPHash[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.UAHash[:]); err != nil {
		return nil, err
	}

	if record.SecurityAction, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	if record.SecurityLevel, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	newDevice, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	record.IsNewDevice = newDevice == 1

	for _, dst := range []*string{
		&record.UserID,
		&record.SecurityReason,
		&record.DeviceFingerprint,
		&record.EmailOTPToken,
		&record.DeviceVerifyToken,
	} {
		if *dst, err = readString(reader); err != nil {
			return nil, err
		}
	}

	hasEnroll, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if hasEnroll == 1 {
		if record.EnrollToken, err = readString(reader); err != nil {
			return nil, err
		}
		if record.EnrollSecret, err = readString(reader); err != nil {
			return nil, err
		}
		if err := binary.Read(reader, binary.BigEndian, &record.EnrollStartedAt); err != nil {
			return nil, err
		}
	}

	return record, nil
}
