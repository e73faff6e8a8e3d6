// Package sessionredis is a reference SessionService backed by Redis with
// HS256 access tokens. It exists so the engine can be exercised end to end
// without a bespoke session layer; production embedders with their own
// session infrastructure implement goLogin.SessionService directly.
package sessionredis

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	goLogin "github.com/MrEthical07/goLogin"
)

var (
	ErrNilRedis      = errors.New("sessionredis: nil redis client")
	ErrNoSigningKey  = errors.New("sessionredis: signing key required")
	ErrInvalidConfig = errors.New("sessionredis: invalid config")
)

// Config controls session lifetime and token issuance.
type Config struct {
	// RedisPrefix namespaces all session keys. Defaults to "sess".
	RedisPrefix string
	// SessionTTL bounds session and fingerprint lifetime.
	SessionTTL time.Duration
	// AccessTTL bounds the signed access token lifetime.
	AccessTTL time.Duration
	// SigningKey is the HS256 key for access tokens.
	SigningKey []byte
	Issuer     string
}

// Service implements goLogin.SessionService on Redis.
type Service struct {
	client redis.UniversalClient
	cfg    Config
}

type sessionRecord struct {
	UserID      string `json:"uid"`
	Fingerprint string `json:"fp,omitempty"`
	IP          string `json:"ip,omitempty"`
	UserAgent   string `json:"ua,omitempty"`
	RefreshHash string `json:"rh"`
	CreatedAt   int64  `json:"cat"`
	ExpiresAt   int64  `json:"exp"`
}

type accessClaims struct {
	UID string `json:"uid"`
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewService validates the config and returns a ready service.
func NewService(client redis.UniversalClient, cfg Config) (*Service, error) {
	if client == nil {
		return nil, ErrNilRedis
	}
	if len(cfg.SigningKey) < 32 {
		return nil, ErrNoSigningKey
	}
	if cfg.SessionTTL <= 0 || cfg.AccessTTL <= 0 || cfg.AccessTTL > cfg.SessionTTL {
		return nil, ErrInvalidConfig
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "sess"
	}
	return &Service{client: client, cfg: cfg}, nil
}

func (s *Service) sessionKey(sid string) string {
	return s.cfg.RedisPrefix + ":s:" + sid
}

func (s *Service) userKey(userID string) string {
	return s.cfg.RedisPrefix + ":u:" + userID
}

func (s *Service) fingerprintKey(userID, fingerprint string) string {
	return s.cfg.RedisPrefix + ":f:" + userID + ":" + fingerprint
}

// CompleteLogin persists a session record, indexes it for revocation and
// fingerprint lookups, and issues the token pair.
func (s *Service) CompleteLogin(
	ctx context.Context,
	user goLogin.UserRecord,
	ip, userAgent string,
	security goLogin.SecurityCheckResult,
) (*goLogin.Session, error) {
	now := time.Now()
	sid := uuid.NewString()
	expiresAt := now.Add(s.cfg.SessionTTL)

	refreshToken, refreshHash, err := newRefreshToken()
	if err != nil {
		return nil, err
	}

	record := sessionRecord{
		UserID:      user.UserID,
		Fingerprint: security.DeviceFingerprint,
		IP:          ip,
		UserAgent:   userAgent,
		RefreshHash: refreshHash,
		CreatedAt:   now.Unix(),
		ExpiresAt:   expiresAt.Unix(),
	}
	blob, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sid), blob, s.cfg.SessionTTL)
	pipe.SAdd(ctx, s.userKey(user.UserID), sid)
	pipe.Expire(ctx, s.userKey(user.UserID), s.cfg.SessionTTL)
	if record.Fingerprint != "" {
		pipe.Set(ctx, s.fingerprintKey(user.UserID, record.Fingerprint), sid, s.cfg.SessionTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("sessionredis: persist session: %w", err)
	}

	accessToken, err := s.signAccessToken(user.UserID, sid, now)
	if err != nil {
		return nil, err
	}

	return &goLogin.Session{
		SessionID:    sid,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt.Unix(),
	}, nil
}

// HasActiveFingerprint reports whether the user has a live session from the
// given device fingerprint.
func (s *Service) HasActiveFingerprint(ctx context.Context, userID, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, s.fingerprintKey(userID, fingerprint)).Result()
	if err != nil {
		return false, fmt.Errorf("sessionredis: fingerprint lookup: %w", err)
	}
	return n > 0, nil
}

// RevokeAll deletes every session and fingerprint marker for the user.
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	sids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("sessionredis: list sessions: %w", err)
	}

	keys := make([]string, 0, len(sids)*2+1)
	for _, sid := range sids {
		keys = append(keys, s.sessionKey(sid))

		blob, gerr := s.client.Get(ctx, s.sessionKey(sid)).Bytes()
		if gerr != nil {
			continue
		}
		var record sessionRecord
		if json.Unmarshal(blob, &record) == nil && record.Fingerprint != "" {
			keys = append(keys, s.fingerprintKey(userID, record.Fingerprint))
		}
	}
	keys = append(keys, s.userKey(userID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("sessionredis: revoke sessions: %w", err)
	}
	return nil
}

func (s *Service) signAccessToken(userID, sid string, now time.Time) (string, error) {
	claims := accessClaims{
		UID: userID,
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
			ID:        sid,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sessionredis: sign access token: %w", err)
	}
	return signed, nil
}

func newRefreshToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(token))
	return token, base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
