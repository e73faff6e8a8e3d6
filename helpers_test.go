package goLogin

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goLogin/internal"
)

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]UserRecord
	byEmail map[string]string
	totp    map[string]*TOTPRecord
	backup  map[string]*BackupCodeRecord
	failErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:    make(map[string]UserRecord),
		byEmail: make(map[string]string),
		totp:    make(map[string]*TOTPRecord),
		backup:  make(map[string]*BackupCodeRecord),
	}
}

func (f *fakeUsers) add(user UserRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[user.UserID] = user
	f.byEmail[user.Email] = user.UserID
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return UserRecord{}, f.failErr
	}
	id, ok := f.byEmail[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return f.byID[id], nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return UserRecord{}, f.failErr
	}
	user, ok := f.byID[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUsers) IncrementPasswordAttempts(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.byID[userID]
	user.PasswordAttempts++
	f.byID[userID] = user
	return nil
}

func (f *fakeUsers) ResetPasswordAttempts(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.byID[userID]
	user.PasswordAttempts = 0
	f.byID[userID] = user
	return nil
}

func (f *fakeUsers) GetTOTPSecret(_ context.Context, userID string) (*TOTPRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.totp[userID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (f *fakeUsers) EnableTOTP(_ context.Context, userID, secretBase32 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totp[userID] = &TOTPRecord{Secret: secretBase32, Enabled: true}
	user := f.byID[userID]
	user.TOTPEnabled = true
	f.byID[userID] = user
	return nil
}

func (f *fakeUsers) DisableTOTP(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.totp, userID)
	delete(f.backup, userID)
	user := f.byID[userID]
	user.TOTPEnabled = false
	f.byID[userID] = user
	return nil
}

func (f *fakeUsers) GetBackupCode(_ context.Context, userID string) (*BackupCodeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.backup[userID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (f *fakeUsers) ReplaceBackupCode(_ context.Context, userID string, record BackupCodeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backup[userID] = &record
	return nil
}

func (f *fakeUsers) ConsumeBackupCode(_ context.Context, userID string, hash [32]byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.backup[userID]
	if !ok || record.Used || record.Hash != hash {
		return false, nil
	}
	record.Used = true
	return true, nil
}

type fakeSessions struct {
	mu           sync.Mutex
	issued       int
	fingerprints map[string]bool
	revoked      []string
	failErr      error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{fingerprints: make(map[string]bool)}
}

func (f *fakeSessions) CompleteLogin(_ context.Context, user UserRecord, _, _ string, _ SecurityCheckResult) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.issued++
	return &Session{
		SessionID:    fmt.Sprintf("sid-%d", f.issued),
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}, nil
}

func (f *fakeSessions) HasActiveFingerprint(_ context.Context, userID, fingerprint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fingerprints[userID+"/"+fingerprint], nil
}

func (f *fakeSessions) RevokeAll(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, userID)
	return nil
}

func (f *fakeSessions) markKnown(userID, fingerprint string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fingerprints[userID+"/"+fingerprint] = true
}

func (f *fakeSessions) issuedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issued
}

type sentCode struct {
	userID  string
	purpose CodePurpose
	code    string
}

type fakeCodes struct {
	mu       sync.Mutex
	nextCode string
	counter  int
	sent     map[string]sentCode
	failSend error
}

func newFakeCodes() *fakeCodes {
	return &fakeCodes{
		nextCode: "654321",
		sent:     make(map[string]sentCode),
	}
}

func (f *fakeCodes) Send(_ context.Context, userID, _ string, purpose CodePurpose) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return "", f.failSend
	}
	f.counter++
	token := fmt.Sprintf("ott-%d", f.counter)
	f.sent[token] = sentCode{userID: userID, purpose: purpose, code: f.nextCode}
	return token, nil
}

func (f *fakeCodes) Verify(_ context.Context, token string, purpose CodePurpose, code string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending, ok := f.sent[token]
	if !ok || pending.purpose != purpose || pending.code != code {
		return "", nil
	}
	delete(f.sent, token)
	return pending.userID, nil
}

type fakeCaptcha struct {
	ok  bool
	err error
}

func (f *fakeCaptcha) Validate(context.Context, string, string) (bool, error) {
	return f.ok, f.err
}

// plainVerifier avoids argon2 cost in engine tests. Hashes are "pw:" plus
// the plaintext.
type plainVerifier struct{}

func (plainVerifier) Verify(password, hash string) (bool, error) {
	return hash == "pw:"+password, nil
}

type testFixture struct {
	engine   *Engine
	redis    *miniredis.Miniredis
	users    *fakeUsers
	sessions *fakeSessions
	codes    *fakeCodes
	captcha  *fakeCaptcha
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Transaction.BindingSalt = []byte("0123456789abcdef")
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, settings Settings) (*testFixture, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	users := newFakeUsers()
	sessions := newFakeSessions()
	codes := newFakeCodes()
	captcha := &fakeCaptcha{ok: true}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(users).
		WithSessionService(sessions).
		WithSettingsProvider(StaticSettings{Settings: settings, Methods: cfg.Methods}).
		WithCaptchaValidator(captcha).
		WithCodeService(codes).
		WithPasswordVerifier(plainVerifier{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	fixture := &testFixture{
		engine:   engine,
		redis:    mr,
		users:    users,
		sessions: sessions,
		codes:    codes,
		captcha:  captcha,
	}
	done := func() {
		engine.Close()
		_ = client.Close()
	}
	return fixture, done
}

func testCtx() context.Context {
	ctx := WithClientIP(context.Background(), "10.1.2.3")
	return WithUserAgent(ctx, "go-test-agent/1.0")
}

func deviceFingerprintForTestCtx() string {
	return internal.DeviceFingerprint("go-test-agent/1.0", "10.1.2.3")
}

func activeUser(id, email string) UserRecord {
	return UserRecord{
		UserID:       id,
		Email:        email,
		PasswordHash: "pw:correct-password-123",
		Status:       AccountActive,
	}
}
