package goLogin

import (
	"errors"
	"time"

	"github.com/MrEthical07/goLogin/internal/stores"
	"github.com/MrEthical07/goLogin/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Collaborators are supplied up front; Build
// validates the configuration and wires the method dispatch table once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users    UserProvider
	sessions SessionService
	settings SettingsProvider
	captcha  CaptchaValidator
	codes    OneTimeCodeService
	hasher   PasswordVerifier
	sink     AuditSink

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. The builder keeps its own copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the transaction store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the user store integration.
func (b *Builder) WithUserProvider(users UserProvider) *Builder {
	b.users = users
	return b
}

// WithSessionService sets the session issuer collaborator.
func (b *Builder) WithSessionService(sessions SessionService) *Builder {
	b.sessions = sessions
	return b
}

// WithSettingsProvider sets the runtime feature-flag source. When omitted,
// Build installs a [StaticSettings] derived from the config.
func (b *Builder) WithSettingsProvider(settings SettingsProvider) *Builder {
	b.settings = settings
	return b
}

// WithCaptchaValidator sets the captcha collaborator. Required only when
// captcha is enabled by configuration or settings.
func (b *Builder) WithCaptchaValidator(captcha CaptchaValidator) *Builder {
	b.captcha = captcha
	return b
}

// WithCodeService sets the one-time-code delivery collaborator.
func (b *Builder) WithCodeService(codes OneTimeCodeService) *Builder {
	b.codes = codes
	return b
}

// WithPasswordVerifier sets the password hash comparator. Defaults to the
// Argon2id implementation in the password package.
func (b *Builder) WithPasswordVerifier(hasher PasswordVerifier) *Builder {
	b.hasher = hasher
	return b
}

// WithAuditSink sets the audit event sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// Build validates configuration and dependencies and returns the engine.
// A builder may only be consumed once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("goLogin: builder already consumed")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("goLogin: redis client is required")
	}
	if b.users == nil {
		return nil, errors.New("goLogin: user provider is required")
	}
	if b.sessions == nil {
		return nil, errors.New("goLogin: session service is required")
	}
	if b.codes == nil {
		return nil, errors.New("goLogin: one-time-code service is required")
	}
	hasher := b.hasher
	if hasher == nil {
		def, err := password.NewArgon2(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
		hasher = def
	}

	settings := b.settings
	if settings == nil {
		settings = StaticSettings{
			Settings: Settings{
				CaptchaRequired:       b.config.Login.CaptchaRequired,
				PasswordAttemptLimit:  b.config.Login.PasswordAttemptLimit,
				PasswordExpiryEnabled: b.config.Login.PasswordExpiryEnabled,
			},
			Methods: b.config.Methods,
		}
	}

	engine := &Engine{
		config:   b.config,
		txStore:  newAuthTxStore(stores.NewAuthTxStore(b.redis, b.config.Transaction.RedisPrefix), b.config.Transaction),
		totp:     newTOTPManager(b.config.TOTP),
		audit:    newAuditDispatcher(b.config.Audit, b.sink),
		metrics:  NewMetrics(b.config.Metrics),
		users:    b.users,
		sessions: b.sessions,
		settings: settings,
		captcha:  b.captcha,
		codes:    b.codes,
		hasher:   hasher,
		now:      time.Now,
	}
	engine.registry = newMethodRegistry(engine)

	b.built = true
	return engine, nil
}
