package authflow

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/karvelis/authflow/cipher"
	"github.com/karvelis/authflow/cookie"
	internalaudit "github.com/karvelis/authflow/internal/audit"
	"github.com/karvelis/authflow/password"
	"github.com/karvelis/authflow/session"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	identityStore IdentityStore
	codeSender    CodeSender
	auditSink     AuditSink
	logger        *zap.Logger

	built bool
}

// New starts a Builder seeded with the engine defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration tree. The config is cloned,
// so later mutation of cfg by the caller does not leak into the engine.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the redis client backing every ephemeral store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityStore sets the persistent identity collaborator.
func (b *Builder) WithIdentityStore(store IdentityStore) *Builder {
	b.identityStore = store
	return b
}

// WithCodeSender sets the outbound code delivery collaborator.
func (b *Builder) WithCodeSender(sender CodeSender) *Builder {
	b.codeSender = sender
	return b
}

// WithAuditSink sets the audit event sink and enables the dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithLogger sets the structured logger for backend failure reporting.
// Without one the engine logs nowhere.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles flow-session check latency sampling.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the stores, and returns the
// immutable Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identityStore == nil {
		return nil, errors.New("identity store required")
	}
	if b.codeSender == nil {
		return nil, errors.New("code sender required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	emailCipher, err := cipher.New(cipher.Config{
		Key:   cloneBytes(cfg.Cipher.Key),
		Nonce: cloneBytes(cfg.Cipher.Nonce),
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	issuer, err := cookie.NewIssuer(cookie.Config{
		Secret:     cloneBytes(cfg.Cookies.Secret),
		TTL:        cfg.Cookies.TTL,
		PendingTTL: cfg.Cookies.PendingTTL,
		SessionTTL: cfg.Session.TTL,
		Secure:     cfg.Security.ProductionMode,
		SameSite:   cfg.Cookies.SameSite,
		Domain:     cfg.Cookies.Domain,
		Path:       cfg.Cookies.Path,
		Names:      cfg.Cookies.Names,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:       cfg,
		emailCipher:  emailCipher,
		passwordHash: hasher,
		cookies:      issuer,
		codes:        newCodeStore(b.redis, cfg.Codes.TTL),
		lockouts:     newLockoutGuard(b.redis, cfg.Lockout.Cooldown),
		flowTokens:   newFlowTokenStore(b.redis, cfg.FlowTokens.TTL),
		sessions:     session.NewStore(b.redis, cfg.Session.RedisPrefix),
		identities:   b.identityStore,
		sender:       b.codeSender,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
	}

	b.built = true

	return engine, nil
}
