package authflow

import (
	"errors"
	"net/http"
	"time"

	"github.com/karvelis/authflow/cipher"
)

// DeliveryPolicy decides the ordering of code storage and code delivery.
//
// The observed upstream behavior stores the code and arms the lockout
// before attempting delivery, so a delivery failure leaves the caller
// locked out with no code in hand for the full cool-down. Whether that is
// intentional anti-abuse behavior or a bug is ambiguous, so the ordering
// is a policy knob rather than a hardcoded "fix".
type DeliveryPolicy uint8

const (
	// StoreBeforeDeliver persists the code and lockout first, then sends.
	// Delivery failure surfaces an error but leaves both records live.
	StoreBeforeDeliver DeliveryPolicy = iota
	// DeliverBeforeStore sends first and persists only on success, so a
	// delivery failure leaves no lockout behind.
	DeliverBeforeStore
)

// Config is the full engine configuration tree. Zero values are filled
// from defaults at Build; Validate rejects anything out of range.
type Config struct {
	Codes      CodeConfig
	Lockout    LockoutConfig
	FlowTokens FlowTokenConfig
	Cookies    CookieConfig
	Session    SessionConfig
	Cipher     CipherConfig
	Password   PasswordConfig
	Recovery   RecoveryConfig
	Security   SecurityConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// CodeConfig controls one-time verification codes.
type CodeConfig struct {
	Digits         int           // code length, 4–10
	TTL            time.Duration // code lifetime
	DeliveryPolicy DeliveryPolicy
}

// LockoutConfig controls the per-(purpose, identity) cool-down flags.
type LockoutConfig struct {
	Cooldown time.Duration // no unlock path; expiry is the only release
}

// FlowTokenConfig controls correlated session tokens.
type FlowTokenConfig struct {
	TTL time.Duration
}

// CookieConfig controls the signed bearer cookies and the unsigned
// convenience cookies.
type CookieConfig struct {
	Secret     []byte // HS256 signing secret, at least 32 bytes
	TTL        time.Duration
	PendingTTL time.Duration
	SameSite   http.SameSite
	Domain     string
	Path       string
	Names      map[string]string // purpose → cookie name overrides
}

// SessionConfig controls the long-lived authenticated session.
type SessionConfig struct {
	TTL         time.Duration
	RedisPrefix string
}

// CipherConfig carries the identity cipher key material. The fixed nonce
// keeps encryption deterministic so ciphertexts stay equality-searchable.
type CipherConfig struct {
	Key   []byte // 32 bytes
	Nonce []byte // 12 bytes
}

// PasswordConfig carries the Argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// RecoveryConfig controls backup code generation.
type RecoveryConfig struct {
	CodeCount  int
	CodeLength int // alphabet characters, excluding the group separator
}

// SecurityConfig holds cross-cutting hardening knobs.
type SecurityConfig struct {
	ProductionMode bool // forces Secure cookies
	// EnumerationSafeDelay pads responses for unknown identities so their
	// timing matches the real-identity path.
	EnumerationSafeDelay time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Codes: CodeConfig{
			Digits:         6,
			TTL:            300 * time.Second,
			DeliveryPolicy: StoreBeforeDeliver,
		},
		Lockout: LockoutConfig{
			Cooldown: 60 * time.Second,
		},
		FlowTokens: FlowTokenConfig{
			TTL: 600 * time.Second,
		},
		Cookies: CookieConfig{
			TTL:        600 * time.Second,
			PendingTTL: 15 * time.Minute,
			SameSite:   http.SameSiteStrictMode,
			Path:       "/",
		},
		Session: SessionConfig{
			TTL:         7 * 24 * time.Hour,
			RedisPrefix: "afs",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Recovery: RecoveryConfig{
			CodeCount:  10,
			CodeLength: 10,
		},
		Security: SecurityConfig{
			EnumerationSafeDelay: 120 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate checks the configuration tree for out-of-range values. Key
// material presence is checked here; key correctness is checked by the
// cipher and cookie constructors at Build.
func (c *Config) Validate() error {
	if c.Codes.Digits < 4 || c.Codes.Digits > 10 {
		return errors.New("Codes.Digits must be between 4 and 10")
	}
	if c.Codes.TTL <= 0 {
		return errors.New("Codes.TTL must be positive")
	}
	if c.Codes.DeliveryPolicy != StoreBeforeDeliver && c.Codes.DeliveryPolicy != DeliverBeforeStore {
		return errors.New("invalid Codes.DeliveryPolicy")
	}
	if c.Lockout.Cooldown <= 0 {
		return errors.New("Lockout.Cooldown must be positive")
	}
	if c.FlowTokens.TTL <= 0 {
		return errors.New("FlowTokens.TTL must be positive")
	}
	if len(c.Cookies.Secret) < 32 {
		return errors.New("Cookies.Secret must be at least 32 bytes")
	}
	if c.Cookies.TTL <= 0 || c.Cookies.PendingTTL <= 0 {
		return errors.New("cookie TTLs must be positive")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session.TTL must be positive")
	}
	if len(c.Cipher.Key) != cipher.KeySize {
		return errors.New("Cipher.Key must be 32 bytes")
	}
	if len(c.Cipher.Nonce) != cipher.NonceSize {
		return errors.New("Cipher.Nonce must be 12 bytes")
	}
	if c.Recovery.CodeCount < 1 || c.Recovery.CodeCount > 32 {
		return errors.New("Recovery.CodeCount must be between 1 and 32")
	}
	if c.Recovery.CodeLength < 8 || c.Recovery.CodeLength > 20 || c.Recovery.CodeLength%2 != 0 {
		return errors.New("Recovery.CodeLength must be an even value between 8 and 20")
	}
	if c.Security.EnumerationSafeDelay < 0 || c.Security.EnumerationSafeDelay > 2*time.Second {
		return errors.New("Security.EnumerationSafeDelay out of range")
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Cookies.Secret = cloneBytes(cfg.Cookies.Secret)
	out.Cipher.Key = cloneBytes(cfg.Cipher.Key)
	out.Cipher.Nonce = cloneBytes(cfg.Cipher.Nonce)
	if cfg.Cookies.Names != nil {
		out.Cookies.Names = make(map[string]string, len(cfg.Cookies.Names))
		for k, v := range cfg.Cookies.Names {
			out.Cookies.Names[k] = v
		}
	}
	return out
}

// DefaultConfig returns the engine defaults. Callers fill in the key
// material (Cookies.Secret, Cipher.Key, Cipher.Nonce) before Build.
func DefaultConfig() Config {
	return defaultConfig()
}
