package authflow

import "time"

// SecurityReport summarizes the engine's security-relevant posture for
// operators and startup logging. It contains configuration only, never key
// material.
type SecurityReport struct {
	ProductionMode       bool
	SigningAlgorithm     string
	DeterministicCipher  bool
	CodeDigits           int
	CodeTTL              time.Duration
	LockoutCooldown      time.Duration
	FlowTokenTTL         time.Duration
	FlowCookieTTL        time.Duration
	SessionTTL           time.Duration
	DeliverBeforeStore   bool
	EnumerationSafeDelay time.Duration
	Argon2               PasswordConfigReport
	RecoveryCodeCount    int
	AuditEnabled         bool
	MetricsEnabled       bool
}

// PasswordConfigReport mirrors the Argon2id cost parameters in effect.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport builds the posture summary from the engine's frozen
// configuration.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:       e.config.Security.ProductionMode,
		SigningAlgorithm:     "HS256",
		DeterministicCipher:  true,
		CodeDigits:           e.config.Codes.Digits,
		CodeTTL:              e.config.Codes.TTL,
		LockoutCooldown:      e.config.Lockout.Cooldown,
		FlowTokenTTL:         e.config.FlowTokens.TTL,
		FlowCookieTTL:        e.config.Cookies.TTL,
		SessionTTL:           e.config.Session.TTL,
		DeliverBeforeStore:   e.config.Codes.DeliveryPolicy == DeliverBeforeStore,
		EnumerationSafeDelay: e.config.Security.EnumerationSafeDelay,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		RecoveryCodeCount: e.config.Recovery.CodeCount,
		AuditEnabled:      e.config.Audit.Enabled,
		MetricsEnabled:    e.config.Metrics.Enabled,
	}
}
