package authflow

import (
	"context"
	"io"
	"net/http"

	internalaudit "github.com/karvelis/authflow/internal/audit"
	internalmetrics "github.com/karvelis/authflow/internal/metrics"
)

// Purpose labels which flow an ephemeral record belongs to. It is both a
// key segment in the secret store and the tag inside signed cookies, so a
// record or cookie minted for one flow can never satisfy another.
type Purpose string

const (
	PurposeSignUp           Purpose = "signup"
	PurposeLogin2FA         Purpose = "login2fa"
	PurposeForgotPassword   Purpose = "forgotpw"
	PurposeRecovery         Purpose = "recovery"
	PurposeAdvancedRecovery Purpose = "advrecovery"
	PurposePasswordChange   Purpose = "pwchange"
	PurposeEmailChange      Purpose = "emailchange"
)

func (p Purpose) String() string { return string(p) }

// IdentityRecord is the persisted account record as seen by the engine.
// The email is stored encrypted (deterministic AES-GCM ciphertext plus
// authentication tag) so it stays exact-match searchable without ever being
// persisted in plaintext.
type IdentityRecord struct {
	ID             string
	Username       string
	EncryptedEmail []byte
	EmailTag       []byte
	PasswordHash   string
}

// RecoveryCodeRecord stores the SHA-256 hash of a single backup code.
// The plaintext is shown to the user once and never persisted.
type RecoveryCodeRecord struct {
	Hash [32]byte
}

// CreateIdentityInput is the input for [IdentityStore.Create].
type CreateIdentityInput struct {
	Username       string
	EncryptedEmail []byte
	EmailTag       []byte
	PasswordHash   string
	RecoveryCodes  []RecoveryCodeRecord
}

// IdentityStore is the persistent-storage collaborator. The engine treats
// it as a black box: lookups are by encrypted email or id, and mutations
// are limited to the identity-changing operations the flows perform.
//
// Implementations must return [ErrIdentityNotFound] (or an error wrapping
// it) when a lookup matches nothing, and must make Create fail when the
// encrypted email is already present.
type IdentityStore interface {
	GetByEncryptedEmail(ctx context.Context, encryptedEmail, emailTag []byte) (IdentityRecord, error)
	GetByID(ctx context.Context, id string) (IdentityRecord, error)
	Create(ctx context.Context, input CreateIdentityInput) (IdentityRecord, error)
	UpdatePasswordHash(ctx context.Context, id, newHash string) error
	UpdateEncryptedEmail(ctx context.Context, id string, encryptedEmail, emailTag []byte) error
	ReplaceRecoveryCodes(ctx context.Context, id string, codes []RecoveryCodeRecord) error
	// ConsumeRecoveryCode atomically marks the matching backup code used.
	// It returns false when no unused code matches the hash.
	ConsumeRecoveryCode(ctx context.Context, id string, hash [32]byte) (bool, error)
}

// CodeKind tells the delivery collaborator which template to render.
type CodeKind string

const (
	CodeKindSignUp        CodeKind = "signup"
	CodeKindLogin2FA      CodeKind = "login2fa"
	CodeKindPasswordReset CodeKind = "password_reset"
	CodeKindEmailChange   CodeKind = "email_change"
)

// CodeSender is the outbound delivery collaborator. A non-nil error means
// the code was not delivered; how the engine treats that depends on
// [DeliveryPolicy].
type CodeSender interface {
	SendCode(ctx context.Context, email, code string, kind CodeKind) error
}

// StartResult is returned by flow-start operations that issue a code.
// PendingCookie is the plaintext email-pending convenience cookie.
type StartResult struct {
	PendingCookie *http.Cookie
}

// FlowAdvance is returned when a flow moves past code verification: a
// correlated session token has been minted and wrapped in Cookie.
// ClearCookies removes artifacts of the previous step.
type FlowAdvance struct {
	Cookie       *http.Cookie
	ClearCookies []*http.Cookie
}

// SignUpResult is returned by [Engine.FinishSignUp].
type SignUpResult struct {
	Identity      IdentityRecord
	RecoveryCodes []string
	ClearCookies  []*http.Cookie
}

// AuthSession is returned by [Engine.ConfirmLogin2FA] once the long-lived
// session is established.
type AuthSession struct {
	SessionID    string
	UserID       string
	Cookie       *http.Cookie
	ClearCookies []*http.Cookie
}

// RecoveryResult is returned by [Engine.FinishRecovery]. RecoveryCodes is
// the replacement backup code set, shown to the user exactly once.
type RecoveryResult struct {
	UserID        string
	RecoveryCodes []string
	ClearCookies  []*http.Cookie
}

// FinishSignUpRequest carries the caller-chosen account fields presented
// at the final sign-up step.
type FinishSignUpRequest struct {
	Username string
	Password string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricCodeIssued              = internalmetrics.MetricCodeIssued
	MetricCodeDeliveryFailure     = internalmetrics.MetricCodeDeliveryFailure
	MetricCodeVerified            = internalmetrics.MetricCodeVerified
	MetricCodeRejected            = internalmetrics.MetricCodeRejected
	MetricLockoutHit              = internalmetrics.MetricLockoutHit
	MetricFlowTokenMinted         = internalmetrics.MetricFlowTokenMinted
	MetricFlowTokenRejected       = internalmetrics.MetricFlowTokenRejected
	MetricFlowTokenRevoked        = internalmetrics.MetricFlowTokenRevoked
	MetricSignUpStarted           = internalmetrics.MetricSignUpStarted
	MetricSignUpCompleted         = internalmetrics.MetricSignUpCompleted
	MetricSignUpConflict          = internalmetrics.MetricSignUpConflict
	MetricLoginSuccess            = internalmetrics.MetricLoginSuccess
	MetricLoginFailure            = internalmetrics.MetricLoginFailure
	MetricLoginChallengeIssued    = internalmetrics.MetricLoginChallengeIssued
	MetricSessionCreated          = internalmetrics.MetricSessionCreated
	MetricSessionRevoked          = internalmetrics.MetricSessionRevoked
	MetricPasswordResetStarted    = internalmetrics.MetricPasswordResetStarted
	MetricPasswordResetCompleted  = internalmetrics.MetricPasswordResetCompleted
	MetricPasswordChanged         = internalmetrics.MetricPasswordChanged
	MetricRecoveryStarted         = internalmetrics.MetricRecoveryStarted
	MetricRecoveryCompleted       = internalmetrics.MetricRecoveryCompleted
	MetricRecoveryCodeRejected    = internalmetrics.MetricRecoveryCodeRejected
	MetricRecoveryCodesGenerated  = internalmetrics.MetricRecoveryCodesGenerated
	MetricFlowSessionCheckLatency = internalmetrics.MetricFlowSessionCheckLatency
)

// Metrics holds the engine's atomic counters.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot
