package authflow

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventCodeIssued          = "code_issued"
	auditEventCodeDeliveryFailed  = "code_delivery_failed"
	auditEventCodeVerified        = "code_verified"
	auditEventCodeRejected        = "code_rejected"
	auditEventLockoutHit          = "lockout_hit"
	auditEventSignUpStarted       = "signup_started"
	auditEventSignUpCompleted     = "signup_completed"
	auditEventSignUpConflict      = "signup_conflict"
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginChallenge      = "login_challenge_issued"
	auditEventSessionCreated      = "session_created"
	auditEventSessionRevoked      = "session_revoked"
	auditEventPasswordResetStart  = "password_reset_started"
	auditEventPasswordResetDone   = "password_reset_completed"
	auditEventPasswordChanged     = "password_changed"
	auditEventPasswordChangeFail  = "password_change_failed"
	auditEventRecoveryStarted     = "recovery_started"
	auditEventRecoveryRejected    = "recovery_code_rejected"
	auditEventRecoveryCompleted   = "recovery_completed"
	auditEventRecoveryCodesIssued = "recovery_codes_generated"
)

// AuditErrorCode is the stable machine-readable error label recorded in
// audit events in place of raw error text.
type AuditErrorCode string

const (
	auditErrInvalidInput        AuditErrorCode = "invalid_input"
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrCodeInvalid         AuditErrorCode = "code_invalid"
	auditErrUnauthenticated     AuditErrorCode = "unauthenticated"
	auditErrIdentityNotFound    AuditErrorCode = "identity_not_found"
	auditErrEmailTaken          AuditErrorCode = "email_taken"
	auditErrFlowInProgress      AuditErrorCode = "flow_in_progress"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrRecoveryCodeInvalid AuditErrorCode = "recovery_code_invalid"
	auditErrPasswordReuse       AuditErrorCode = "password_reuse"
	auditErrDeliveryFailed      AuditErrorCode = "delivery_failed"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	purpose Purpose,
	success bool,
	identity string,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Purpose:   string(purpose),
		Identity:  identity,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrIdentityNotFound):
		return auditErrIdentityNotFound
	case errors.Is(err, ErrEmailTaken):
		return auditErrEmailTaken
	case errors.Is(err, ErrFlowInProgress):
		return auditErrFlowInProgress
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRecoveryCodeInvalid):
		return auditErrRecoveryCodeInvalid
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
