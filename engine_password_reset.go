package authflow

import (
	"context"
	"net/http"
)

// StartPasswordReset issues a reset code to email. For addresses without an
// account the call still reports success after a timing-equalizing delay,
// so the response never reveals whether an account exists.
func (e *Engine) StartPasswordReset(ctx context.Context, email string) (*StartResult, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	_, exists, err := e.lookupByEmail(ctx, email)
	if err != nil {
		e.logBackendFailure("identity_lookup", PurposeForgotPassword, err)
		return nil, err
	}
	if !exists {
		e.enumerationDelay(ctx)
		e.emitAudit(ctx, auditEventPasswordResetStart, PurposeForgotPassword, false, email, "", ErrIdentityNotFound, nil)
		return &StartResult{
			PendingCookie: e.cookies.PendingEmail(email),
		}, nil
	}

	if err := e.startCodeChallenge(ctx, PurposeForgotPassword, email, email, CodeKindPasswordReset); err != nil {
		return nil, err
	}

	e.metricInc(MetricPasswordResetStarted)
	e.emitAudit(ctx, auditEventPasswordResetStart, PurposeForgotPassword, true, email, "", nil, nil)

	return &StartResult{
		PendingCookie: e.cookies.PendingEmail(email),
	}, nil
}

// VerifyPasswordResetCode consumes the reset code and mints the reset flow
// credential.
func (e *Engine) VerifyPasswordResetCode(ctx context.Context, email, code string) (*FlowAdvance, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	flowCookie, err := e.verifyCodeAndMint(ctx, PurposeForgotPassword, email, "", code)
	if err != nil {
		return nil, err
	}

	return &FlowAdvance{
		Cookie:       flowCookie,
		ClearCookies: []*http.Cookie{e.cookies.ClearPendingEmail()},
	}, nil
}

// FinishPasswordReset replaces the password hash behind a live reset
// credential. The credential is revoked on success and the pair is locked
// for one cool-down window, so a second finish with the same cookie fails
// and the flow cannot be re-triggered immediately.
func (e *Engine) FinishPasswordReset(ctx context.Context, cookieValue, newPassword string) (*FlowAdvance, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.checkFlowCookie(ctx, PurposeForgotPassword, cookieValue)
	if err != nil {
		return nil, err
	}

	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}

	identity, exists, err := e.lookupByEmail(ctx, claims.Identity)
	if err != nil {
		e.logBackendFailure("identity_lookup", PurposeForgotPassword, err)
		return nil, err
	}
	if !exists {
		return nil, ErrUnauthenticated
	}

	if same, err := e.passwordHash.Verify(newPassword, identity.PasswordHash); err == nil && same {
		return nil, ErrPasswordReuse
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if err := e.identities.UpdatePasswordHash(ctx, identity.ID, newHash); err != nil {
		e.logBackendFailure("password_update", PurposeForgotPassword, err)
		return nil, ErrBackendUnavailable
	}

	// Terminal state: revoke the credential, then arm the cool-down so the
	// flow cannot be restarted for the same pair right away.
	if err := e.flowTokens.Revoke(ctx, PurposeForgotPassword, claims.Identity); err != nil {
		e.logBackendFailure("flow_token_revoke", PurposeForgotPassword, err)
	}
	if err := e.lockouts.Lock(ctx, PurposeForgotPassword, claims.Identity); err != nil {
		e.logBackendFailure("lockout_arm", PurposeForgotPassword, err)
	}

	e.metricInc(MetricFlowTokenRevoked)
	e.metricInc(MetricPasswordResetCompleted)
	e.emitAudit(ctx, auditEventPasswordResetDone, PurposeForgotPassword, true, claims.Identity, identity.ID, nil, nil)

	return &FlowAdvance{
		ClearCookies: []*http.Cookie{
			e.cookies.Clear(string(PurposeForgotPassword)),
			e.cookies.ClearPendingEmail(),
		},
	}, nil
}
