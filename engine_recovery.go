package authflow

import (
	"context"
	"net/http"

	"github.com/karvelis/authflow/internal"
)

// StartRecovery establishes a recovery session from a backup code, for the
// case where the account's mailbox itself is compromised. Unknown identity
// and wrong code fail identically, and any failed attempt arms the
// cool-down for the pair.
func (e *Engine) StartRecovery(ctx context.Context, email, backupCode string) (*FlowAdvance, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	locked, err := e.lockouts.Locked(ctx, PurposeRecovery, email)
	if err != nil {
		e.logBackendFailure("lockout_check", PurposeRecovery, err)
		return nil, err
	}
	if locked {
		e.metricInc(MetricLockoutHit)
		e.emitAudit(ctx, auditEventLockoutHit, PurposeRecovery, false, email, "", ErrRateLimited, nil)
		return nil, ErrRateLimited
	}

	identity, exists, err := e.lookupByEmail(ctx, email)
	if err != nil {
		e.logBackendFailure("identity_lookup", PurposeRecovery, err)
		return nil, err
	}
	if !exists {
		e.enumerationDelay(ctx)
		if err := e.lockouts.Lock(ctx, PurposeRecovery, email); err != nil {
			e.logBackendFailure("lockout_arm", PurposeRecovery, err)
		}
		e.metricInc(MetricRecoveryCodeRejected)
		e.emitAudit(ctx, auditEventRecoveryRejected, PurposeRecovery, false, email, "", ErrRecoveryCodeInvalid, nil)
		return nil, ErrRecoveryCodeInvalid
	}

	consumed, err := e.identities.ConsumeRecoveryCode(ctx, identity.ID, internal.HashRecoveryCode(backupCode))
	if err != nil {
		e.logBackendFailure("recovery_code_consume", PurposeRecovery, err)
		return nil, ErrBackendUnavailable
	}
	if !consumed {
		if err := e.lockouts.Lock(ctx, PurposeRecovery, email); err != nil {
			e.logBackendFailure("lockout_arm", PurposeRecovery, err)
		}
		e.metricInc(MetricRecoveryCodeRejected)
		e.emitAudit(ctx, auditEventRecoveryRejected, PurposeRecovery, false, email, identity.ID, ErrRecoveryCodeInvalid, nil)
		return nil, ErrRecoveryCodeInvalid
	}

	token, err := e.flowTokens.Mint(ctx, PurposeRecovery, email)
	if err != nil {
		e.logBackendFailure("flow_token_mint", PurposeRecovery, err)
		return nil, err
	}

	flowCookie, err := e.cookies.Issue(string(PurposeRecovery), email, identity.ID, token)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	e.metricInc(MetricFlowTokenMinted)
	e.metricInc(MetricRecoveryStarted)
	e.emitAudit(ctx, auditEventRecoveryStarted, PurposeRecovery, true, email, identity.ID, nil, nil)

	return &FlowAdvance{Cookie: flowCookie}, nil
}

// ProposeRecoveryEmail checks the candidate replacement address for
// uniqueness and sends a verification code to it. The code is keyed under
// the account id, not the address, so it cannot collide with flows the new
// address's mailbox owner might be running.
func (e *Engine) ProposeRecoveryEmail(ctx context.Context, cookieValue, newEmail string) (*StartResult, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.checkFlowCookie(ctx, PurposeRecovery, cookieValue)
	if err != nil {
		return nil, err
	}

	newEmail, err = normalizeEmail(newEmail)
	if err != nil {
		return nil, err
	}

	_, exists, err := e.lookupByEmail(ctx, newEmail)
	if err != nil {
		e.logBackendFailure("identity_lookup", PurposeEmailChange, err)
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	if err := e.startCodeChallenge(ctx, PurposeEmailChange, claims.UserID, newEmail, CodeKindEmailChange); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventCodeIssued, PurposeEmailChange, true, newEmail, claims.UserID, nil, nil)

	return &StartResult{
		PendingCookie: e.cookies.PendingEmail(newEmail),
	}, nil
}

// VerifyRecoveryEmail consumes the new-address code and upgrades the
// recovery session to the advanced credential that binds the verified
// address to the account id. The plain recovery credential is revoked in
// the exchange.
func (e *Engine) VerifyRecoveryEmail(ctx context.Context, cookieValue, newEmail, code string) (*FlowAdvance, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.checkFlowCookie(ctx, PurposeRecovery, cookieValue)
	if err != nil {
		return nil, err
	}

	newEmail, err = normalizeEmail(newEmail)
	if err != nil {
		return nil, err
	}

	if err := validateCodeShape(code, e.config.Codes.Digits); err != nil {
		e.metricInc(MetricCodeRejected)
		return nil, ErrCodeInvalid
	}
	if err := e.codes.Verify(ctx, PurposeEmailChange, claims.UserID, code); err != nil {
		if isUnavailable(err) {
			e.logBackendFailure("code_verify", PurposeEmailChange, err)
			return nil, err
		}
		e.metricInc(MetricCodeRejected)
		e.emitAudit(ctx, auditEventCodeRejected, PurposeEmailChange, false, newEmail, claims.UserID, ErrCodeInvalid, nil)
		return nil, ErrCodeInvalid
	}
	if err := e.codes.Delete(ctx, PurposeEmailChange, claims.UserID); err != nil {
		e.logBackendFailure("code_delete", PurposeEmailChange, err)
		return nil, err
	}
	e.metricInc(MetricCodeVerified)

	// The address can have been claimed since ProposeRecoveryEmail.
	_, exists, err := e.lookupByEmail(ctx, newEmail)
	if err != nil {
		e.logBackendFailure("identity_lookup", PurposeEmailChange, err)
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	token, err := e.flowTokens.Mint(ctx, PurposeAdvancedRecovery, claims.UserID)
	if err != nil {
		e.logBackendFailure("flow_token_mint", PurposeAdvancedRecovery, err)
		return nil, err
	}

	advCookie, err := e.cookies.Issue(string(PurposeAdvancedRecovery), newEmail, claims.UserID, token)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	if err := e.flowTokens.Revoke(ctx, PurposeRecovery, claims.Identity); err != nil {
		e.logBackendFailure("flow_token_revoke", PurposeRecovery, err)
	}
	e.metricInc(MetricFlowTokenRevoked)
	e.metricInc(MetricFlowTokenMinted)
	e.emitAudit(ctx, auditEventCodeVerified, PurposeEmailChange, true, newEmail, claims.UserID, nil, nil)

	return &FlowAdvance{
		Cookie: advCookie,
		ClearCookies: []*http.Cookie{
			e.cookies.Clear(string(PurposeRecovery)),
			e.cookies.ClearPendingEmail(),
		},
	}, nil
}

// FinishRecovery replaces both the email and the password behind a live
// advanced-recovery credential, regenerates the backup code set, and
// revokes every ephemeral artifact of the flow.
func (e *Engine) FinishRecovery(ctx context.Context, cookieValue, newPassword string) (*RecoveryResult, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.checkFlowCookie(ctx, PurposeAdvancedRecovery, cookieValue)
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrUnauthenticated
	}

	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}

	ciphertext, tag, err := e.emailCipher.Encrypt(claims.Identity)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if err := e.identities.UpdateEncryptedEmail(ctx, claims.UserID, ciphertext, tag); err != nil {
		e.logBackendFailure("email_update", PurposeAdvancedRecovery, err)
		return nil, ErrBackendUnavailable
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if err := e.identities.UpdatePasswordHash(ctx, claims.UserID, newHash); err != nil {
		e.logBackendFailure("password_update", PurposeAdvancedRecovery, err)
		return nil, ErrBackendUnavailable
	}

	// The old set may be partially known to whoever forced the recovery.
	plaintextCodes, records, err := e.generateRecoveryCodeSet()
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	if err := e.identities.ReplaceRecoveryCodes(ctx, claims.UserID, records); err != nil {
		e.logBackendFailure("recovery_codes_replace", PurposeAdvancedRecovery, err)
		return nil, ErrBackendUnavailable
	}

	if err := e.flowTokens.Revoke(ctx, PurposeAdvancedRecovery, claims.UserID); err != nil {
		e.logBackendFailure("flow_token_revoke", PurposeAdvancedRecovery, err)
	}
	e.metricInc(MetricFlowTokenRevoked)
	e.metricInc(MetricRecoveryCompleted)
	e.metricInc(MetricRecoveryCodesGenerated)
	e.emitAudit(ctx, auditEventRecoveryCompleted, PurposeAdvancedRecovery, true, claims.Identity, claims.UserID, nil, nil)
	e.emitAudit(ctx, auditEventRecoveryCodesIssued, PurposeAdvancedRecovery, true, claims.Identity, claims.UserID, nil, nil)

	return &RecoveryResult{
		UserID:        claims.UserID,
		RecoveryCodes: plaintextCodes,
		ClearCookies: []*http.Cookie{
			e.cookies.Clear(string(PurposeAdvancedRecovery)),
			e.cookies.Clear(string(PurposeRecovery)),
			e.cookies.ClearPendingEmail(),
		},
	}, nil
}
