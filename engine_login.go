package authflow

import (
	"context"
	"errors"
	"net/http"

	"github.com/karvelis/authflow/session"
)

// Login verifies the password as the first factor and, on success, issues
// the emailed second-factor code along with the 2FA flow credential.
// Unknown identity and wrong password are indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, email, password string) (*FlowAdvance, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	identity, exists, err := e.lookupByEmail(ctx, email)
	if err != nil {
		e.logBackendFailure("identity_lookup", PurposeLogin2FA, err)
		return nil, err
	}
	if !exists {
		// Burn roughly the cost of a real hash verification so timing does
		// not reveal which addresses have accounts.
		e.enumerationDelay(ctx)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, PurposeLogin2FA, false, email, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	ok, err := e.passwordHash.Verify(password, identity.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, PurposeLogin2FA, false, email, identity.ID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	// Best-effort cost upgrade; never blocks a successful first factor.
	if needs, err := e.passwordHash.NeedsRehash(identity.PasswordHash); err == nil && needs {
		if newHash, err := e.passwordHash.Hash(password); err == nil {
			if err := e.identities.UpdatePasswordHash(ctx, identity.ID, newHash); err != nil {
				e.logBackendFailure("password_rehash", PurposeLogin2FA, err)
			}
		}
	}

	if err := e.startCodeChallenge(ctx, PurposeLogin2FA, email, email, CodeKindLogin2FA); err != nil {
		return nil, err
	}

	// The first factor is already proven, so the 2FA credential is minted
	// at issuance rather than after code verification.
	token, err := e.flowTokens.Mint(ctx, PurposeLogin2FA, email)
	if err != nil {
		e.logBackendFailure("flow_token_mint", PurposeLogin2FA, err)
		return nil, err
	}

	flowCookie, err := e.cookies.Issue(string(PurposeLogin2FA), email, identity.ID, token)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	e.metricInc(MetricFlowTokenMinted)
	e.metricInc(MetricLoginChallengeIssued)
	e.emitAudit(ctx, auditEventLoginChallenge, PurposeLogin2FA, true, email, identity.ID, nil, nil)

	return &FlowAdvance{Cookie: flowCookie}, nil
}

// ConfirmLogin2FA consumes the second-factor code and establishes the
// long-lived authenticated session.
func (e *Engine) ConfirmLogin2FA(ctx context.Context, cookieValue, code string) (*AuthSession, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.checkFlowCookie(ctx, PurposeLogin2FA, cookieValue)
	if err != nil {
		return nil, err
	}

	if err := validateCodeShape(code, e.config.Codes.Digits); err != nil {
		e.metricInc(MetricCodeRejected)
		return nil, ErrCodeInvalid
	}
	if err := e.codes.Verify(ctx, PurposeLogin2FA, claims.Identity, code); err != nil {
		if isUnavailable(err) {
			e.logBackendFailure("code_verify", PurposeLogin2FA, err)
			return nil, err
		}
		e.metricInc(MetricCodeRejected)
		e.emitAudit(ctx, auditEventCodeRejected, PurposeLogin2FA, false, claims.Identity, claims.UserID, ErrCodeInvalid, nil)
		return nil, ErrCodeInvalid
	}
	if err := e.codes.Delete(ctx, PurposeLogin2FA, claims.Identity); err != nil {
		e.logBackendFailure("code_delete", PurposeLogin2FA, err)
		return nil, err
	}
	e.metricInc(MetricCodeVerified)

	identity, exists, err := e.lookupByEmail(ctx, claims.Identity)
	if err != nil {
		e.logBackendFailure("identity_lookup", PurposeLogin2FA, err)
		return nil, err
	}
	if !exists {
		return nil, ErrUnauthenticated
	}

	sessionID, err := e.sessions.Create(ctx, identity.ID, e.config.Session.TTL)
	if err != nil {
		e.logBackendFailure("session_create", PurposeLogin2FA, err)
		return nil, ErrBackendUnavailable
	}

	// Terminal state for the 2FA flow.
	if err := e.flowTokens.Revoke(ctx, PurposeLogin2FA, claims.Identity); err != nil {
		e.logBackendFailure("flow_token_revoke", PurposeLogin2FA, err)
	}
	e.metricInc(MetricFlowTokenRevoked)
	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, PurposeLogin2FA, true, claims.Identity, identity.ID, nil, nil)
	e.emitAudit(ctx, auditEventSessionCreated, PurposeLogin2FA, true, claims.Identity, identity.ID, nil, nil)

	return &AuthSession{
		SessionID: sessionID,
		UserID:    identity.ID,
		Cookie:    e.cookies.Session(sessionID),
		ClearCookies: []*http.Cookie{
			e.cookies.Clear(string(PurposeLogin2FA)),
		},
	}, nil
}

// ValidateSession resolves a long-lived session id to its user id. Expired
// and unknown sessions fail identically.
func (e *Engine) ValidateSession(ctx context.Context, sessionID string) (string, error) {
	if e == nil || e.sessions == nil {
		return "", ErrEngineNotReady
	}

	record, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", ErrUnauthenticated
		}
		e.logBackendFailure("session_get", "", err)
		return "", ErrBackendUnavailable
	}
	return record.UserID, nil
}

// Logout revokes the session. Revoking an already-dead session succeeds.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		e.logBackendFailure("session_delete", "", err)
		return ErrBackendUnavailable
	}
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, "", true, "", "", nil, nil)
	return nil
}

// ClearSessionCookie returns the expired cookie that removes the auth
// session cookie from the client.
func (e *Engine) ClearSessionCookie() *http.Cookie {
	return e.cookies.ClearSession()
}

// ChangePassword rotates the password of a live session's user. The old
// password is required even with a valid session; the presented session is
// revoked on success so the new password must be used to sign in again.
func (e *Engine) ChangePassword(ctx context.Context, sessionID, oldPassword, newPassword string) error {
	if e == nil || e.identities == nil {
		return ErrEngineNotReady
	}

	userID, err := e.ValidateSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	identity, err := e.identities.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return ErrUnauthenticated
		}
		e.logBackendFailure("identity_lookup", PurposePasswordChange, err)
		return ErrBackendUnavailable
	}

	ok, err := e.passwordHash.Verify(oldPassword, identity.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventPasswordChangeFail, PurposePasswordChange, false, "", userID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	same, err := e.passwordHash.Verify(newPassword, identity.PasswordHash)
	if err == nil && same {
		e.emitAudit(ctx, auditEventPasswordChangeFail, PurposePasswordChange, false, "", userID, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return ErrBackendUnavailable
	}
	if err := e.identities.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		e.logBackendFailure("password_update", PurposePasswordChange, err)
		return ErrBackendUnavailable
	}

	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		e.logBackendFailure("session_delete", PurposePasswordChange, err)
	} else {
		e.metricInc(MetricSessionRevoked)
	}

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, auditEventPasswordChanged, PurposePasswordChange, true, "", userID, nil, nil)
	return nil
}
