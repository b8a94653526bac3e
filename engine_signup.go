package authflow

import (
	"context"
	"net/http"

	"github.com/karvelis/authflow/internal"
)

// StartSignUp begins account creation for email: rejects addresses that
// already belong to an identity, then issues a one-time code to prove
// control of the mailbox. The returned pending cookie is a convenience for
// the UI; it carries no authority.
func (e *Engine) StartSignUp(ctx context.Context, email string) (*StartResult, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	_, exists, err := e.lookupByEmail(ctx, email)
	if err != nil {
		e.logBackendFailure("identity_lookup", PurposeSignUp, err)
		return nil, err
	}
	if exists {
		e.metricInc(MetricSignUpConflict)
		e.emitAudit(ctx, auditEventSignUpConflict, PurposeSignUp, false, email, "", ErrEmailTaken, nil)
		return nil, ErrEmailTaken
	}

	if err := e.startCodeChallenge(ctx, PurposeSignUp, email, email, CodeKindSignUp); err != nil {
		return nil, err
	}

	e.metricInc(MetricSignUpStarted)
	e.emitAudit(ctx, auditEventSignUpStarted, PurposeSignUp, true, email, "", nil, nil)

	return &StartResult{
		PendingCookie: e.cookies.PendingEmail(email),
	}, nil
}

// VerifySignUpCode consumes the sign-up code and mints the temp-session
// credential for the final step.
func (e *Engine) VerifySignUpCode(ctx context.Context, email, code string) (*FlowAdvance, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	flowCookie, err := e.verifyCodeAndMint(ctx, PurposeSignUp, email, "", code)
	if err != nil {
		return nil, err
	}

	return &FlowAdvance{
		Cookie:       flowCookie,
		ClearCookies: []*http.Cookie{e.cookies.ClearPendingEmail()},
	}, nil
}

// FinishSignUp creates the identity once the temp-session credential checks
// out. The email stays encrypted at rest; the plaintext backup codes are
// returned exactly once and never persisted.
func (e *Engine) FinishSignUp(ctx context.Context, cookieValue string, req FinishSignUpRequest) (*SignUpResult, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.checkFlowCookie(ctx, PurposeSignUp, cookieValue)
	if err != nil {
		return nil, err
	}

	if err := validateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	// The uniqueness guard at StartSignUp can be stale by now; check again
	// before the write.
	_, exists, err := e.lookupByEmail(ctx, claims.Identity)
	if err != nil {
		e.logBackendFailure("identity_lookup", PurposeSignUp, err)
		return nil, err
	}
	if exists {
		_ = e.flowTokens.Revoke(ctx, PurposeSignUp, claims.Identity)
		e.metricInc(MetricSignUpConflict)
		e.emitAudit(ctx, auditEventSignUpConflict, PurposeSignUp, false, claims.Identity, "", ErrEmailTaken, nil)
		return nil, ErrEmailTaken
	}

	ciphertext, tag, err := e.emailCipher.Encrypt(claims.Identity)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	passwordHash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	plaintextCodes, records, err := e.generateRecoveryCodeSet()
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	identity, err := e.identities.Create(ctx, CreateIdentityInput{
		Username:       req.Username,
		EncryptedEmail: ciphertext,
		EmailTag:       tag,
		PasswordHash:   passwordHash,
		RecoveryCodes:  records,
	})
	if err != nil {
		e.logBackendFailure("identity_create", PurposeSignUp, err)
		return nil, ErrBackendUnavailable
	}

	// Terminal state: the temp session dies with the flow.
	if err := e.flowTokens.Revoke(ctx, PurposeSignUp, claims.Identity); err != nil {
		e.logBackendFailure("flow_token_revoke", PurposeSignUp, err)
	}
	e.metricInc(MetricFlowTokenRevoked)
	e.metricInc(MetricSignUpCompleted)
	e.metricInc(MetricRecoveryCodesGenerated)
	e.emitAudit(ctx, auditEventSignUpCompleted, PurposeSignUp, true, claims.Identity, identity.ID, nil, nil)

	return &SignUpResult{
		Identity:      identity,
		RecoveryCodes: plaintextCodes,
		ClearCookies: []*http.Cookie{
			e.cookies.Clear(string(PurposeSignUp)),
			e.cookies.ClearPendingEmail(),
		},
	}, nil
}

func (e *Engine) generateRecoveryCodeSet() ([]string, []RecoveryCodeRecord, error) {
	count := e.config.Recovery.CodeCount
	plaintext := make([]string, 0, count)
	records := make([]RecoveryCodeRecord, 0, count)

	for i := 0; i < count; i++ {
		code, err := internal.NewRecoveryCode(e.config.Recovery.CodeLength)
		if err != nil {
			return nil, nil, err
		}
		plaintext = append(plaintext, code)
		records = append(records, RecoveryCodeRecord{Hash: internal.HashRecoveryCode(code)})
	}

	return plaintext, records, nil
}
