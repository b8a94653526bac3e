package authflow

import (
	"context"
	"net/http"

	"github.com/karvelis/authflow/internal"
)

// startCodeChallenge is the shared entry path of every flow: enforce the
// cool-down, reject re-entry while a correlated token is live, then issue
// and deliver a one-time code for (purpose, identity).
//
// identity is the store partition key; email is the delivery address. They
// coincide for every flow except the advanced email-change leg, where the
// code goes to a proposed address keyed under the account.
func (e *Engine) startCodeChallenge(ctx context.Context, purpose Purpose, identity, email string, kind CodeKind) error {
	locked, err := e.lockouts.Locked(ctx, purpose, identity)
	if err != nil {
		e.logBackendFailure("lockout_check", purpose, err)
		return err
	}
	if locked {
		e.metricInc(MetricLockoutHit)
		e.emitAudit(ctx, auditEventLockoutHit, purpose, false, identity, "", ErrRateLimited, nil)
		return ErrRateLimited
	}

	// A live 2FA credential never blocks a repeat login: the password was
	// proven again and the subsequent mint supersedes the abandoned token.
	// Every other flow holds single-flight until its token dies.
	if purpose != PurposeLogin2FA {
		inFlight, err := e.flowTokens.Exists(ctx, purpose, identity)
		if err != nil {
			e.logBackendFailure("flow_token_check", purpose, err)
			return err
		}
		if inFlight {
			return ErrFlowInProgress
		}
	}

	switch e.config.Codes.DeliveryPolicy {
	case DeliverBeforeStore:
		code, err := internal.NewCode(e.config.Codes.Digits)
		if err != nil {
			return ErrBackendUnavailable
		}
		if err := e.sender.SendCode(ctx, email, code, kind); err != nil {
			e.metricInc(MetricCodeDeliveryFailure)
			e.emitAudit(ctx, auditEventCodeDeliveryFailed, purpose, false, identity, "", ErrDeliveryFailed, nil)
			return ErrDeliveryFailed
		}
		if err := e.codes.Put(ctx, purpose, identity, code); err != nil {
			e.logBackendFailure("code_store", purpose, err)
			return err
		}
		if err := e.lockouts.Lock(ctx, purpose, identity); err != nil {
			e.logBackendFailure("lockout_arm", purpose, err)
			return err
		}
	default:
		code, err := e.codes.Issue(ctx, purpose, identity, e.config.Codes.Digits)
		if err != nil {
			e.logBackendFailure("code_issue", purpose, err)
			return err
		}
		if err := e.lockouts.Lock(ctx, purpose, identity); err != nil {
			e.logBackendFailure("lockout_arm", purpose, err)
			return err
		}
		// Delivery is attempted last: a failure here leaves the stored code
		// and the armed lockout in place until they expire.
		if err := e.sender.SendCode(ctx, email, code, kind); err != nil {
			e.metricInc(MetricCodeDeliveryFailure)
			e.emitAudit(ctx, auditEventCodeDeliveryFailed, purpose, false, identity, "", ErrDeliveryFailed, nil)
			return ErrDeliveryFailed
		}
	}

	e.metricInc(MetricCodeIssued)
	e.emitAudit(ctx, auditEventCodeIssued, purpose, true, identity, "", nil, nil)
	return nil
}

// verifyCodeAndMint consumes a matching one-time code and swaps it for a
// correlated token wrapped in a signed flow cookie. Minting supersedes any
// previous token for the pair.
func (e *Engine) verifyCodeAndMint(ctx context.Context, purpose Purpose, identity, userID, code string) (*http.Cookie, error) {
	if err := validateCodeShape(code, e.config.Codes.Digits); err != nil {
		e.metricInc(MetricCodeRejected)
		return nil, ErrCodeInvalid
	}

	if err := e.codes.Verify(ctx, purpose, identity, code); err != nil {
		if isUnavailable(err) {
			e.logBackendFailure("code_verify", purpose, err)
			return nil, err
		}
		e.metricInc(MetricCodeRejected)
		e.emitAudit(ctx, auditEventCodeRejected, purpose, false, identity, userID, ErrCodeInvalid, nil)
		return nil, ErrCodeInvalid
	}

	// Single use: the code dies the moment it matches.
	if err := e.codes.Delete(ctx, purpose, identity); err != nil {
		e.logBackendFailure("code_delete", purpose, err)
		return nil, err
	}

	token, err := e.flowTokens.Mint(ctx, purpose, identity)
	if err != nil {
		e.logBackendFailure("flow_token_mint", purpose, err)
		return nil, err
	}

	flowCookie, err := e.cookies.Issue(string(purpose), identity, userID, token)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	e.metricInc(MetricCodeVerified)
	e.metricInc(MetricFlowTokenMinted)
	e.emitAudit(ctx, auditEventCodeVerified, purpose, true, identity, userID, nil, nil)
	return flowCookie, nil
}
