package authflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/karvelis/authflow/cipher"
	"github.com/karvelis/authflow/cookie"
	internalaudit "github.com/karvelis/authflow/internal/audit"
	"github.com/karvelis/authflow/password"
	"github.com/karvelis/authflow/session"
)

// Engine orchestrates the verification flows over the ephemeral stores and
// the persistent collaborators. Immutable after Build; safe for concurrent
// use.
type Engine struct {
	config       Config
	emailCipher  *cipher.EmailCipher
	passwordHash *password.Hasher
	cookies      *cookie.Issuer
	codes        *codeStore
	lockouts     *lockoutGuard
	flowTokens   *flowTokenStore
	sessions     *session.Store
	identities   IdentityStore
	sender       CodeSender
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	logger       *zap.Logger
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.SnapshotNow()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// logBackendFailure records a store or crypto failure. The caller still
// returns the error; the log is for operators, not control flow.
func (e *Engine) logBackendFailure(op string, purpose Purpose, err error) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn("authflow backend failure",
		zap.String("op", op),
		zap.String("purpose", string(purpose)),
		zap.Error(err),
	)
}

// enumerationDelay pads the unknown-identity path so its duration matches
// the real-identity path closely enough to resist timing probes.
func (e *Engine) enumerationDelay(ctx context.Context) {
	d := e.config.Security.EnumerationSafeDelay
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// lookupByEmail normalizes, encrypts, and resolves an email to an identity.
// The ok result distinguishes "no such identity" from backend failure so
// callers can stay enumeration-safe.
func (e *Engine) lookupByEmail(ctx context.Context, email string) (IdentityRecord, bool, error) {
	ciphertext, tag, err := e.emailCipher.Encrypt(email)
	if err != nil {
		return IdentityRecord{}, false, ErrBackendUnavailable
	}

	record, err := e.identities.GetByEncryptedEmail(ctx, ciphertext, tag)
	if err != nil {
		if isNotFound(err) {
			return IdentityRecord{}, false, nil
		}
		return IdentityRecord{}, false, ErrBackendUnavailable
	}
	return record, true, nil
}

// checkFlowCookie verifies the signed cookie for purpose and re-validates
// the embedded correlated token against the store. The signature alone is
// never enough; only the store proves the token is still live.
func (e *Engine) checkFlowCookie(ctx context.Context, purpose Purpose, cookieValue string) (*cookie.Claims, error) {
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricFlowSessionCheckLatency, time.Since(start))
		}()
	}

	claims, err := e.cookies.Verify(string(purpose), cookieValue)
	if err != nil {
		e.metricInc(MetricFlowTokenRejected)
		return nil, ErrUnauthenticated
	}

	// The advanced recovery credential is partitioned under the account id,
	// not the proposed address; the store lookup must match where the token
	// was minted.
	partition := claims.Identity
	if purpose == PurposeAdvancedRecovery {
		partition = claims.UserID
	}
	if err := e.flowTokens.Validate(ctx, purpose, partition, claims.Token); err != nil {
		if isUnavailable(err) {
			e.logBackendFailure("flow_token_validate", purpose, err)
			return nil, err
		}
		e.metricInc(MetricFlowTokenRejected)
		return nil, ErrUnauthenticated
	}

	return claims, nil
}
