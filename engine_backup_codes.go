package authflow

import "context"

// GenerateRecoveryCodes replaces the backup code set of a live session's
// user and returns the new plaintext codes. Every previously issued code
// stops working; the plaintext is never persisted.
func (e *Engine) GenerateRecoveryCodes(ctx context.Context, sessionID string) ([]string, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	userID, err := e.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	plaintext, records, err := e.generateRecoveryCodeSet()
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	if err := e.identities.ReplaceRecoveryCodes(ctx, userID, records); err != nil {
		e.logBackendFailure("recovery_codes_replace", PurposeRecovery, err)
		return nil, ErrBackendUnavailable
	}

	e.metricInc(MetricRecoveryCodesGenerated)
	e.emitAudit(ctx, auditEventRecoveryCodesIssued, PurposeRecovery, true, "", userID, nil, nil)

	return plaintext, nil
}
