package authflow

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidInput indicates a malformed email, password, or username.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials covers both unknown identity and wrong password,
	// deliberately indistinguishable to prevent account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCodeInvalid covers absent, expired, and mismatched one-time codes.
	ErrCodeInvalid = errors.New("verification code invalid")
	// ErrUnauthenticated indicates a missing, expired, or revoked flow
	// credential: bad cookie, stale correlated token, or dead session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrIdentityNotFound indicates no identity matches the lookup.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrEmailTaken indicates the email already belongs to an identity.
	ErrEmailTaken = errors.New("email already in use")
	// ErrFlowInProgress indicates an unexpired correlated token already
	// exists for this purpose and identity; the flow must be restarted
	// only after it expires.
	ErrFlowInProgress = errors.New("flow already in progress")
	// ErrRateLimited indicates an active lockout window for the pair.
	ErrRateLimited = errors.New("rate limited")
	// ErrRecoveryCodeInvalid covers unknown identity and wrong backup code,
	// deliberately indistinguishable.
	ErrRecoveryCodeInvalid = errors.New("invalid recovery code")
	// ErrPasswordReuse rejects a new password equal to the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrDeliveryFailed indicates the code sender reported a failure.
	ErrDeliveryFailed = errors.New("code delivery failed")
	// ErrBackendUnavailable indicates a secret store, cipher, or hash
	// failure. Always fail closed: an unreachable store is never a pass.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady indicates a missing engine dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrIdentityNotFound)
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// HTTPStatus maps the engine's sentinel errors onto the response taxonomy
// the HTTP collaborator should surface. Unknown errors map to 500 so
// internal details never leak by default.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrPasswordReuse):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrCodeInvalid),
		errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrRecoveryCodeInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrIdentityNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrFlowInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
