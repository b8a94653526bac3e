package cookie

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	minSecretBytes = 32

	defaultTTL        = 10 * time.Minute
	defaultPendingTTL = 15 * time.Minute
	defaultSessionTTL = 7 * 24 * time.Hour

	// PendingEmailName is the plaintext pre-verification convenience cookie.
	PendingEmailName = "af_email_pending"
	// SessionName carries the opaque long-lived session id.
	SessionName = "af_auth_session"
)

var defaultNames = map[string]string{
	"signup":      "af_signup_session",
	"login2fa":    "af_2fa_session",
	"forgotpw":    "af_reset_session",
	"recovery":    "af_recovery_session",
	"advrecovery": "af_adv_recovery_session",
}

var (
	// ErrInvalid covers every verification failure: bad signature, expired,
	// malformed payload, or purpose mismatch. Callers get no finer detail.
	ErrInvalid = errors.New("bearer cookie invalid")
)

// Claims is the tagged payload of a signed flow cookie. Identity is the
// flow's partition key; UserID is set only by purposes that bind a user id
// in addition to an email (advanced recovery). Token points at the
// server-side correlated session token.
type Claims struct {
	Identity string `json:"idk"`
	UserID   string `json:"uid,omitempty"`
	Token    string `json:"tok"`
	Purpose  string `json:"pur"`
	jwt.RegisteredClaims
}

// Config controls signing and cookie attributes.
type Config struct {
	Secret     []byte        // HS256 signing secret, at least 32 bytes
	TTL        time.Duration // signed flow cookie lifetime
	PendingTTL time.Duration // plaintext email-pending cookie lifetime
	SessionTTL time.Duration // long-lived auth session cookie lifetime
	Secure     bool          // set Secure on all cookies (production)
	SameSite   http.SameSite
	Domain     string
	Path       string
	Names      map[string]string // purpose → cookie name overrides
}

// Issuer mints and verifies signed flow cookies and builds the unsigned
// convenience cookies. Immutable after construction.
type Issuer struct {
	config Config
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("cookie secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = defaultPendingTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteStrictMode
	}

	return &Issuer{config: cfg}, nil
}

// Name returns the cookie name used for the given purpose.
func (i *Issuer) Name(purpose string) string {
	if n, ok := i.config.Names[purpose]; ok && n != "" {
		return n
	}
	if n, ok := defaultNames[purpose]; ok {
		return n
	}
	return "af_" + purpose + "_session"
}

// Issue signs a flow payload and wraps it in an HTTP-only cookie scoped to
// the purpose's cookie name.
func (i *Issuer) Issue(purpose, identity, userID, token string) (*http.Cookie, error) {
	now := time.Now()
	claims := Claims{
		Identity: identity,
		UserID:   userID,
		Token:    token,
		Purpose:  purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.Secret)
	if err != nil {
		return nil, err
	}

	return i.build(i.Name(purpose), signed, i.config.TTL), nil
}

// Verify checks signature, expiry, and the purpose tag of a signed cookie
// value. It does NOT check token liveness — the caller must re-validate the
// Token claim against the flow token store.
func (i *Issuer) Verify(purpose, value string) (*Claims, error) {
	if value == "" {
		return nil, ErrInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	parsed, err := parser.ParseWithClaims(value, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return i.config.Secret, nil
	})
	if err != nil {
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.Purpose != purpose || claims.Identity == "" || claims.Token == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}

// Clear returns an expired cookie that removes the purpose's flow cookie.
func (i *Issuer) Clear(purpose string) *http.Cookie {
	return i.expired(i.Name(purpose))
}

// PendingEmail builds the plaintext pre-verification convenience cookie.
// It carries no authority; flows always re-derive state from the store.
func (i *Issuer) PendingEmail(email string) *http.Cookie {
	return i.build(PendingEmailName, email, i.config.PendingTTL)
}

// ClearPendingEmail returns an expired cookie removing the pending cookie.
func (i *Issuer) ClearPendingEmail() *http.Cookie {
	return i.expired(PendingEmailName)
}

// Session wraps an opaque long-lived session id in the auth cookie.
func (i *Issuer) Session(sessionID string) *http.Cookie {
	return i.build(SessionName, sessionID, i.config.SessionTTL)
}

// ClearSession returns an expired cookie removing the auth session cookie.
func (i *Issuer) ClearSession() *http.Cookie {
	return i.expired(SessionName)
}

func (i *Issuer) build(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     i.config.Path,
		Domain:   i.config.Domain,
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   i.config.Secure,
		SameSite: i.config.SameSite,
	}
}

func (i *Issuer) expired(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     i.config.Path,
		Domain:   i.config.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   i.config.Secure,
		SameSite: i.config.SameSite,
	}
}
