package authflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSignUpCodeSingleUse(t *testing.T) {
	engine, _, _, sender, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	if _, err := engine.StartSignUp(ctx, "a@x.com"); err != nil {
		t.Fatalf("StartSignUp failed: %v", err)
	}
	code := sender.lastCode("a@x.com")
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if _, err := engine.VerifySignUpCode(ctx, "a@x.com", wrong); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid for wrong code, got %v", err)
	}

	// The wrong attempt must not have consumed the stored code.
	advance, err := engine.VerifySignUpCode(ctx, "a@x.com", code)
	if err != nil {
		t.Fatalf("VerifySignUpCode with correct code failed: %v", err)
	}
	if advance.Cookie == nil || advance.Cookie.Value == "" {
		t.Fatal("expected signed flow cookie")
	}
	if advance.Cookie.Name != "af_signup_session" {
		t.Fatalf("unexpected cookie name %q", advance.Cookie.Name)
	}

	// The correct attempt did consume it.
	if _, err := engine.VerifySignUpCode(ctx, "a@x.com", code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid on replay, got %v", err)
	}
}

func TestSignUpHappyPath(t *testing.T) {
	engine, _, store, sender, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	if _, err := engine.StartSignUp(ctx, "A@X.com"); err != nil {
		t.Fatalf("StartSignUp failed: %v", err)
	}
	// Normalization maps the mixed-case input to one mailbox.
	advance, err := engine.VerifySignUpCode(ctx, "a@x.com", sender.lastCode("a@x.com"))
	if err != nil {
		t.Fatalf("VerifySignUpCode failed: %v", err)
	}

	result, err := engine.FinishSignUp(ctx, advance.Cookie.Value, FinishSignUpRequest{
		Username: "alice",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("FinishSignUp failed: %v", err)
	}
	if result.Identity.ID == "" || result.Identity.Username != "alice" {
		t.Fatalf("unexpected identity %+v", result.Identity)
	}
	if len(result.RecoveryCodes) != 10 {
		t.Fatalf("expected 10 recovery codes, got %d", len(result.RecoveryCodes))
	}
	if len(result.ClearCookies) == 0 {
		t.Fatal("expected clear cookies at terminal state")
	}

	stored := store.byID[result.Identity.ID]
	if stored == nil {
		t.Fatal("identity not persisted")
	}
	if stored.record.PasswordHash == "correct horse battery" {
		t.Fatal("password stored in plaintext")
	}
	for _, code := range result.RecoveryCodes {
		for _, rec := range stored.codes {
			if string(rec.hash[:]) == code {
				t.Fatal("recovery code stored in plaintext")
			}
		}
	}

	// Terminal state revoked the temp session; the cookie is now inert.
	if _, err := engine.FinishSignUp(ctx, advance.Cookie.Value, FinishSignUpRequest{
		Username: "alice2",
		Password: "correct horse battery",
	}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated on cookie reuse, got %v", err)
	}
}

func TestSignUpRejectsExistingEmail(t *testing.T) {
	engine, mr, _, sender, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	createUser(t, engine, mr, sender, "a@x.com", "alice", "correct horse battery")

	if _, err := engine.StartSignUp(ctx, "a@x.com"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignUpStartLockedOutDoesNotOverwriteCode(t *testing.T) {
	engine, mr, _, sender, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	if _, err := engine.StartSignUp(ctx, "a@x.com"); err != nil {
		t.Fatalf("StartSignUp failed: %v", err)
	}
	storedHash, err := mr.Get("afc:signup:a@x.com")
	if err != nil {
		t.Fatalf("expected stored code hash: %v", err)
	}

	if _, err := engine.StartSignUp(ctx, "a@x.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited within cool-down, got %v", err)
	}

	after, err := mr.Get("afc:signup:a@x.com")
	if err != nil {
		t.Fatalf("code record vanished: %v", err)
	}
	if after != storedHash {
		t.Fatal("locked-out start must not overwrite the existing code")
	}
	if sender.sentCount() != 1 {
		t.Fatalf("expected exactly one delivery, got %d", sender.sentCount())
	}
}

func TestSignUpReentryBlockedWhileTokenLive(t *testing.T) {
	engine, mr, _, sender, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	if _, err := engine.StartSignUp(ctx, "a@x.com"); err != nil {
		t.Fatalf("StartSignUp failed: %v", err)
	}
	if _, err := engine.VerifySignUpCode(ctx, "a@x.com", sender.lastCode("a@x.com")); err != nil {
		t.Fatalf("VerifySignUpCode failed: %v", err)
	}

	// Past the lockout but with the correlated token still live.
	mr.FastForward(90 * time.Second)

	if _, err := engine.StartSignUp(ctx, "a@x.com"); !errors.Is(err, ErrFlowInProgress) {
		t.Fatalf("expected ErrFlowInProgress, got %v", err)
	}
}

func TestSupersededSignUpTokenFailsFinish(t *testing.T) {
	engine, _, _, sender, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	if _, err := engine.StartSignUp(ctx, "a@x.com"); err != nil {
		t.Fatalf("StartSignUp failed: %v", err)
	}
	advance, err := engine.VerifySignUpCode(ctx, "a@x.com", sender.lastCode("a@x.com"))
	if err != nil {
		t.Fatalf("VerifySignUpCode failed: %v", err)
	}

	// A later mint for the same pair supersedes the cookie's token.
	if _, err := engine.flowTokens.Mint(ctx, PurposeSignUp, "a@x.com"); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if _, err := engine.FinishSignUp(ctx, advance.Cookie.Value, FinishSignUpRequest{
		Username: "alice",
		Password: "correct horse battery",
	}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for superseded token, got %v", err)
	}
}

func TestSignUpDeliveryFailureStoreFirstPolicy(t *testing.T) {
	engine, mr, _, sender, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	sender.setFail(true)
	if _, err := engine.StartSignUp(ctx, "a@x.com"); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	// Store-before-deliver leaves both records behind on delivery failure.
	if !mr.Exists("afc:signup:a@x.com") {
		t.Fatal("expected stored code despite delivery failure")
	}
	if !mr.Exists("afl:signup:a@x.com") {
		t.Fatal("expected armed lockout despite delivery failure")
	}

	sender.setFail(false)
	if _, err := engine.StartSignUp(ctx, "a@x.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected lockout to block the retry, got %v", err)
	}
}

func TestSignUpDeliveryFailureDeliverFirstPolicy(t *testing.T) {
	mrCfg := testConfig()
	mrCfg.Codes.DeliveryPolicy = DeliverBeforeStore

	engine, mr, _, sender, done := newTestEngineWithConfig(t, mrCfg)
	defer done()
	ctx := context.Background()

	sender.setFail(true)
	if _, err := engine.StartSignUp(ctx, "a@x.com"); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	// Deliver-before-store leaves nothing behind, so a retry is immediate.
	if mr.Exists("afc:signup:a@x.com") {
		t.Fatal("expected no stored code after delivery failure")
	}
	if mr.Exists("afl:signup:a@x.com") {
		t.Fatal("expected no lockout after delivery failure")
	}

	sender.setFail(false)
	if _, err := engine.StartSignUp(ctx, "a@x.com"); err != nil {
		t.Fatalf("expected immediate retry to succeed, got %v", err)
	}
}

func TestFinishSignUpValidatesInput(t *testing.T) {
	engine, _, _, sender, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	if _, err := engine.StartSignUp(ctx, "a@x.com"); err != nil {
		t.Fatalf("StartSignUp failed: %v", err)
	}
	advance, err := engine.VerifySignUpCode(ctx, "a@x.com", sender.lastCode("a@x.com"))
	if err != nil {
		t.Fatalf("VerifySignUpCode failed: %v", err)
	}

	if _, err := engine.FinishSignUp(ctx, advance.Cookie.Value, FinishSignUpRequest{
		Username: "a!", Password: "correct horse battery",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad username, got %v", err)
	}
	if _, err := engine.FinishSignUp(ctx, advance.Cookie.Value, FinishSignUpRequest{
		Username: "alice", Password: "short",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short password, got %v", err)
	}
}

func TestStartSignUpRejectsMalformedEmail(t *testing.T) {
	engine, _, _, _, done := newTestEngine(t)
	defer done()

	if _, err := engine.StartSignUp(context.Background(), "not-an-email"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
