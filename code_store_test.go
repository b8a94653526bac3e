package authflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestCodeStoreIssueAndVerify(t *testing.T) {
	mr, rdb, done := newTestRedis(t)
	defer done()
	ctx := context.Background()

	store := newCodeStore(rdb, 300*time.Second)

	code, err := store.Issue(ctx, PurposeSignUp, "a@x.com", 6)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	// Only the hash hits redis.
	stored, err := mr.Get("afc:signup:a@x.com")
	if err != nil {
		t.Fatalf("expected stored record: %v", err)
	}
	if stored == code {
		t.Fatal("code stored in plaintext")
	}

	if err := store.Verify(ctx, PurposeSignUp, "a@x.com", code); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	// Verify is a pure read.
	if err := store.Verify(ctx, PurposeSignUp, "a@x.com", code); err != nil {
		t.Fatalf("second Verify failed: %v", err)
	}

	if err := store.Verify(ctx, PurposeSignUp, "a@x.com", "999999"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid for mismatch, got %v", err)
	}
	// Codes are purpose-scoped.
	if err := store.Verify(ctx, PurposeLogin2FA, "a@x.com", code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid across purposes, got %v", err)
	}
}

func TestCodeStoreDeleteAndExpiry(t *testing.T) {
	mr, rdb, done := newTestRedis(t)
	defer done()
	ctx := context.Background()

	store := newCodeStore(rdb, 300*time.Second)

	code, err := store.Issue(ctx, PurposeSignUp, "a@x.com", 6)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := store.Delete(ctx, PurposeSignUp, "a@x.com"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Verify(ctx, PurposeSignUp, "a@x.com", code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid after delete, got %v", err)
	}
	// Deleting the absent record is not an error.
	if err := store.Delete(ctx, PurposeSignUp, "a@x.com"); err != nil {
		t.Fatalf("idempotent Delete failed: %v", err)
	}

	code, err = store.Issue(ctx, PurposeSignUp, "a@x.com", 6)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	mr.FastForward(301 * time.Second)
	if err := store.Verify(ctx, PurposeSignUp, "a@x.com", code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected expired code indistinguishable from absent, got %v", err)
	}
}

func TestCodeStoreReissueOverwrites(t *testing.T) {
	_, rdb, done := newTestRedis(t)
	defer done()
	ctx := context.Background()

	store := newCodeStore(rdb, 300*time.Second)

	first, err := store.Issue(ctx, PurposeSignUp, "a@x.com", 6)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	second, err := store.Issue(ctx, PurposeSignUp, "a@x.com", 6)
	if err != nil {
		t.Fatalf("reissue failed: %v", err)
	}

	if first != second {
		if err := store.Verify(ctx, PurposeSignUp, "a@x.com", first); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("expected first code invalidated by reissue, got %v", err)
		}
	}
	if err := store.Verify(ctx, PurposeSignUp, "a@x.com", second); err != nil {
		t.Fatalf("second code must verify: %v", err)
	}
}

func TestCodeStoreFailsClosedWhenRedisDown(t *testing.T) {
	mr, rdb, done := newTestRedis(t)
	defer done()
	ctx := context.Background()

	store := newCodeStore(rdb, 300*time.Second)

	code, err := store.Issue(ctx, PurposeSignUp, "a@x.com", 6)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	mr.Close()

	if err := store.Verify(ctx, PurposeSignUp, "a@x.com", code); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable with store down, got %v", err)
	}
	if _, err := store.Issue(ctx, PurposeSignUp, "a@x.com", 6); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable on issue, got %v", err)
	}
}
