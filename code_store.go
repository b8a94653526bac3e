package authflow

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/karvelis/authflow/internal"
)

const codeKeyPrefix = "afc"

// codeStore holds hashed one-time codes keyed by (purpose, identity).
// Issuing a new code for a pair overwrites any previous one, so at most one
// code is live per pair at any time.
type codeStore struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

func newCodeStore(redisClient redis.UniversalClient, ttl time.Duration) *codeStore {
	return &codeStore{redis: redisClient, ttl: ttl}
}

func (s *codeStore) key(purpose Purpose, identity string) string {
	return codeKeyPrefix + ":" + string(purpose) + ":" + identity
}

// Issue generates a fresh code, stores its hash with the configured ttl,
// and returns the plaintext for delivery. The plaintext is never persisted.
func (s *codeStore) Issue(ctx context.Context, purpose Purpose, identity string, digits int) (string, error) {
	code, err := internal.NewCode(digits)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := s.Put(ctx, purpose, identity, code); err != nil {
		return "", err
	}
	return code, nil
}

// Put stores the hash of an already-generated code. Split from Issue so the
// deliver-before-store policy can generate, send, then persist.
func (s *codeStore) Put(ctx context.Context, purpose Purpose, identity, code string) error {
	hash := internal.HashSecret([]byte(code))
	if err := s.redis.Set(ctx, s.key(purpose, identity), hash[:], s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Verify compares the presented code against the stored hash. It is a pure
// read: a matching code stays live until the caller deletes it, so the
// orchestrator decides when verification consumes the code.
func (s *codeStore) Verify(ctx context.Context, purpose Purpose, identity, code string) error {
	stored, err := s.redis.Get(ctx, s.key(purpose, identity)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCodeInvalid
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	hash := internal.HashSecret([]byte(code))
	if subtle.ConstantTimeCompare(stored, hash[:]) != 1 {
		return ErrCodeInvalid
	}
	return nil
}

// Delete removes the code for the pair. Absent keys are not an error.
func (s *codeStore) Delete(ctx context.Context, purpose Purpose, identity string) error {
	if err := s.redis.Del(ctx, s.key(purpose, identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
