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

const flowTokenKeyPrefix = "aft"

// flowTokenStore holds correlated session tokens: one live token per
// (purpose, identity), stored hashed. The plaintext travels only inside the
// signed cookie; presenting it later is the proof that the verification step
// and the completion step belong to the same caller.
type flowTokenStore struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

func newFlowTokenStore(redisClient redis.UniversalClient, ttl time.Duration) *flowTokenStore {
	return &flowTokenStore{redis: redisClient, ttl: ttl}
}

func (s *flowTokenStore) key(purpose Purpose, identity string) string {
	return flowTokenKeyPrefix + ":" + string(purpose) + ":" + identity
}

// Exists reports whether the pair has a live token. Used by flow starts to
// reject re-entry while a flow is mid-flight.
func (s *flowTokenStore) Exists(ctx context.Context, purpose Purpose, identity string) (bool, error) {
	err := s.redis.Get(ctx, s.key(purpose, identity)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return true, nil
}

// Mint replaces any existing token for the pair with a fresh one and
// returns the plaintext token. The delete and the set are two steps, not a
// transaction; a concurrent Validate between them sees no token and fails,
// which is the safe direction.
func (s *flowTokenStore) Mint(ctx context.Context, purpose Purpose, identity string) (string, error) {
	key := s.key(purpose, identity)
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	secret, err := internal.NewFlowSecret()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	hash := internal.HashSecret(secret[:])
	if err := s.redis.Set(ctx, key, hash[:], s.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return internal.EncodeFlowSecret(secret), nil
}

// Validate checks that the presented token is the live token for the pair.
// A superseded, expired, or revoked token fails identically.
func (s *flowTokenStore) Validate(ctx context.Context, purpose Purpose, identity, token string) error {
	secret, err := internal.DecodeFlowSecret(token)
	if err != nil {
		return ErrUnauthenticated
	}

	stored, err := s.redis.Get(ctx, s.key(purpose, identity)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	hash := internal.HashSecret(secret[:])
	if subtle.ConstantTimeCompare(stored, hash[:]) != 1 {
		return ErrUnauthenticated
	}
	return nil
}

// Revoke removes the pair's token, making every cookie that embeds it
// inert. Revoking an absent token is not an error.
func (s *flowTokenStore) Revoke(ctx context.Context, purpose Purpose, identity string) error {
	if err := s.redis.Del(ctx, s.key(purpose, identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
