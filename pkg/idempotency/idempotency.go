// Package idempotency remembers the result of requests carrying an
// Idempotency-Key header so that retries do not repeat side effects.
package idempotency

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// Header is the request header carrying the client supplied key.
const Header = "Idempotency-Key"

// MaxKeyLength bounds accepted keys.
const MaxKeyLength = 255

const (
	keyPrefix     = "storefront:idempotency:"
	pending       = "pending"
	claimAttempts = 2
)

var (
	// ErrInProgress is returned when another request holding the same key
	// has not finished yet.
	ErrInProgress = errors.New("request with the same idempotency key is in progress")
	// ErrInvalidKey is returned for empty or oversized keys.
	ErrInvalidKey = errors.New("invalid idempotency key")
)

// Client is the subset of the Redis client used by Store.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store keeps idempotency keys in Redis with a TTL.
type Store struct {
	client Client
	ttl    time.Duration
}

// NewStore returns a Store remembering keys for ttl.
func NewStore(client Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Claim reserves key for the caller. When the key was already completed it
// returns the remembered id and claimed=false.
func (s *Store) Claim(ctx context.Context, key string) (id int64, claimed bool, err error) {
	if key == "" || len(key) > MaxKeyLength {
		return 0, false, ErrInvalidKey
	}

	// A key can expire or be released between SETNX and GET.
	for range claimAttempts {
		ok, err := s.client.SetNX(ctx, keyPrefix+key, pending, s.ttl).Result()
		if err != nil {
			return 0, false, errors.Wrap(err, "claim idempotency key")
		}
		if ok {
			return 0, true, nil
		}

		v, err := s.client.Get(ctx, keyPrefix+key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			return 0, false, errors.Wrap(err, "get idempotency key")
		case v == pending:
			return 0, false, ErrInProgress
		}

		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false, errors.Wrapf(err, "parse idempotency value %q", v)
		}
		return id, false, nil
	}
	return 0, false, ErrInProgress
}

// Complete stores the id produced for a claimed key.
func (s *Store) Complete(ctx context.Context, key string, id int64) error {
	if err := s.client.Set(ctx, keyPrefix+key, strconv.FormatInt(id, 10), s.ttl).Err(); err != nil {
		return errors.Wrap(err, "complete idempotency key")
	}
	return nil
}

// Release drops a claim whose request failed so that it can be retried.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "release idempotency key")
	}
	return nil
}
