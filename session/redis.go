package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldUsername     = "username"
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldSavedAt      = "saved_at"
)

// RedisStore keeps the credential set in a Redis hash scoped to a single
// client instance. The three credential entries are written together inside
// MULTI/EXEC, so readers never observe a mix of old and new values.
//
//	Key layout: <prefix>:<clientID>
type RedisStore struct {
	redis    redis.UniversalClient
	prefix   string
	clientID string
	ttl      time.Duration
}

// NewRedisStore creates a [RedisStore]. ttl bounds how long an idle credential
// set survives in Redis; zero keeps it until Clear.
func NewRedisStore(client redis.UniversalClient, prefix, clientID string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "gac"
	}
	return &RedisStore{
		redis:    client,
		prefix:   prefix,
		clientID: clientID,
		ttl:      ttl,
	}
}

func (s *RedisStore) key() string {
	return s.prefix + ":" + s.clientID
}

// Load reads the credential hash. A missing or partial hash is reported as
// absent.
//
//	Performance: 1 Redis HGETALL.
func (s *RedisStore) Load(ctx context.Context) (*Session, error) {
	values, err := s.redis.HGetAll(ctx, s.key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	sess := &Session{
		Username:     values[fieldUsername],
		AccessToken:  values[fieldAccessToken],
		RefreshToken: values[fieldRefreshToken],
	}
	if !sess.Complete() {
		return nil, nil
	}
	if raw := values[fieldSavedAt]; raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			sess.SavedAt = time.Unix(unix, 0)
		}
	}

	return sess, nil
}

// Save replaces the credential hash in one transaction.
//
//	Performance: 1 MULTI/EXEC round trip (DEL + HSET, EXPIRE when a TTL is set).
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if err := validateForSave(sess); err != nil {
		return err
	}

	key := s.key()
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldUsername, sess.Username,
			fieldAccessToken, sess.AccessToken,
			fieldRefreshToken, sess.RefreshToken,
			fieldSavedAt, strconv.FormatInt(time.Now().Unix(), 10),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Clear deletes the credential hash. Deleting a missing key succeeds.
//
//	Performance: 1 Redis DEL.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
