package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/biomarker-assessment-engine/internal/domain"
)

const keyPrefix = "biomarker:session:"

// maxUpdateAttempts bounds optimistic retries when a watched session changes.
const maxUpdateAttempts = 10

// RedisStore keeps sessions in Redis with SET ... EX. Calls go through a
// circuit breaker so a Redis outage fails fast instead of stalling requests.
type RedisStore struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	logger  *logrus.Logger
}

// NewRedisStore connects to cfg.RedisURL and verifies the connection.
func NewRedisStore(cfg domain.CacheConfig, ttl time.Duration, logger *logrus.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.PoolTimeout > 0 {
		opts.PoolTimeout = cfg.PoolTimeout
	}
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl, cfg.BreakerTrips, cfg.BreakerTimeout, logger), nil
}

// NewRedisStoreWithClient wraps an existing client. The breaker opens after
// trips consecutive failures and half-opens after timeout.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration, trips uint32, timeout time.Duration, logger *logrus.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if trips == 0 {
		trips = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "session-redis",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil) || errors.Is(err, redis.TxFailedErr) || errors.Is(err, domain.ErrSessionNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RedisStore{client: client, breaker: breaker, ttl: ttl, logger: logger}
}

// Save writes the session with the store TTL.
func (r *RedisStore) Save(ctx context.Context, s *domain.ReviewSession) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, keyPrefix+s.ID, data, r.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get loads a session or returns domain.ErrSessionNotFound.
func (r *RedisStore) Get(ctx context.Context, id string) (*domain.ReviewSession, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Get(ctx, keyPrefix+id).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s domain.ReviewSession
	if err := json.Unmarshal(result.([]byte), &s); err != nil {
		// corrupt entries are dropped rather than served
		r.client.Del(ctx, keyPrefix+id)
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return &s, nil
}

// Update applies fn inside a WATCH/MULTI transaction and retries when another
// writer changed the session first.
func (r *RedisStore) Update(ctx context.Context, id string, fn func(*domain.ReviewSession) error) (*domain.ReviewSession, error) {
	key := keyPrefix + id
	var updated *domain.ReviewSession

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		if err != nil {
			return err
		}
		var s domain.ReviewSession
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		if err := fn(&s); err != nil {
			return err
		}
		s.ID = id
		out, err := json.Marshal(&s)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, r.ttl)
			return nil
		})
		if err == nil {
			updated = &s
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		_, err := r.breaker.Execute(func() (interface{}, error) {
			return nil, r.client.Watch(ctx, txf, key)
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update session: %w", err)
		}
		return updated, nil
	}
	return nil, fmt.Errorf("failed to update session %s: too much contention", id)
}

// Delete removes a session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Del(ctx, keyPrefix+id).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// BreakerState reports the circuit breaker state for health checks.
func (r *RedisStore) BreakerState() gobreaker.State {
	return r.breaker.State()
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
