package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Config holds connection and resilience settings for the Redis-backed
// store.
type Config struct {
	Addr     string
	Password string
	DB       int

	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
	RetryAttempts    int // retries after the first attempt
	RetryDelay       time.Duration

	MaxIdle     int
	IdleTimeout time.Duration
}

// DefaultConfig returns the connection settings used when nothing is
// configured.
func DefaultConfig() Config {
	return Config{
		Addr:             "localhost:6379",
		ConnectTimeout:   3 * time.Second,
		OperationTimeout: 2 * time.Second,
		RetryAttempts:    2,
		RetryDelay:       500 * time.Millisecond,
		MaxIdle:          8,
		IdleTimeout:      5 * time.Minute,
	}
}

// Resilient is a Store backed by Redis hashes with bounded retries and
// an in-process fallback. When the retry budget is exhausted the store
// degrades to the fallback so synchronization keeps working for
// single-process deployments; cross-process consistency is lost in that
// mode, which is a documented limitation rather than a defect.
type Resilient struct {
	cfg      Config
	pool     *redis.Pool
	fallback *Memory

	mu       sync.RWMutex
	degraded bool
}

// NewResilient builds the store and probes the backend once with the
// configured retry budget. An unreachable backend is not fatal: the
// store starts degraded and all operations land in the fallback.
func NewResilient(cfg Config) *Resilient {
	pool := &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		IdleTimeout: cfg.IdleTimeout,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", cfg.Addr,
				redis.DialPassword(cfg.Password),
				redis.DialDatabase(cfg.DB),
				redis.DialConnectTimeout(cfg.ConnectTimeout),
				redis.DialReadTimeout(cfg.OperationTimeout),
				redis.DialWriteTimeout(cfg.OperationTimeout),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	s := &Resilient{
		cfg:      cfg,
		pool:     pool,
		fallback: NewMemory(clockwork.NewRealClock()),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout+time.Duration(cfg.RetryAttempts+1)*cfg.RetryDelay+cfg.ConnectTimeout)
	defer cancel()
	if _, err := s.do(ctx, "PING"); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable, store starting in degraded mode")
	} else {
		log.Info().Str("addr", cfg.Addr).Msg("connected to redis")
	}
	return s
}

func (s *Resilient) GetFields(ctx context.Context, key string, fields []string) (map[string]string, error) {
	if s.isDegraded() {
		return s.fallback.GetFields(ctx, key, fields)
	}

	args := redis.Args{}.Add(key).AddFlat(fields)
	reply, err := s.do(ctx, "HMGET", args...)
	if err != nil {
		return s.fallback.GetFields(ctx, key, fields)
	}

	values, err := redis.Values(reply, nil)
	if err != nil {
		return nil, fmt.Errorf("hmget %s: %w", key, err)
	}
	result := make(map[string]string)
	for i, v := range values {
		if v == nil || i >= len(fields) {
			continue
		}
		str, err := redis.String(v, nil)
		if err != nil {
			return nil, fmt.Errorf("hmget %s field %s: %w", key, fields[i], err)
		}
		result[fields[i]] = str
	}
	return result, nil
}

func (s *Resilient) SetField(ctx context.Context, key, field, value string) error {
	return s.SetFields(ctx, key, map[string]string{field: value})
}

func (s *Resilient) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if s.isDegraded() {
		return s.fallback.SetFields(ctx, key, fields)
	}

	args := redis.Args{}.Add(key).AddFlat(fields)
	if _, err := s.do(ctx, "HSET", args...); err != nil {
		return s.fallback.SetFields(ctx, key, fields)
	}
	return nil
}

func (s *Resilient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if s.isDegraded() {
		return s.fallback.Expire(ctx, key, ttl)
	}
	if _, err := s.do(ctx, "EXPIRE", key, int(ttl.Seconds())); err != nil {
		return s.fallback.Expire(ctx, key, ttl)
	}
	return nil
}

func (s *Resilient) Delete(ctx context.Context, key string) error {
	if s.isDegraded() {
		return s.fallback.Delete(ctx, key)
	}
	if _, err := s.do(ctx, "DEL", key); err != nil {
		return s.fallback.Delete(ctx, key)
	}
	return nil
}

func (s *Resilient) Ping(ctx context.Context) error {
	if s.isDegraded() {
		return s.fallback.Ping(ctx)
	}
	_, err := s.do(ctx, "PING")
	return err
}

func (s *Resilient) Disconnect() error {
	return s.pool.Close()
}

func (s *Resilient) Status() Status {
	return Status{
		Connected:    !s.isDegraded(),
		Backend:      s.backend(),
		FallbackKeys: s.fallback.KeyCount(),
	}
}

func (s *Resilient) backend() string {
	if s.isDegraded() {
		return BackendMemory
	}
	return BackendRedis
}

func (s *Resilient) isDegraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

func (s *Resilient) markDegraded(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return
	}
	s.degraded = true
	log.Warn().Err(err).Msg("retry budget exhausted, store degraded to in-memory fallback")
}

// do runs one command against Redis with the configured per-operation
// timeout, retrying with a fixed backoff. Exhausting the budget flips
// the store into degraded mode and returns the last error; callers then
// route the operation to the fallback.
func (s *Resilient) do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	var lastErr error
	attempts := s.cfg.RetryAttempts + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				s.markDegraded(ctx.Err())
				return nil, ctx.Err()
			case <-time.After(s.cfg.RetryDelay):
			}
		}

		reply, err := s.doOnce(ctx, cmd, args...)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		log.Debug().Err(err).Str("cmd", cmd).Int("attempt", attempt+1).Msg("redis operation failed")
	}

	s.markDegraded(lastErr)
	return nil, lastErr
}

func (s *Resilient) doOnce(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	reply, err := redis.DoWithTimeout(conn, s.cfg.OperationTimeout, cmd, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	return reply, nil
}
