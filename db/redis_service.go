package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"gradebook-server-go/logger"
)

const (
	lockPrefix = "gradebook:lock:" // String prefix: gradebook:lock:{spreadsheet}:{range} -> holder token
)

// ErrLockHeld is returned when another run holds the lock
var ErrLockHeld = errors.New("lock is held by another run")

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker guards a destination range so only one run writes it at a time
type Locker interface {
	// Acquire takes the lock for name and returns a release func
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// RedisLock implements Locker with SET NX PX and a compare-and-delete release
type RedisLock struct {
	Client *redis.Client
	TTL    time.Duration
	log    *logger.Logger
}

// NewRedisLock creates a RedisLock
func NewRedisLock(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLock {
	return &RedisLock{
		Client: client,
		TTL:    ttl,
		log:    log.WithModule("lock"),
	}
}

// Helper to generate the lock key for a destination
func getLockKey(name string) string {
	return lockPrefix + name
}

// Acquire takes the lock or returns ErrLockHeld
func (l *RedisLock) Acquire(ctx context.Context, name string) (func(), error) {
	key := getLockKey(name)
	token := uuid.NewString()

	ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	l.log.Debug("Lock acquired", "key", key, "ttl", l.TTL)

	release := func() {
		// The caller's context may already be done; release on a fresh one
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.Client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.log.WithError(err).Warn("Failed to release lock", "key", key)
			return
		}
		l.log.Debug("Lock released", "key", key)
	}
	return release, nil
}

// NoopLock is used when Redis is not configured
type NoopLock struct{}

// Acquire always succeeds
func (NoopLock) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// RedisOptions configures InitializeRedisClient
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// InitializeRedisClient creates a Redis client and pings it
func InitializeRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}
