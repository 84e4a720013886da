package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sitaraServer/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// RedisClient is the global Redis client instance. Nil means Redis is
	// disabled and every helper below degrades to a no-op.
	RedisClient *redis.Client
)

// InitRedis initializes the Redis client connection
func InitRedis(cfg config.RedisConfig) error {
	if cfg.URL == "" {
		zap.S().Warn("⚠️  REDIS_URL not set, running without cache and settlement locks")
		return nil
	}

	zap.S().Info("🔌 Connecting to Redis...")

	opts := &redis.Options{
		Addr:         cfg.URL,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  config.RedisDialTimeout,
		ReadTimeout:  config.RedisReadTimeout,
		WriteTimeout: config.RedisWriteTimeout,
		PoolSize:     config.RedisPoolSize,
		MinIdleConns: config.RedisMinIdleConns,
	}
	// redis:// and rediss:// URLs carry their own credentials
	if strings.Contains(cfg.URL, "://") {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		parsed.DialTimeout = opts.DialTimeout
		parsed.ReadTimeout = opts.ReadTimeout
		parsed.WriteTimeout = opts.WriteTimeout
		parsed.PoolSize = opts.PoolSize
		parsed.MinIdleConns = opts.MinIdleConns
		opts = parsed
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), config.RedisDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	RedisClient = client
	zap.S().Infof("✅ Redis connected successfully - Addr: %s", opts.Addr)
	return nil
}

// CloseRedis closes the Redis connection
func CloseRedis() error {
	if RedisClient != nil {
		zap.S().Info("🔌 Closing Redis connection...")
		err := RedisClient.Close()
		RedisClient = nil
		return err
	}
	return nil
}

/* =========================
   SETTLEMENT LOCK
   Redis Key: settle:{bazaarId}:{date}:{session} -> owner token
========================= */

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireSettleLock takes the per-declaration lock. It returns
// ErrSettlementLocked when another declare holds the key. When Redis is
// unavailable the returned release is a no-op and the database row lock
// is the only guard.
func AcquireSettleLock(ctx context.Context, bazaarID, date, session string) (func(), error) {
	noop := func() {}
	if RedisClient == nil {
		return noop, nil
	}

	key := fmt.Sprintf(config.RedisSettleLockKey, bazaarID, date, session)
	token := uuid.NewString()

	ok, err := RedisClient.SetNX(ctx, key, token, config.SettleLockTTL).Result()
	if err != nil {
		zap.S().Warnf("⚠️  Settle lock unavailable for %s, using row lock only: %v", key, err)
		return noop, nil
	}
	if !ok {
		return nil, ErrSettlementLocked
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), config.RedisWriteTimeout)
		defer cancel()
		if err := releaseLockScript.Run(releaseCtx, RedisClient, []string{key}, token).Err(); err != nil {
			zap.S().Warnf("⚠️  Failed to release settle lock %s: %v", key, err)
		}
	}
	return release, nil
}

/* =========================
   JSON CACHE
========================= */

// GetCachedJSON loads key into dst. It reports false on a miss or when
// Redis is unavailable.
func GetCachedJSON(ctx context.Context, key string, dst any) bool {
	if RedisClient == nil {
		return false
	}

	data, err := RedisClient.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		zap.S().Warnf("⚠️  Cache read failed for %s: %v", key, err)
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		zap.S().Warnf("⚠️  Cache entry %s is corrupt: %v", key, err)
		return false
	}
	return true
}

// SetCachedJSON stores v under key with the given TTL. Failures are logged.
func SetCachedJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if RedisClient == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		zap.S().Warnf("⚠️  Failed to marshal cache entry %s: %v", key, err)
		return
	}

	if err := RedisClient.Set(ctx, key, data, ttl).Err(); err != nil {
		zap.S().Warnf("⚠️  Cache write failed for %s: %v", key, err)
	}
}

// InvalidateCache drops the given keys.
func InvalidateCache(ctx context.Context, keys ...string) {
	if RedisClient == nil || len(keys) == 0 {
		return
	}
	if err := RedisClient.Del(ctx, keys...).Err(); err != nil {
		zap.S().Warnf("⚠️  Cache invalidation failed for %v: %v", keys, err)
	}
}

/* =========================
   LOGIN FAILURES
   Redis Key: login:fail:{username} -> counter, expires after the window
========================= */

// LoginLocked reports whether username has hit the failure limit.
func LoginLocked(ctx context.Context, username string) bool {
	if RedisClient == nil {
		return false
	}

	key := fmt.Sprintf(config.RedisLoginFailKey, strings.ToLower(username))
	count, err := RedisClient.Get(ctx, key).Int()
	if err != nil {
		return false
	}
	return count >= config.MaxLoginFailures
}

// RecordLoginFailure bumps the failure counter and returns the new count.
func RecordLoginFailure(ctx context.Context, username string) int {
	if RedisClient == nil {
		return 0
	}

	key := fmt.Sprintf(config.RedisLoginFailKey, strings.ToLower(username))
	pipe := RedisClient.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, config.LoginFailWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		zap.S().Warnf("⚠️  Failed to record login failure: %v", err)
		return 0
	}
	return int(incr.Val())
}

// ClearLoginFailures resets the counter after a successful login.
func ClearLoginFailures(ctx context.Context, username string) {
	if RedisClient == nil {
		return
	}
	key := fmt.Sprintf(config.RedisLoginFailKey, strings.ToLower(username))
	RedisClient.Del(ctx, key)
}

/* =========================
   HEALTH CHECK
========================= */

// HealthCheckRedis performs a Redis health check
func HealthCheckRedis(ctx context.Context) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis disabled")
	}
	return RedisClient.Ping(ctx).Err()
}
