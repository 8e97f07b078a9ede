package cache

import (
	"bufio"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	client     *redis.Client
	clientOnce sync.Once
	clientErr  error
)

// ErrLockTimeout is returned when a dashboard lock is still held after the wait
var ErrLockTimeout = errors.New("timeout waiting for dashboard lock")

// lockOwner marks locks taken by this process so that a lock which expired
// and was re-taken elsewhere is never released from here
var lockOwner = uuid.NewString()

// releaseScript deletes a lock only while it still carries our owner token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config holds Redis configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TLS      bool
	TTL      time.Duration
	MutexTTL time.Duration
}

// LoadConfigFromEnv loads Redis configuration from environment variables
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, _ := time.ParseDuration(getEnv("CACHE_TTL", "10m"))
	mutexTTL, _ := time.ParseDuration(getEnv("CACHE_MUTEX_TTL", "5s"))

	return &Config{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     port,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
		TLS:      getEnv("REDIS_TLS_ENABLED", "false") == "true",
		TTL:      ttl,
		MutexTTL: mutexTTL,
	}
}

// Addr returns host:port
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Options converts the configuration to client options
func (c *Config) Options() *redis.Options {
	opts := &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
	if c.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// GetClient returns the shared Redis client, pinging it on first use
func GetClient() (*redis.Client, error) {
	clientOnce.Do(func() {
		client = redis.NewClient(LoadConfigFromEnv().Options())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			clientErr = fmt.Errorf("failed to connect to Redis: %w", err)
		}
	})
	return client, clientErr
}

// Close closes the Redis client
func Close() {
	if client != nil {
		client.Close()
	}
}

// DashboardKey derives the cache key of a dashboard request
func DashboardKey(datasetID, canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return fmt.Sprintf("dashboard:%s:%x", datasetID, sum[:12])
}

// LockKey is the key of the lock guarding a dashboard key
func LockKey(key string) string {
	return "lock:" + key
}

// GetView reads a cached dashboard payload. A miss is (nil, nil).
func GetView(ctx context.Context, key string) ([]byte, error) {
	rdb, err := GetClient()
	if err != nil {
		return nil, err
	}

	data, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

// SetView stores an encoded dashboard payload
func SetView(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	rdb, err := GetClient()
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, data, ttl).Err()
}

// AcquireLock takes the lock of a dashboard key; false means another
// request is already rendering it
func AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	rdb, err := GetClient()
	if err != nil {
		return false, err
	}
	return rdb.SetNX(ctx, LockKey(key), lockOwner, ttl).Result()
}

// ReleaseLock drops the lock of a dashboard key if this process holds it
func ReleaseLock(ctx context.Context, key string) error {
	rdb, err := GetClient()
	if err != nil {
		return err
	}
	return releaseScript.Run(ctx, rdb, []string{LockKey(key)}, lockOwner).Err()
}

// WaitForLock polls until the lock of a dashboard key is gone, then returns
// whatever the holder cached (nil when it cached nothing)
func WaitForLock(ctx context.Context, key string, maxWait time.Duration) ([]byte, error) {
	rdb, err := GetClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		held, err := rdb.Exists(ctx, LockKey(key)).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, err
		}
		if held == 0 {
			return GetView(ctx, key)
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}
}

// HealthCheck pings Redis
func HealthCheck(ctx context.Context) error {
	rdb, err := GetClient()
	if err != nil {
		return err
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// statsFields are the INFO stats counters reported by Stats
var statsFields = []string{"keyspace_hits", "keyspace_misses", "evicted_keys", "expired_keys"}

// Stats reports client pool counters and the server's keyspace counters
func Stats(ctx context.Context) (map[string]interface{}, error) {
	rdb, err := GetClient()
	if err != nil {
		return nil, err
	}

	info, err := rdb.Info(ctx, "stats").Result()
	if err != nil {
		return nil, err
	}

	stats := parseInfo(info, statsFields)
	pool := rdb.PoolStats()
	stats["pool_total_conns"] = pool.TotalConns
	stats["pool_idle_conns"] = pool.IdleConns
	stats["pool_timeouts"] = pool.Timeouts
	return stats, nil
}

// parseInfo extracts integer fields from an INFO reply
func parseInfo(info string, fields []string) map[string]interface{} {
	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		wanted[f] = true
	}

	out := make(map[string]interface{}, len(fields))
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		name, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok || !wanted[name] {
			continue
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			out[name] = n
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
