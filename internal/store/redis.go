package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	Prefix   string `yaml:"prefix" default:"coinsentry"`
}

// Redis keeps each document in a hash, so Merge maps to HSET.
type Redis struct {
	client *redis.Client
	prefix string
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		PoolTimeout: 30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, prefix: cfg.Prefix}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (Document, error) {
	vals, err := r.client.HGetAll(ctx, r.wrapKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	doc := make(Document, len(vals))
	for k, v := range vals {
		doc[k] = []byte(v)
	}
	return doc, nil
}

func (r *Redis) Merge(ctx context.Context, key string, fields Document) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, string(v))
	}
	return r.client.HSet(ctx, r.wrapKey(key), args...).Err()
}

// Lock takes a SETNX lock on key. The returned func releases it only if
// this holder still owns it.
func (r *Redis) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lockKey := r.wrapKey("lock:" + key)
	token := newToken()
	ok, err := r.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s held by another writer", key)
	}
	return func() {
		// Detached from ctx so a cancelled scan still releases its lock.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		unlockScript.Run(unlockCtx, r.client, []string{lockKey}, token)
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) wrapKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func newToken() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
