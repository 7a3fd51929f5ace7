package explorer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
)

// Cache stores raw explorer responses keyed by query URL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, body []byte) error
}

// MemoryCache is an in-process response cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCache creates an empty memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.entries[key]
	return body, ok, nil
}

func (m *MemoryCache) Put(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = body
	return nil
}

// Len returns the number of cached responses.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// DiskCache keeps zstd-compressed responses in a directory, one file per
// query named by the SHA-256 of the key.
type DiskCache struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewDiskCache creates dir if needed.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &DiskCache{dir: dir, enc: enc, dec: dec}, nil
}

func (d *DiskCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:])+".json.zst")
}

func (d *DiskCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	body, err := d.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompress %s: %w", d.path(key), err)
	}
	return body, true, nil
}

// Put writes to a temp file and renames it into place.
func (d *DiskCache) Put(_ context.Context, key string, body []byte) error {
	target := d.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, d.enc.EncodeAll(body, nil), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Close releases the codec resources.
func (d *DiskCache) Close() error {
	d.dec.Close()
	return d.enc.Close()
}

// RedisCache shares responses between runs and machines through redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to a redis URL such as redis://localhost:6379/0
// and pings it. A zero ttl keeps entries forever.
func NewRedisCache(ctx context.Context, rawURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "explorer:"}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (r *RedisCache) Put(ctx context.Context, key string, body []byte) error {
	return r.client.Set(ctx, r.prefix+key, body, r.ttl).Err()
}

// Close closes the redis client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
