package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Backend persists whole named collections as JSON documents. Save always
// replaces the stored document.
type Backend interface {
	// Load decodes the collection into v. It reports false when nothing is stored.
	Load(ctx context.Context, name string, v interface{}) (bool, error)
	Save(ctx context.Context, name string, v interface{}) error
	Close() error
}

// FileBackend keeps one <name>.json file per collection under dir.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.dir, name+".json")
}

func (b *FileBackend) Load(_ context.Context, name string, v interface{}) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (b *FileBackend) Save(_ context.Context, name string, v interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	target := b.path(name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s temp: %w", name, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }

// RedisBackend stores each collection as one JSON string under prefix+name.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func NewRedisBackend(ctx context.Context, opts RedisOptions) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisBackend{client: client, prefix: opts.Prefix}, nil
}

func (b *RedisBackend) Load(ctx context.Context, name string, v interface{}) (bool, error) {
	data, err := b.client.Get(ctx, b.prefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (b *RedisBackend) Save(ctx context.Context, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := b.client.Set(ctx, b.prefix+name, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// MemoryBackend keeps encoded collections in memory. It counts writes per
// collection so callers can assert how often a collection was persisted.
type MemoryBackend struct {
	mu     sync.Mutex
	docs   map[string][]byte
	writes map[string]int
	failOn map[string]error
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs:   map[string][]byte{},
		writes: map[string]int{},
		failOn: map[string]error{},
	}
}

func (b *MemoryBackend) Load(_ context.Context, name string, v interface{}) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.docs[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (b *MemoryBackend) Save(_ context.Context, name string, v interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failOn[name]; err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	b.docs[name] = data
	b.writes[name]++
	return nil
}

// Writes returns how many times name was saved.
func (b *MemoryBackend) Writes(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes[name]
}

// SetFailure makes every later Save of name return err. A nil err clears it.
func (b *MemoryBackend) SetFailure(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failOn, name)
		return
	}
	b.failOn[name] = err
}

func (b *MemoryBackend) Close() error { return nil }
