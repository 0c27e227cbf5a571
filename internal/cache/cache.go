// Package cache реализует кэш пользователей маркетплейса.
//
// Cache хранит значения в Backend (память процесса или redis) с фиксированным
// TTL и ведёт индекс всех когда‑либо запрошенных ключей, чтобы ClearAll мог
// удалить их без перебора хранилища. Индекс — надмножество живых ключей.
package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/software-marketplace/internal/config"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/metrics"
)

// DefaultTTL — время жизни записи, если не задано иное.
const DefaultTTL = time.Hour

// Backend — хранилище значений кэша. Значения сериализуются в JSON.
type Backend interface {
	// Get декодирует значение по ключу в dst. found=false, если ключа нет.
	Get(ctx context.Context, key string, dst any) (found bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Cache — кэш с индексом ключей.
type Cache struct {
	backend Backend
	ttl     time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	keys map[string]struct{}
}

// New создаёт Cache поверх backend. m может быть nil.
func New(backend Backend, ttl time.Duration, log *slog.Logger, m *metrics.Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		backend: backend,
		ttl:     ttl,
		log:     log,
		metrics: m,
		keys:    make(map[string]struct{}),
	}
}

// Open создаёт Cache с backend, выбранным в конфиге. Для памяти запускается
// фоновая очистка просроченных записей, живущая до отмены ctx.
func Open(ctx context.Context, cfg config.Cache, clk clock.Clock, log *slog.Logger, m *metrics.Metrics) (*Cache, error) {
	const op = "cache.Open"
	switch cfg.Driver {
	case "redis":
		r, err := NewRedis(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return New(r, cfg.TTL, log, m), nil
	case "memory", "":
		mem := NewMemory(clk)
		if cfg.SweepInterval > 0 {
			go mem.RunSweeper(ctx, cfg.SweepInterval)
		}
		return New(mem, cfg.TTL, log, m), nil
	default:
		return nil, fmt.Errorf("%s: unknown driver %q", op, cfg.Driver)
	}
}

// GetOrSet возвращает значение по ключу либо вычисляет его через populate.
//
// Ключ попадает в индекс при каждом вызове. nil‑результат populate не
// сохраняется. Ошибки backend логируются и не прерывают поиск: значение
// берётся из populate. При одновременных промахах populate может вызваться
// несколько раз, сохраняется последняя запись.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, populate func(ctx context.Context) (*T, error)) (*T, error) {
	const op = "cache.GetOrSet"
	c.register(key)

	var cached T
	found, err := c.backend.Get(ctx, key, &cached)
	switch {
	case err != nil:
		c.backendFailed(op, key, err)
	case found:
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return &cached, nil
	}
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	value, err := populate(ctx)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	if err := c.backend.Set(ctx, key, value, c.ttl); err != nil {
		c.backendFailed(op, key, err)
	}
	return value, nil
}

// Invalidate удаляет запись по ключу. Отсутствие ключа ошибкой не считается.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	const op = "cache.Invalidate"
	if len(keys) == 0 {
		return nil
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearAll удаляет все ключи из индекса и очищает его.
func (c *Cache) ClearAll(ctx context.Context) error {
	const op = "cache.ClearAll"
	c.mu.Lock()
	keys := make([]string, 0, len(c.keys))
	for k := range c.keys {
		keys = append(keys, k)
	}
	c.keys = make(map[string]struct{})
	c.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		c.mu.Lock()
		for _, k := range keys {
			c.keys[k] = struct{}{}
		}
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}
	c.log.Info("cache cleared", slog.Int("keys", len(keys)))
	return nil
}

// IndexedKeys возвращает число ключей в индексе.
func (c *Cache) IndexedKeys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// Close освобождает ресурсы backend, если они есть.
func (c *Cache) Close() error {
	if closer, ok := c.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Cache) register(key string) {
	c.mu.Lock()
	c.keys[key] = struct{}{}
	c.mu.Unlock()
}

func (c *Cache) backendFailed(op, key string, err error) {
	if c.metrics != nil {
		c.metrics.CacheErrors.Inc()
	}
	c.log.Warn("cache backend failed", sl.Op(op), slog.String("key", key), sl.Err(err))
}
