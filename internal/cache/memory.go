package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// Memory — backend в памяти процесса. Значения хранятся в JSON, поэтому
// Get всегда возвращает независимую копию.
type Memory struct {
	clock clock.Clock

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory создаёт пустой Memory. Если clk равен nil, используется системное время.
func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.System{}
	}
	return &Memory{clock: clk, entries: make(map[string]memoryEntry)}
}

// Get декодирует живое значение в dst.
func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	const op = "cache.Memory.Get"
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !m.clock.Now().Before(e.expires) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение на ttl.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	const op = "cache.Memory.Set"
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expires: m.clock.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Delete удаляет ключи.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

// Sweep удаляет просроченные записи и возвращает их число.
func (m *Memory) Sweep() int {
	now := m.clock.Now()
	removed := 0
	m.mu.Lock()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
			removed++
		}
	}
	m.mu.Unlock()
	return removed
}

// Len возвращает число записей, включая ещё не удалённые просроченные.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// RunSweeper вызывает Sweep каждые interval до отмены ctx.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
