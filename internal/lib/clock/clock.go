// Package clock абстрагирует текущее время, чтобы сервисы и тесты
// могли подменять "сейчас".
package clock

import (
	"sync"
	"time"
)

// Clock возвращает текущее время в UTC.
type Clock interface {
	Now() time.Time
}

// System — системные часы.
type System struct{}

// Now возвращает time.Now() в UTC.
func (System) Now() time.Time { return time.Now().UTC() }

// Fake — управляемые часы для тестов.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake создаёт часы, показывающие now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now возвращает установленное время.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance сдвигает часы на d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set устанавливает время.
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}
