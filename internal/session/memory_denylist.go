package session

import (
	"context"
	"sync"
	"time"
)

// MemoryDenylist is the single-process variant used with in-memory storage.
type MemoryDenylist struct {
	mu  sync.RWMutex
	m   map[string]time.Time
	now func() time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{
		m:   make(map[string]time.Time),
		now: time.Now,
	}
}

func (d *MemoryDenylist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}

	d.mu.Lock()
	d.m[jti] = d.now().Add(ttl)
	d.mu.Unlock()

	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	now := d.now()
	d.mu.RLock()
	exp, ok := d.m[jti]
	d.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if now.After(exp) {
		d.mu.Lock()
		delete(d.m, jti)
		d.mu.Unlock()
		return false, nil
	}

	return true, nil
}
