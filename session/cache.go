package session

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Cache is the device-local key-value storage a diner client persists its
// session identity in. It is never authoritative: entries are always
// re-verified against the store and invalidated on any disagreement.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// Cache key layout, per restaurant slug.
func tokenKey(slug, table string) string { return fmt.Sprintf("session_%s_%s", slug, table) }
func activeKey(slug string) string       { return fmt.Sprintf("active_session_%s", slug) }
func nameKey(slug string) string         { return fmt.Sprintf("customer_name_%s", slug) }
func phoneKey(slug string) string        { return fmt.Sprintf("customer_phone_%s", slug) }

// activePointer is the "most recent" entry: the token last accepted and
// the table it belongs to.
type activePointer struct {
	Token       string `json:"token"`
	TableNumber string `json:"table"`
}

func encodePointer(p activePointer) string {
	data, _ := json.Marshal(p)
	return string(data)
}

func decodePointer(raw string) (activePointer, bool) {
	var p activePointer
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return activePointer{}, false
	}
	return p, p.Token != ""
}

// MemoryCache is an in-process Cache for embedded clients and tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (m *MemoryCache) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *MemoryCache) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

func (m *MemoryCache) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}
