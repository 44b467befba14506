package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory keeps one expiring LRU per namespace. Values are stored encoded so a
// caller can never mutate a cached entry through a shared pointer.
type Memory struct {
	mu         sync.Mutex
	size       int
	ttl        time.Duration
	namespaces map[string]*expirable.LRU[string, []byte]

	// guard orders generation-checked sets against invalidations. Taken
	// before mu.
	guard sync.Mutex
	gen   uint64
}

func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{
		size:       size,
		ttl:        ttl,
		namespaces: make(map[string]*expirable.LRU[string, []byte]),
	}
}

func (m *Memory) lru(namespace string, create bool) *expirable.LRU[string, []byte] {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.namespaces[namespace]
	if !ok && create {
		l = expirable.NewLRU[string, []byte](m.size, nil, m.ttl)
		m.namespaces[namespace] = l
	}
	return l
}

func (m *Memory) Get(_ context.Context, namespace, key string, dest any) (bool, error) {
	l := m.lru(namespace, false)
	if l == nil {
		return false, nil
	}
	data, ok := l.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		l.Remove(key)
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, namespace, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.lru(namespace, true).Add(key, data)
	return nil
}

func (m *Memory) Generation(_ context.Context) (uint64, error) {
	m.guard.Lock()
	defer m.guard.Unlock()
	return m.gen, nil
}

func (m *Memory) SetAt(_ context.Context, namespace, key string, value any, gen uint64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.guard.Lock()
	defer m.guard.Unlock()
	if m.gen != gen {
		return nil
	}
	m.lru(namespace, true).Add(key, data)
	return nil
}

// InvalidateAll empties the namespace. The LRU itself is kept: each one owns an
// expiry goroutine, so namespaces are reused rather than recreated.
func (m *Memory) InvalidateAll(_ context.Context, namespace string) error {
	m.guard.Lock()
	defer m.guard.Unlock()
	m.gen++
	if l := m.lru(namespace, false); l != nil {
		l.Purge()
	}
	return nil
}

func (m *Memory) InvalidatePrefix(_ context.Context, prefix string) error {
	m.guard.Lock()
	defer m.guard.Unlock()
	m.gen++

	m.mu.Lock()
	var matched []*expirable.LRU[string, []byte]
	for ns, l := range m.namespaces {
		if strings.HasPrefix(ns, prefix) {
			matched = append(matched, l)
		}
	}
	m.mu.Unlock()
	for _, l := range matched {
		l.Purge()
	}
	return nil
}

func (m *Memory) Flush(ctx context.Context) error {
	return m.InvalidatePrefix(ctx, "")
}

func (m *Memory) Close() error {
	return nil
}
