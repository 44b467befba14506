// Package cache is the short-TTL read cache in front of enriched catalog reads.
//
// Entries live in namespaces: "catalog" for reader-independent data and
// "state:<reader>" for anything that includes a reader's state. Writers
// invalidate whole namespaces; the TTL only bounds staleness if an
// invalidation is ever missed.
package cache

import (
	"context"
	"fmt"
	"log"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/metrics"
)

const NamespaceCatalog = "catalog"

// StateNamespace returns the namespace for reads scoped to one reader.
func StateNamespace(readerID string) string {
	return "state:" + readerID
}

// Cache stores JSON-encodable values. Get decodes into dest and reports whether
// the key was present.
//
// Readers that fill the cache from a store take Generation before loading and
// store with SetAt. Every invalidation bumps the generation, so a value loaded
// before a write committed is dropped instead of outliving the invalidation.
type Cache interface {
	Get(ctx context.Context, namespace, key string, dest any) (bool, error)
	Set(ctx context.Context, namespace, key string, value any) error
	Generation(ctx context.Context) (uint64, error)
	// SetAt stores value only while the generation still equals gen.
	SetAt(ctx context.Context, namespace, key string, value any, gen uint64) error
	InvalidateAll(ctx context.Context, namespace string) error
	// InvalidatePrefix drops every namespace starting with prefix, e.g. "state:".
	InvalidatePrefix(ctx context.Context, prefix string) error
	Flush(ctx context.Context) error
	Close() error
}

// New builds the configured backend.
func New(ctx context.Context, cfg config.Cache, redisCfg config.Redis, m *metrics.Metrics) (Cache, error) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		c, err := NewRedis(ctx, redisCfg, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		log.Printf("Cache: redis at %s (ttl %s)", redisCfg.Addr, cfg.TTL)
		return Instrument(c, m), nil
	case config.CacheBackendMemory, "":
		log.Printf("Cache: in-process LRU (size %d, ttl %s)", cfg.Size, cfg.TTL)
		return Instrument(NewMemory(cfg.Size, cfg.TTL), m), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

type instrumented struct {
	Cache
	metrics *metrics.Metrics
}

// Instrument wraps c so lookups and invalidations are counted.
func Instrument(c Cache, m *metrics.Metrics) Cache {
	if m == nil {
		return c
	}
	return &instrumented{Cache: c, metrics: m}
}

func (i *instrumented) Get(ctx context.Context, namespace, key string, dest any) (bool, error) {
	ok, err := i.Cache.Get(ctx, namespace, key, dest)
	i.metrics.CacheLookup(namespace, ok)
	return ok, err
}

func (i *instrumented) InvalidateAll(ctx context.Context, namespace string) error {
	i.metrics.CacheInvalidation(namespace)
	return i.Cache.InvalidateAll(ctx, namespace)
}
