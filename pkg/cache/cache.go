// Package cache provides the per-run manifest cache.
//
// A [Manifests] cache maps a package name under a registry to the package
// document fetched for it, so the same package appearing at many positions
// of a dependency tree is fetched once per run. Nothing is persisted: the
// cache lives exactly as long as the run that created it.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/lockmirror/pkg/observability"
	"github.com/matzehuels/lockmirror/pkg/registry"
)

// Fetcher retrieves a package document from a registry.
type Fetcher interface {
	FetchPackageInfo(ctx context.Context, registry, name string) (*registry.PackageInfo, error)
}

// Stats counts cache lookups.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Manifests is a concurrency-safe read-mostly map from (registry, package
// name) to its package document. Lookups take a read lock; a miss fetches
// without holding any lock and inserts under the write lock. Concurrent
// misses for one key share a single fetch. Failed fetches are not cached.
type Manifests struct {
	fetcher Fetcher

	mu      sync.RWMutex
	entries map[string]*registry.PackageInfo

	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// NewManifests creates an empty cache backed by fetcher.
func NewManifests(fetcher Fetcher) *Manifests {
	return &Manifests{
		fetcher: fetcher,
		entries: make(map[string]*registry.PackageInfo),
	}
}

// GetOrFetch returns the cached document for name under reg, fetching and
// inserting it on a miss.
func (m *Manifests) GetOrFetch(ctx context.Context, reg, name string) (*registry.PackageInfo, error) {
	k := key(reg, name)
	hooks := observability.Cache()

	if info, ok := m.get(k); ok {
		m.hits.Add(1)
		hooks.OnCacheHit(ctx, name)
		return info, nil
	}
	m.misses.Add(1)
	hooks.OnCacheMiss(ctx, name)

	v, err, _ := m.group.Do(k, func() (any, error) {
		if info, ok := m.get(k); ok {
			return info, nil
		}
		info, err := m.fetcher.FetchPackageInfo(ctx, reg, name)
		if err != nil {
			return nil, err
		}
		info = m.put(k, info)
		hooks.OnCacheSet(ctx, name, len(info.Versions))
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*registry.PackageInfo), nil
}

// Manifest looks up the manifest of name@version, fetching the package
// document if needed. ok is false when the package exists but the version
// does not.
func (m *Manifests) Manifest(ctx context.Context, reg, name, version string) (manifest *registry.PackageManifest, ok bool, err error) {
	info, err := m.GetOrFetch(ctx, reg, name)
	if err != nil {
		return nil, false, err
	}
	manifest, ok = info.Manifest(version)
	return manifest, ok, nil
}

// Len returns the number of cached packages.
func (m *Manifests) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats returns lookup counters.
func (m *Manifests) Stats() Stats {
	return Stats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Entries: m.Len(),
	}
}

func (m *Manifests) get(k string) (*registry.PackageInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.entries[k]
	return info, ok
}

// put inserts info unless another value got there first, and returns the
// value that is now cached.
func (m *Manifests) put(k string, info *registry.PackageInfo) *registry.PackageInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[k]; ok {
		return existing
	}
	m.entries[k] = info
	return info
}

func key(reg, name string) string {
	return strings.TrimRight(reg, "/") + "\x00" + name
}
