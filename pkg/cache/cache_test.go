package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/lockmirror/pkg/observability"
	"github.com/matzehuels/lockmirror/pkg/registry"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	delay time.Duration
	err   error
}

func (f *countingFetcher) FetchPackageInfo(ctx context.Context, reg, name string) (*registry.PackageInfo, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &registry.PackageInfo{
		Name: name,
		Versions: map[string]*registry.PackageManifest{
			"1.0.0": {Dist: registry.Dist{Tarball: reg + "/" + name + "/-/" + name + "-1.0.0.tgz"}},
		},
	}, nil
}

func (f *countingFetcher) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func TestGetOrFetchCachesByName(t *testing.T) {
	ctx := context.Background()
	f := &countingFetcher{}
	c := NewManifests(f)

	for range 3 {
		info, err := c.GetOrFetch(ctx, "https://mirror.example.com", "react")
		if err != nil {
			t.Fatalf("GetOrFetch() error: %v", err)
		}
		if info.Name != "react" {
			t.Errorf("Name = %q, want react", info.Name)
		}
	}

	if n := f.count("react"); n != 1 {
		t.Errorf("fetch count = %d, want 1", n)
	}
	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("Stats() = %+v, want 2 hits, 1 miss, 1 entry", stats)
	}
}

func TestGetOrFetchTrailingSlashSharesEntry(t *testing.T) {
	f := &countingFetcher{}
	c := NewManifests(f)

	_, _ = c.GetOrFetch(context.Background(), "https://mirror.example.com", "vue")
	_, _ = c.GetOrFetch(context.Background(), "https://mirror.example.com/", "vue")

	if n := f.count("vue"); n != 1 {
		t.Errorf("fetch count = %d, want 1", n)
	}
}

func TestGetOrFetchConcurrentMissesFetchOnce(t *testing.T) {
	f := &countingFetcher{delay: 20 * time.Millisecond}
	c := NewManifests(f)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrFetch(context.Background(), "https://mirror.example.com", "lodash"); err != nil {
				t.Errorf("GetOrFetch() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := f.count("lodash"); n != 1 {
		t.Errorf("fetch count = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestGetOrFetchErrorsAreNotCached(t *testing.T) {
	boom := errors.New("registry down")
	f := &countingFetcher{err: boom}
	c := NewManifests(f)

	for range 2 {
		if _, err := c.GetOrFetch(context.Background(), "https://mirror.example.com", "chalk"); !errors.Is(err, boom) {
			t.Errorf("GetOrFetch() error = %v, want %v", err, boom)
		}
	}
	if n := f.count("chalk"); n != 2 {
		t.Errorf("fetch count = %d, want 2", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestManifest(t *testing.T) {
	c := NewManifests(&countingFetcher{})

	m, ok, err := c.Manifest(context.Background(), "https://mirror.example.com", "debug", "1.0.0")
	if err != nil || !ok {
		t.Fatalf("Manifest() = %v, %v; want ok", ok, err)
	}
	if m.Dist.Tarball != "https://mirror.example.com/debug/-/debug-1.0.0.tgz" {
		t.Errorf("tarball = %q", m.Dist.Tarball)
	}

	_, ok, err = c.Manifest(context.Background(), "https://mirror.example.com", "debug", "2.0.0")
	if err != nil || ok {
		t.Errorf("Manifest(2.0.0) = %v, %v; want not ok, nil", ok, err)
	}
}

type recordingCacheHooks struct {
	observability.NoopCacheHooks
	hits, misses, sets atomic.Int32
}

func (h *recordingCacheHooks) OnCacheHit(context.Context, string)      { h.hits.Add(1) }
func (h *recordingCacheHooks) OnCacheMiss(context.Context, string)     { h.misses.Add(1) }
func (h *recordingCacheHooks) OnCacheSet(context.Context, string, int) { h.sets.Add(1) }

func TestGetOrFetchEmitsHooks(t *testing.T) {
	hooks := &recordingCacheHooks{}
	observability.SetCacheHooks(hooks)
	defer observability.Reset()

	c := NewManifests(&countingFetcher{})
	_, _ = c.GetOrFetch(context.Background(), "https://mirror.example.com", "ms")
	_, _ = c.GetOrFetch(context.Background(), "https://mirror.example.com", "ms")

	if hooks.misses.Load() != 1 || hooks.sets.Load() != 1 || hooks.hits.Load() != 1 {
		t.Errorf("hooks = %d misses, %d sets, %d hits; want 1 each",
			hooks.misses.Load(), hooks.sets.Load(), hooks.hits.Load())
	}
}
