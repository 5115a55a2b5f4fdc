package rewrite

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/integrity"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
	"github.com/matzehuels/lockmirror/pkg/observability"
	"github.com/matzehuels/lockmirror/pkg/registry"
)

// ManifestSource looks up the manifest of one package version.
// ok is false when the package exists but the version does not.
type ManifestSource interface {
	Manifest(ctx context.Context, registry, name, version string) (manifest *registry.PackageManifest, ok bool, err error)
}

// IntegrityComputer hashes a tarball by URL.
type IntegrityComputer interface {
	Compute(ctx context.Context, url string) (string, error)
}

// Skipped records an entry left unmodified.
type Skipped struct {
	Path    string
	Name    string
	Version string
	Reason  string
}

// Report summarizes a write-mode run.
type Report struct {
	Rewritten             int // entries pointed at the target registry
	Local                 int // entries without a resolved URL
	IntegrityFromRegistry int
	IntegrityFromShasum   int
	IntegrityComputed     int
	Skipped               []Skipped // sorted by path
}

// Rewriter rewrites dependency trees. It holds no per-run state and may be
// reused, provided the ManifestSource is.
type Rewriter struct {
	manifests ManifestSource
	integrity IntegrityComputer
	logger    *log.Logger
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the logger for per-entry debug output.
func WithLogger(l *log.Logger) Option {
	return func(r *Rewriter) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Rewriter.
func New(manifests ManifestSource, computer IntegrityComputer, opts ...Option) *Rewriter {
	r := &Rewriter{
		manifests: manifests,
		integrity: computer,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite returns a rewritten deep copy of deps; the input is never
// modified. On error no tree is returned.
func (r *Rewriter) Rewrite(ctx context.Context, deps map[string]*lockfile.Dependency, reg string) (map[string]*lockfile.Dependency, *Report, error) {
	out := lockfile.CloneDependencies(deps)
	rec := &recorder{}

	if err := r.rewriteLevel(ctx, "", out, reg, rec); err != nil {
		return nil, nil, err
	}
	return out, rec.report(), nil
}

func (r *Rewriter) rewriteLevel(ctx context.Context, parent string, deps map[string]*lockfile.Dependency, reg string, rec *recorder) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, dep := range deps {
		if dep == nil {
			continue
		}
		g.Go(func() error {
			return r.rewriteNode(ctx, lockfile.ChildPath(parent, name), name, dep, reg, rec)
		})
	}
	return g.Wait()
}

// rewriteNode runs the entry's own rewrite and its children side by side.
// The entry goroutine touches only resolved and integrity, the children
// goroutine only the dependencies map.
func (r *Rewriter) rewriteNode(ctx context.Context, path, name string, dep *lockfile.Dependency, reg string, rec *recorder) error {
	g, ctx := errgroup.WithContext(ctx)
	if dep.HasResolved() {
		g.Go(func() error {
			return r.rewriteEntry(ctx, path, name, dep, reg, rec)
		})
	} else {
		rec.local()
	}
	if len(dep.Dependencies) > 0 {
		g.Go(func() error {
			return r.rewriteLevel(ctx, path, dep.Dependencies, reg, rec)
		})
	}
	return g.Wait()
}

func (r *Rewriter) rewriteEntry(ctx context.Context, path, name string, dep *lockfile.Dependency, reg string, rec *recorder) error {
	manifest, ok, err := r.manifests.Manifest(ctx, reg, name, dep.Version)
	switch {
	case errors.IsFatal(err):
		return err
	case err != nil:
		reason := "package not found in registry"
		if !errors.Is(err, errors.ErrCodeNotFound) {
			reason = errors.UserMessage(err)
		}
		r.skip(ctx, rec, Skipped{Path: path, Name: name, Version: dep.Version, Reason: reason})
		return nil
	case !ok:
		r.skip(ctx, rec, Skipped{Path: path, Name: name, Version: dep.Version, Reason: "version not found in registry"})
		return nil
	case manifest.Dist.Tarball == "":
		r.skip(ctx, rec, Skipped{Path: path, Name: name, Version: dep.Version, Reason: "registry publishes no tarball"})
		return nil
	}

	sum, src, err := r.integrityOf(ctx, manifest.Dist)
	if err != nil {
		return err
	}
	dep.Resolved = manifest.Dist.Tarball
	dep.Integrity = sum
	rec.rewritten(src)

	r.logger.Debug("rewrote entry", "path", path, "version", dep.Version, "integrity", src)
	return nil
}

type integritySource string

const (
	fromRegistry integritySource = "registry"
	fromShasum   integritySource = "shasum"
	computed     integritySource = "computed"
)

// integrityOf prefers a well-formed registry integrity, then the shasum,
// then a digest of the downloaded tarball.
func (r *Rewriter) integrityOf(ctx context.Context, dist registry.Dist) (string, integritySource, error) {
	if wellFormed(dist.Integrity) {
		return dist.Integrity, fromRegistry, nil
	}
	if dist.Shasum != "" {
		if sum, err := integrity.FromShasum(dist.Shasum); err == nil {
			return sum, fromShasum, nil
		}
	}
	sum, err := r.integrity.Compute(ctx, dist.Tarball)
	if err != nil {
		return "", "", err
	}
	return sum, computed, nil
}

// wellFormed reports whether every hash of an integrity string parses.
func wellFormed(s string) bool {
	hashes := strings.Fields(s)
	for _, h := range hashes {
		if _, _, err := integrity.Parse(h); err != nil {
			return false
		}
	}
	return len(hashes) > 0
}

func (r *Rewriter) skip(ctx context.Context, rec *recorder, s Skipped) {
	rec.skip(s)
	observability.Run().OnEntrySkipped(ctx, s.Path, s.Name, s.Version)
	r.logger.Debug("skipped entry", "path", s.Path, "version", s.Version, "reason", s.Reason)
}

// recorder collects results from concurrent workers.
type recorder struct {
	mu sync.Mutex
	r  Report
}

func (rec *recorder) local() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.r.Local++
}

func (rec *recorder) skip(s Skipped) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.r.Skipped = append(rec.r.Skipped, s)
}

func (rec *recorder) rewritten(src integritySource) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.r.Rewritten++
	switch src {
	case fromRegistry:
		rec.r.IntegrityFromRegistry++
	case fromShasum:
		rec.r.IntegrityFromShasum++
	case computed:
		rec.r.IntegrityComputed++
	}
}

func (rec *recorder) report() *Report {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rep := rec.r
	sort.Slice(rep.Skipped, func(i, j int) bool { return rep.Skipped[i].Path < rep.Skipped[j].Path })
	return &rep
}
