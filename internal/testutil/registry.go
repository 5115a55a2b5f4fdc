// Package testutil provides an in-process npm registry for tests.
package testutil

import (
	"crypto/sha1"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Registry is a fake npm registry serving package documents and tarballs.
// It counts requests per package so tests can assert cache behavior.
type Registry struct {
	server *httptest.Server

	mu       sync.Mutex
	packages map[string]map[string]*version
	metadata map[string]int
	tarballs map[string]int
	failures map[string]int
}

type version struct {
	tarball   []byte
	integrity bool
	shasum    bool
	published string
}

// PublishOption controls which hashes the package document advertises.
type PublishOption func(*version)

// WithoutIntegrity omits dist.integrity from the document.
func WithoutIntegrity() PublishOption {
	return func(v *version) { v.integrity = false }
}

// WithIntegrity advertises s as dist.integrity instead of the real digest.
func WithIntegrity(s string) PublishOption {
	return func(v *version) { v.published = s }
}

// WithoutShasum omits dist.shasum from the document.
func WithoutShasum() PublishOption {
	return func(v *version) { v.shasum = false }
}

// NewRegistry starts a registry that is shut down when t completes.
func NewRegistry(t testing.TB) *Registry {
	t.Helper()

	r := &Registry{
		packages: make(map[string]map[string]*version),
		metadata: make(map[string]int),
		tarballs: make(map[string]int),
		failures: make(map[string]int),
	}

	mux := chi.NewRouter()
	mux.Get("/*", r.serve)
	r.server = httptest.NewServer(mux)
	t.Cleanup(r.server.Close)
	return r
}

// URL returns the registry base URL.
func (r *Registry) URL() string { return r.server.URL }

// Client returns an HTTP client for the registry.
func (r *Registry) Client() *http.Client { return r.server.Client() }

// Publish adds name@ver with the given tarball content.
func (r *Registry) Publish(name, ver string, tarball []byte, opts ...PublishOption) {
	v := &version{tarball: tarball, integrity: true, shasum: true}
	for _, opt := range opts {
		opt(v)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.packages[name] == nil {
		r.packages[name] = make(map[string]*version)
	}
	r.packages[name][ver] = v
}

// FailNext makes the next n requests for name's document answer 500.
func (r *Registry) FailNext(name string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[name] = n
}

// MetadataRequests returns how often name's document was requested.
func (r *Registry) MetadataRequests(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metadata[name]
}

// TarballRequests returns how many tarball downloads were served for name.
func (r *Registry) TarballRequests(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tarballs[name]
}

// TarballURL returns the download URL of name@ver.
func (r *Registry) TarballURL(name, ver string) string {
	return r.server.URL + "/" + name + "/-/" + path.Base(name) + "-" + ver + ".tgz"
}

// Integrity returns the sha512 integrity published for content.
func Integrity(content []byte) string {
	sum := sha512.Sum512(content)
	return "sha512-" + base64.StdEncoding.EncodeToString(sum[:])
}

// SHA1Integrity returns the sha1 integrity of content.
func SHA1Integrity(content []byte) string {
	sum := sha1.Sum(content)
	return "sha1-" + base64.StdEncoding.EncodeToString(sum[:])
}

func (r *Registry) serve(w http.ResponseWriter, req *http.Request) {
	p, err := url.PathUnescape(chi.URLParam(req, "*"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if name, file, ok := strings.Cut(p, "/-/"); ok {
		r.serveTarball(w, name, file)
		return
	}
	r.serveDocument(w, p)
}

func (r *Registry) serveDocument(w http.ResponseWriter, name string) {
	r.mu.Lock()
	r.metadata[name]++
	if r.failures[name] > 0 {
		r.failures[name]--
		r.mu.Unlock()
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}
	versions, ok := r.packages[name]
	if !ok {
		r.mu.Unlock()
		http.Error(w, `{"error":"Not found"}`, http.StatusNotFound)
		return
	}

	type dist struct {
		Tarball   string `json:"tarball"`
		Integrity string `json:"integrity,omitempty"`
		Shasum    string `json:"shasum,omitempty"`
	}
	type manifest struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Dist    dist   `json:"dist"`
	}
	doc := struct {
		Name     string              `json:"name"`
		Versions map[string]manifest `json:"versions"`
	}{Name: name, Versions: make(map[string]manifest, len(versions))}

	for ver, v := range versions {
		m := manifest{Name: name, Version: ver, Dist: dist{Tarball: r.TarballURL(name, ver)}}
		switch {
		case v.published != "":
			m.Dist.Integrity = v.published
		case v.integrity:
			m.Dist.Integrity = Integrity(v.tarball)
		}
		if v.shasum {
			sum := sha1.Sum(v.tarball)
			m.Dist.Shasum = hex.EncodeToString(sum[:])
		}
		doc.Versions[ver] = m
	}
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (r *Registry) serveTarball(w http.ResponseWriter, name, file string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := path.Base(name) + "-"
	if strings.HasPrefix(file, prefix) && strings.HasSuffix(file, ".tgz") {
		ver := strings.TrimSuffix(strings.TrimPrefix(file, prefix), ".tgz")
		if v, ok := r.packages[name][ver]; ok {
			r.tarballs[name]++
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(v.tarball)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}
