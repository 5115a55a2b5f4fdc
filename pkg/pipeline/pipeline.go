// Package pipeline provides the two entry points of lockmirror: rewriting a
// lockfile onto a registry mirror, and checking that it already points there.
//
// Both take the raw lockfile bytes, so the same Runner serves the CLI and
// any other caller. The flow of an update is:
//
//  1. Peek at lockfileVersion; anything but version 1 is returned unchanged
//  2. Parse the dependency tree
//  3. Rewrite it against the target registry (see package rewrite)
//  4. Serialize it the way npm does
//
// # Usage
//
//	runner, err := pipeline.NewRunner(pipeline.Options{}, logger)
//	if err != nil {
//	    return err
//	}
//	out, report, err := runner.UpdateLockfile(ctx, data, "https://npm.example.com")
//	if err != nil {
//	    return err // nothing was rewritten
//	}
//	for _, s := range report.Skipped {
//	    logger.Warn("not in registry", "path", s.Path)
//	}
//
// Checking never touches the network:
//
//	res, err := runner.CheckLockfile(ctx, data, "https://npm.example.com")
//	if err == nil && !res.OK {
//	    // res.Mismatches names every offending entry
//	}
package pipeline

import (
	"net/http"
	"time"

	"github.com/matzehuels/lockmirror/pkg/cache"
	"github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/httputil"
	"github.com/matzehuels/lockmirror/pkg/integrity"
	"github.com/matzehuels/lockmirror/pkg/registry"
	"github.com/matzehuels/lockmirror/pkg/rewrite"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Library Callers
// =============================================================================

const (
	// DefaultRegistry is the public npm registry.
	DefaultRegistry = "https://registry.npmjs.org"

	// DefaultConcurrency is the number of registry requests allowed in
	// flight at once, across all runs of a Runner.
	DefaultConcurrency = httputil.DefaultQuota

	// DefaultAttempts is how often a failing request is tried.
	DefaultAttempts = httputil.DefaultAttempts

	// DefaultTimeout bounds one request attempt.
	DefaultTimeout = registry.DefaultTimeout

	// DefaultAlgorithm hashes tarballs the registry publishes no integrity for.
	DefaultAlgorithm = integrity.DefaultAlgorithm
)

// Run modes reported to observability hooks.
const (
	ModeUpdate = "update"
	ModeCheck  = "check"
)

// =============================================================================
// Options - Runner Configuration
// =============================================================================

// Options configures a Runner. Zero values select the defaults above.
type Options struct {
	Registry    string        `json:"registry,omitempty"` // used when a call passes no registry
	Concurrency int           `json:"concurrency,omitempty"`
	Attempts    int           `json:"attempts,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	Algorithm   string        `json:"algorithm,omitempty"`
	UserAgent   string        `json:"user_agent,omitempty"`

	// Runtime options (not serialized)
	HTTPClient *http.Client `json:"-"`

	algorithm integrity.Algorithm
	validated bool
}

// ValidateAndSetDefaults checks the options and fills in defaults.
// It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	if o.Registry == "" {
		o.Registry = DefaultRegistry
	}
	if err := errors.ValidateRegistryURL(o.Registry); err != nil {
		return err
	}

	if o.Concurrency < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "concurrency must be positive, got %d", o.Concurrency)
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Attempts < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "attempts must be positive, got %d", o.Attempts)
	}
	if o.Attempts == 0 {
		o.Attempts = DefaultAttempts
	}
	if o.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "timeout must be positive, got %s", o.Timeout)
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}

	alg, err := integrity.ParseAlgorithm(o.Algorithm)
	if err != nil {
		return err
	}
	o.algorithm = alg
	o.Algorithm = string(alg)

	o.validated = true
	return nil
}

// =============================================================================
// Results
// =============================================================================

// Report describes an update run.
type Report struct {
	rewrite.Report

	RunID           string
	LockfileVersion int
	Processed       bool // false when the lockfile version is not supported
	Entries         int  // entries in the tree, at every depth
	Changed         bool // output differs from input
	Cache           cache.Stats
	Duration        time.Duration
}

// CheckResult is the verdict of a check run.
type CheckResult struct {
	*rewrite.CheckResult

	RunID           string
	LockfileVersion int
	Processed       bool
}
