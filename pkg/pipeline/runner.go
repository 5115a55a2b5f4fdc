package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/lockmirror/pkg/cache"
	"github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/httputil"
	"github.com/matzehuels/lockmirror/pkg/integrity"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
	"github.com/matzehuels/lockmirror/pkg/observability"
	"github.com/matzehuels/lockmirror/pkg/registry"
	"github.com/matzehuels/lockmirror/pkg/rewrite"
)

// Runner executes update and check runs. Every run gets a fresh manifest
// cache; the registry client and its admission gate are shared by all runs,
// so concurrent runs together stay within Options.Concurrency requests.
// A Runner is safe for concurrent use.
type Runner struct {
	Logger *log.Logger

	opts   Options
	client *registry.Client
}

// NewRunner validates opts and creates a runner.
// If logger is nil, log.Default() is used.
func NewRunner(opts Options, logger *log.Logger) (*Runner, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	gate := httputil.DefaultGate()
	if opts.Concurrency != gate.Quota() {
		gate = httputil.NewGate(opts.Concurrency)
	}

	clientOpts := []registry.Option{
		registry.WithGate(gate),
		registry.WithAttempts(opts.Attempts),
		registry.WithUserAgent(opts.UserAgent),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, registry.WithHTTPClient(opts.HTTPClient))
	} else {
		clientOpts = append(clientOpts, registry.WithHTTPClient(&http.Client{Timeout: opts.Timeout}))
	}

	return &Runner{
		Logger: logger,
		opts:   opts,
		client: registry.NewClient(clientOpts...),
	}, nil
}

// Options returns the validated options.
func (r *Runner) Options() Options { return r.opts }

// UpdateLockfile rewrites every registry-sourced entry of the lockfile in
// data to point at reg (Options.Registry when empty) and returns the new
// file. Input of an unsupported lockfileVersion is returned as is.
//
// Entries reg does not know are left unchanged and listed in the report.
// Any other failure aborts the run and no bytes are returned.
func (r *Runner) UpdateLockfile(ctx context.Context, data []byte, reg string) (out []byte, report *Report, err error) {
	reg, err = r.registry(reg)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	logger := r.Logger.With("run", runID)
	hooks := observability.Run()
	hooks.OnRunStart(ctx, ModeUpdate, reg)

	entries := 0
	defer func() {
		hooks.OnRunComplete(ctx, ModeUpdate, reg, entries, time.Since(start), err)
	}()

	version, err := lockfile.PeekVersion(data)
	if err != nil {
		return nil, nil, err
	}
	report = &Report{RunID: runID, LockfileVersion: version}
	if version != lockfile.SupportedVersion {
		logger.Warn("unsupported lockfile version, leaving it unchanged", "lockfileVersion", version)
		report.Duration = time.Since(start)
		return data, report, nil
	}

	lf, err := lockfile.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	entries = lockfile.Count(lf.Dependencies)

	logger.Info("rewriting lockfile", "registry", reg, "entries", entries)

	manifests := cache.NewManifests(r.client)
	rw := rewrite.New(manifests,
		integrity.NewComputer(r.client, r.opts.algorithm),
		rewrite.WithLogger(logger))

	deps, rep, err := rw.Rewrite(ctx, lf.Dependencies, reg)
	if err != nil {
		return nil, nil, err
	}

	updated := lf.Clone()
	updated.Dependencies = deps
	out, err = updated.Marshal()
	if err != nil {
		return nil, nil, err
	}

	report.Report = *rep
	report.Processed = true
	report.Entries = entries
	report.Changed = !bytes.Equal(out, data)
	report.Cache = manifests.Stats()
	report.Duration = time.Since(start)

	logger.Info("rewrote lockfile",
		"rewritten", rep.Rewritten,
		"skipped", len(rep.Skipped),
		"computed", rep.IntegrityComputed,
		"packages", report.Cache.Entries,
		"duration", report.Duration)

	return out, report, nil
}

// CheckLockfile reports whether every registry-sourced entry of the
// lockfile in data already points at reg (Options.Registry when empty).
// It makes no network requests. Input of an unsupported lockfileVersion
// passes.
func (r *Runner) CheckLockfile(ctx context.Context, data []byte, reg string) (result *CheckResult, err error) {
	reg, err = r.registry(reg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	logger := r.Logger.With("run", runID)
	hooks := observability.Run()
	hooks.OnRunStart(ctx, ModeCheck, reg)

	entries := 0
	defer func() {
		hooks.OnRunComplete(ctx, ModeCheck, reg, entries, time.Since(start), err)
	}()

	version, err := lockfile.PeekVersion(data)
	if err != nil {
		return nil, err
	}
	if version != lockfile.SupportedVersion {
		logger.Warn("unsupported lockfile version, nothing to check", "lockfileVersion", version)
		return &CheckResult{
			CheckResult:     &rewrite.CheckResult{OK: true},
			RunID:           runID,
			LockfileVersion: version,
		}, nil
	}

	lf, err := lockfile.Parse(data)
	if err != nil {
		return nil, err
	}
	entries = lockfile.Count(lf.Dependencies)

	res := rewrite.Check(lf.Dependencies, reg)
	logger.Debug("checked lockfile",
		"registry", reg,
		"checked", res.Checked,
		"mismatches", len(res.Mismatches))

	return &CheckResult{
		CheckResult:     res,
		RunID:           runID,
		LockfileVersion: version,
		Processed:       true,
	}, nil
}

func (r *Runner) registry(reg string) (string, error) {
	if reg == "" {
		return r.opts.Registry, nil
	}
	if err := errors.ValidateRegistryURL(reg); err != nil {
		return "", err
	}
	return reg, nil
}
