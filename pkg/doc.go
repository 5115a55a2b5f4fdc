// Package pkg provides the libraries behind lockmirror, which points npm
// lockfiles at a registry mirror.
//
// # Overview
//
// lockmirror rewrites the resolved URL and integrity of every registry
// entry in a package-lock.json (lockfileVersion 1) so that installs
// download from another registry. The pkg directory is organized by layer:
//
//  1. [lockfile] - Lockfile model (order-preserving parse and serialize)
//  2. [registry] - npm registry client (retry, admission gate)
//  3. [cache] - Per-run manifest cache
//  4. [integrity] - Subresource-integrity hashing and conversion
//  5. [rewrite] - Concurrent tree rewrite and registry check
//  6. [pipeline] - Boundary operations over raw lockfile bytes
//
// Supporting packages: [errors] (coded errors), [httputil] (retry and
// admission gate), [observability] (hooks) and [buildinfo].
//
// # Architecture
//
// The data flow of an update:
//
//	package-lock.json bytes
//	         ↓
//	    [lockfile] PeekVersion, Parse
//	         ↓
//	    [rewrite] Rewriter ── [cache] ── [registry] Client
//	         │                               ↑
//	         └──────── [integrity] Computer ─┘
//	         ↓
//	    [lockfile] Marshal
//	         ↓
//	rewritten bytes
//
// # Quick Start
//
//	runner, err := pipeline.NewRunner(pipeline.Options{}, nil)
//	if err != nil {
//	    return err
//	}
//	data, _ := os.ReadFile("package-lock.json")
//	out, report, err := runner.UpdateLockfile(ctx, data, "https://npm.example.com")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("rewrote %d entries, skipped %d\n", report.Rewritten, len(report.Skipped))
//
// [lockfile]: github.com/matzehuels/lockmirror/pkg/lockfile
// [registry]: github.com/matzehuels/lockmirror/pkg/registry
// [cache]: github.com/matzehuels/lockmirror/pkg/cache
// [integrity]: github.com/matzehuels/lockmirror/pkg/integrity
// [rewrite]: github.com/matzehuels/lockmirror/pkg/rewrite
// [pipeline]: github.com/matzehuels/lockmirror/pkg/pipeline
// [errors]: github.com/matzehuels/lockmirror/pkg/errors
// [httputil]: github.com/matzehuels/lockmirror/pkg/httputil
// [observability]: github.com/matzehuels/lockmirror/pkg/observability
// [buildinfo]: github.com/matzehuels/lockmirror/pkg/buildinfo
package pkg
