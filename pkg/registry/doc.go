// Package registry provides an HTTP client for npm-compatible package registries.
//
// # Overview
//
// The client speaks the two requests a lockfile mirror needs:
//
//   - GET <registry>/<name>: the package document, of which only
//     versions.<v>.dist (tarball, integrity, shasum) is decoded
//   - GET <tarball>: the raw tarball bytes, used to compute a missing hash
//
// # Usage
//
//	client := registry.NewClient()
//	info, err := client.FetchPackageInfo(ctx, "https://registry.npmmirror.com", "express")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if m, ok := info.Manifest("4.18.2"); ok {
//	    fmt.Println(m.Dist.Tarball, m.Dist.Integrity)
//	}
//
// # Concurrency and retries
//
// All requests share one [httputil.Gate] (50 permits unless the client is
// built with [WithGate]) and are retried up to [httputil.DefaultAttempts]
// times back to back. See package httputil for which failures are retried.
//
// # Errors
//
// Failures are [errors.Error] values: NOT_FOUND for a 404, NETWORK_ERROR for
// everything else. Callers decide whether a NOT_FOUND is fatal.
package registry
