// Package httputil provides HTTP plumbing shared by registry requests.
//
// # Overview
//
//   - [Gate]: a process-wide counting admission gate
//   - [Retry]: fixed-attempt retry for transient failures
//
// # Admission gate
//
// Every outbound request, whether it fetches package metadata or a tarball,
// holds one permit of a single [Gate] for as long as it is in flight,
// including reading the response body. The gate is the only hard bound on
// concurrency; callers are free to fan out as widely as they like.
//
//	gate := httputil.DefaultGate() // quota 50
//	err := gate.Do(ctx, func() error {
//	    resp, err := http.DefaultClient.Do(req)
//	    ...
//	})
//
// # Retry
//
// [Retry] runs a function up to a fixed number of attempts (5 by default).
// Attempts are back to back, with no delay between them.
//
// Only errors wrapped with [Retryable] are retried:
//
//   - Network errors
//   - 5xx server errors and 429 responses
//   - Truncated or undecodable response bodies
//
// A 404 is never retried.
//
//	err := httputil.Retry(ctx, httputil.DefaultAttempts, func() error {
//	    return gate.Do(ctx, fetch)
//	})
package httputil
