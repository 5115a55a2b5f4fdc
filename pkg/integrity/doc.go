// Package integrity computes and converts subresource-integrity strings.
//
// An integrity string has the form "<algorithm>-<base64 digest>", for
// example "sha1-2jmj7l5rSw0yVb/vlWAYkK/YBwk=". npm stores one per lockfile
// entry to verify the downloaded tarball.
//
// A [Computer] downloads a tarball and hashes it. [FromShasum] converts the
// legacy hex SHA-1 a registry publishes as dist.shasum without downloading
// anything.
package integrity
