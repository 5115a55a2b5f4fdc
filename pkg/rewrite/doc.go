// Package rewrite relocates a lockfile's dependency tree onto another
// registry, or verifies that it already points there.
//
// # Write mode
//
// [Rewriter.Rewrite] visits every entry of the tree. An entry with a
// resolved URL has its package document looked up in the target registry
// (through a shared per-run cache), and gets the tarball URL and integrity
// published there. When the registry publishes no well-formed integrity, the
// legacy shasum is converted, and failing that the tarball is downloaded and
// hashed.
//
// Entries whose package or version the registry does not know, or whose name
// cannot be looked up safely, are left as they are and reported in
// [Report.Skipped]; the rest of the tree is still rewritten. Any other
// failure aborts the run.
//
// Every entry and every child subtree is processed concurrently. The
// registry client's admission gate is the only bound on parallelism.
//
// # Check mode
//
// [Check] walks the tree without network access and reports every entry
// whose resolved URL lies outside the target registry.
package rewrite
