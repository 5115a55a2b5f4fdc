package rewrite

import (
	"strings"

	"github.com/matzehuels/lockmirror/pkg/lockfile"
)

// Mismatch is an entry resolved outside the target registry.
type Mismatch struct {
	Path     string
	Name     string
	Version  string
	Resolved string
}

// CheckResult is the verdict of [Check].
type CheckResult struct {
	OK         bool
	Checked    int        // entries with a resolved URL
	Mismatches []Mismatch // in path order
}

// Check reports every entry of deps, at any depth, whose resolved URL does
// not lie under reg. Entries without a resolved URL always match.
func Check(deps map[string]*lockfile.Dependency, reg string) *CheckResult {
	res := &CheckResult{OK: true}
	lockfile.Walk(deps, func(path, name string, dep *lockfile.Dependency) {
		if !dep.HasResolved() {
			return
		}
		res.Checked++
		if !MatchesRegistry(dep.Resolved, reg) {
			res.OK = false
			res.Mismatches = append(res.Mismatches, Mismatch{
				Path:     path,
				Name:     name,
				Version:  dep.Version,
				Resolved: dep.Resolved,
			})
		}
	})
	return res
}

// MatchesRegistry reports whether resolved is reg itself or a URL below it.
// A trailing slash on reg is ignored, so "https://r.example.com" matches
// "https://r.example.com/a/-/a-1.0.0.tgz" but not
// "https://r.example.com.evil/a.tgz".
func MatchesRegistry(resolved, reg string) bool {
	base := strings.TrimRight(reg, "/")
	return resolved == base || strings.HasPrefix(resolved, base+"/")
}
