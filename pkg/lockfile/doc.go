// Package lockfile reads and writes npm package-lock.json files of
// lockfileVersion 1.
//
// Only the fields lockmirror rewrites are modeled: lockfileVersion and the
// nested dependencies tree, and per entry its version, resolved and
// integrity. Every other field is kept as raw JSON in its original position,
// so an unmodified npm-written lockfile round-trips byte for byte:
//
//	lf, err := lockfile.Parse(data)
//	if err != nil {
//	    return err
//	}
//	out, err := lf.Marshal() // bytes.Equal(out, data) for npm-written input
//
// Files of any other lockfileVersion are not parsed at all; callers check
// [PeekVersion] first and hand such input back untouched.
package lockfile
