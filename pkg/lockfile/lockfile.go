package lockfile

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

// SupportedVersion is the only lockfileVersion lockmirror rewrites.
const SupportedVersion = 1

const keyLockfileVersion = "lockfileVersion"

// Lockfile is a parsed package-lock.json.
type Lockfile struct {
	Version      int
	Dependencies map[string]*Dependency

	fields []field
}

// PeekVersion returns the lockfileVersion of data without decoding the
// dependency tree.
func PeekVersion(data []byte) (int, error) {
	var head struct {
		LockfileVersion *json.Number `json:"lockfileVersion"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, errors.Wrap(errors.ErrCodeParse, err, "decode lockfile")
	}
	if head.LockfileVersion == nil {
		return 0, errors.New(errors.ErrCodeParse, "lockfile has no lockfileVersion")
	}
	v, err := head.LockfileVersion.Int64()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeParse, err, "invalid lockfileVersion %s", head.LockfileVersion.String())
	}
	return int(v), nil
}

// Parse decodes a lockfile. Malformed input yields a PARSE_ERROR.
func Parse(data []byte) (*Lockfile, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "decode lockfile")
	}

	lf := &Lockfile{fields: fields}
	hasVersion := false
	for _, f := range fields {
		switch f.key {
		case keyLockfileVersion:
			hasVersion = true
			if err := json.Unmarshal(f.value, &lf.Version); err != nil {
				return nil, errors.Wrap(errors.ErrCodeParse, err, "invalid lockfileVersion")
			}
		case keyDependencies:
			if err := json.Unmarshal(f.value, &lf.Dependencies); err != nil {
				return nil, errors.Wrap(errors.ErrCodeParse, err, "decode dependencies")
			}
		}
	}
	if !hasVersion {
		return nil, errors.New(errors.ErrCodeParse, "lockfile has no lockfileVersion")
	}
	return lf, nil
}

// MarshalJSON implements json.Marshaler.
func (lf *Lockfile) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	seen := map[string]bool{}
	for _, f := range lf.fields {
		seen[f.key] = true
		var err error
		switch {
		case f.key == keyLockfileVersion:
			err = w.value(f.key, lf.Version)
		case f.key == keyDependencies && lf.Dependencies != nil:
			err = w.value(f.key, lf.Dependencies)
		default:
			err = w.raw(f.key, f.value)
		}
		if err != nil {
			return nil, err
		}
	}
	if !seen[keyLockfileVersion] {
		if err := w.value(keyLockfileVersion, lf.Version); err != nil {
			return nil, err
		}
	}
	if !seen[keyDependencies] && len(lf.Dependencies) > 0 {
		if err := w.value(keyDependencies, lf.Dependencies); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}

// Marshal encodes lf the way npm writes it: two-space indentation, no HTML
// escaping and a trailing newline.
func (lf *Lockfile) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode lockfile")
	}
	return buf.Bytes(), nil
}

// Clone returns a deep copy of lf.
func (lf *Lockfile) Clone() *Lockfile {
	if lf == nil {
		return nil
	}
	return &Lockfile{
		Version:      lf.Version,
		Dependencies: CloneDependencies(lf.Dependencies),
		fields:       slices.Clone(lf.fields),
	}
}
