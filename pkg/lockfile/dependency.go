package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

const (
	keyVersion      = "version"
	keyResolved     = "resolved"
	keyIntegrity    = "integrity"
	keyDependencies = "dependencies"
)

// Dependency is one entry of the dependencies tree.
//
// Resolved is set for entries downloaded from a registry. Entries without it
// are local or workspace links and are never rewritten.
type Dependency struct {
	Version      string
	Resolved     string
	Integrity    string
	Dependencies map[string]*Dependency

	// fields holds every member as read, in order. Members named above are
	// re-encoded from the typed fields when written.
	fields []field
}

// HasResolved reports whether the entry records a download URL.
func (d *Dependency) HasResolved() bool {
	return d != nil && d.Resolved != ""
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Dependency) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*d = Dependency{fields: fields}
	for _, f := range fields {
		var target any
		switch f.key {
		case keyVersion:
			target = &d.Version
		case keyResolved:
			target = &d.Resolved
		case keyIntegrity:
			target = &d.Integrity
		case keyDependencies:
			target = &d.Dependencies
		default:
			continue
		}
		if err := json.Unmarshal(f.value, target); err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Members keep their original
// order; an integrity the entry did not have before is written right after
// resolved, and other new members are appended.
func (d *Dependency) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	written := make(map[string]bool, len(d.fields)+4)

	emit := func(key string) error {
		written[key] = true
		switch key {
		case keyVersion:
			return w.value(key, d.Version)
		case keyResolved:
			return w.value(key, d.Resolved)
		case keyIntegrity:
			return w.value(key, d.Integrity)
		case keyDependencies:
			return w.value(key, orEmpty(d.Dependencies))
		}
		return nil
	}

	for _, f := range d.fields {
		switch {
		case f.key == keyDependencies && d.Dependencies == nil,
			isNull(f.value) && d.unset(f.key):
			// Keep null as written.
			written[f.key] = true
			if err := w.raw(f.key, f.value); err != nil {
				return nil, err
			}
		case isTyped(f.key):
			if err := emit(f.key); err != nil {
				return nil, err
			}
		default:
			if err := w.raw(f.key, f.value); err != nil {
				return nil, err
			}
		}
		if f.key == keyResolved && !written[keyIntegrity] && !d.has(keyIntegrity) && d.Integrity != "" {
			if err := emit(keyIntegrity); err != nil {
				return nil, err
			}
		}
	}

	if !written[keyVersion] && d.Version != "" {
		if err := emit(keyVersion); err != nil {
			return nil, err
		}
	}
	if !written[keyResolved] && d.Resolved != "" {
		if err := emit(keyResolved); err != nil {
			return nil, err
		}
	}
	if !written[keyIntegrity] && d.Integrity != "" {
		if err := emit(keyIntegrity); err != nil {
			return nil, err
		}
	}
	if !written[keyDependencies] && len(d.Dependencies) > 0 {
		if err := emit(keyDependencies); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}

// unset reports whether the typed string member key is still empty.
func (d *Dependency) unset(key string) bool {
	switch key {
	case keyVersion:
		return d.Version == ""
	case keyResolved:
		return d.Resolved == ""
	case keyIntegrity:
		return d.Integrity == ""
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Clone returns a deep copy of d.
func (d *Dependency) Clone() *Dependency {
	if d == nil {
		return nil
	}
	c := *d
	c.fields = slices.Clone(d.fields)
	c.Dependencies = CloneDependencies(d.Dependencies)
	return &c
}

func (d *Dependency) has(key string) bool {
	return slices.ContainsFunc(d.fields, func(f field) bool { return f.key == key })
}

// CloneDependencies deep-copies a dependencies map.
func CloneDependencies(deps map[string]*Dependency) map[string]*Dependency {
	if deps == nil {
		return nil
	}
	out := make(map[string]*Dependency, len(deps))
	for name, dep := range deps {
		out[name] = dep.Clone()
	}
	return out
}

// Names returns the keys of deps in sorted order.
func Names(deps map[string]*Dependency) []string {
	return slices.Sorted(maps.Keys(deps))
}

// ChildPath returns the install path of name below parent, in npm's
// node_modules notation. The top level has the empty parent.
func ChildPath(parent, name string) string {
	if parent == "" {
		return "node_modules/" + name
	}
	return parent + "/node_modules/" + name
}

// Walk calls fn for every entry of deps, depth first in name order.
func Walk(deps map[string]*Dependency, fn func(path, name string, dep *Dependency)) {
	walk("", deps, fn)
}

func walk(parent string, deps map[string]*Dependency, fn func(path, name string, dep *Dependency)) {
	for _, name := range Names(deps) {
		dep := deps[name]
		if dep == nil {
			continue
		}
		path := ChildPath(parent, name)
		fn(path, name, dep)
		walk(path, dep.Dependencies, fn)
	}
}

// Count returns the number of entries in deps at every depth.
func Count(deps map[string]*Dependency) int {
	n := 0
	Walk(deps, func(string, string, *Dependency) { n++ })
	return n
}

func isTyped(key string) bool {
	switch key {
	case keyVersion, keyResolved, keyIntegrity, keyDependencies:
		return true
	}
	return false
}

func orEmpty(deps map[string]*Dependency) map[string]*Dependency {
	if deps == nil {
		return map[string]*Dependency{}
	}
	return deps
}
