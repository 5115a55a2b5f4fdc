package registry

// PackageInfo is the part of a registry package document lockmirror reads:
// the per-version manifests keyed by exact version string.
type PackageInfo struct {
	Name     string                      `json:"name"`
	Versions map[string]*PackageManifest `json:"versions"`
}

// Manifest returns the manifest published for version, if any.
func (p *PackageInfo) Manifest(version string) (*PackageManifest, bool) {
	if p == nil {
		return nil, false
	}
	m, ok := p.Versions[version]
	return m, ok && m != nil
}

// PackageManifest describes one published version of a package.
type PackageManifest struct {
	Dist Dist `json:"dist"`
}

// Dist locates a version's tarball and, when the registry publishes them,
// its hashes. Integrity is a subresource-integrity string ("sha512-...");
// Shasum is the legacy hex SHA-1 of the tarball.
type Dist struct {
	Tarball   string `json:"tarball"`
	Integrity string `json:"integrity,omitempty"`
	Shasum    string `json:"shasum,omitempty"`
}
