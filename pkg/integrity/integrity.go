package integrity

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// DefaultAlgorithm is used when none is configured.
const DefaultAlgorithm = SHA1

// ParseAlgorithm validates name. An empty name selects [DefaultAlgorithm].
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case "":
		return DefaultAlgorithm, nil
	case SHA1, SHA256, SHA512:
		return a, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidInput, "unsupported integrity algorithm %q", name)
	}
}

func (a Algorithm) new() (hash.Hash, bool) {
	switch a {
	case SHA1:
		return sha1.New(), true
	case SHA256:
		return sha256.New(), true
	case SHA512:
		return sha512.New(), true
	}
	return nil, false
}

func (a Algorithm) size() int {
	switch a {
	case SHA1:
		return sha1.Size
	case SHA256:
		return sha256.Size
	case SHA512:
		return sha512.Size
	}
	return 0
}

// Sum hashes data with alg and returns the integrity string.
func Sum(alg Algorithm, data []byte) (string, error) {
	h, ok := alg.new()
	if !ok {
		return "", errors.New(errors.ErrCodeInvalidInput, "unsupported integrity algorithm %q", alg)
	}
	h.Write(data)
	return Format(alg, h.Sum(nil)), nil
}

// Format encodes digest as "<alg>-<base64>".
func Format(alg Algorithm, digest []byte) string {
	return string(alg) + "-" + base64.StdEncoding.EncodeToString(digest)
}

// Parse splits s into its algorithm and raw digest. The digest length must
// match the algorithm.
func Parse(s string) (Algorithm, []byte, error) {
	name, encoded, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || encoded == "" {
		return "", nil, errors.New(errors.ErrCodeInvalidInput, "malformed integrity %q", s)
	}
	alg := Algorithm(name)
	if alg.size() == 0 {
		return "", nil, errors.New(errors.ErrCodeInvalidInput, "unsupported integrity algorithm %q", name)
	}
	digest, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed integrity %q", s)
	}
	if len(digest) != alg.size() {
		return "", nil, errors.New(errors.ErrCodeInvalidInput, "%s digest has %d bytes, want %d", alg, len(digest), alg.size())
	}
	return alg, digest, nil
}

// FromShasum converts a hex SHA-1 (the registry's dist.shasum) into a sha1
// integrity string.
func FromShasum(shasum string) (string, error) {
	digest, err := hex.DecodeString(strings.TrimSpace(shasum))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed shasum %q", shasum)
	}
	if len(digest) != sha1.Size {
		return "", errors.New(errors.ErrCodeInvalidInput, "shasum has %d bytes, want %d", len(digest), sha1.Size)
	}
	return Format(SHA1, digest), nil
}

// BytesFetcher downloads a URL in full.
type BytesFetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Computer derives integrity strings for tarballs the registry publishes
// without one.
type Computer struct {
	fetcher BytesFetcher
	alg     Algorithm
}

// NewComputer returns a Computer downloading through fetcher. An empty alg
// selects [DefaultAlgorithm].
func NewComputer(fetcher BytesFetcher, alg Algorithm) *Computer {
	if alg == "" {
		alg = DefaultAlgorithm
	}
	return &Computer{fetcher: fetcher, alg: alg}
}

// Compute downloads url and returns its integrity string. Any failure is an
// INTEGRITY_COMPUTE_ERROR.
func (c *Computer) Compute(ctx context.Context, url string) (string, error) {
	data, err := c.fetcher.FetchBytes(ctx, url)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeIntegrity, err, "download %s", url)
	}
	sum, err := Sum(c.alg, data)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeIntegrity, err, "hash %s", url)
	}
	return sum, nil
}
