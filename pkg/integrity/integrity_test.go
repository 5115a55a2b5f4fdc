package integrity

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

func TestSum(t *testing.T) {
	tests := []struct {
		alg  Algorithm
		data string
		want string
	}{
		{SHA1, "", "sha1-2jmj7l5rSw0yVb/vlWAYkK/YBwk="},
		{SHA1, "hello", "sha1-qvTGHdzF6KLavt4PO0gs2a6pQ00="},
		{SHA256, "", "sha256-47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU="},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%q", tt.alg, tt.data), func(t *testing.T) {
			got, err := Sum(tt.alg, []byte(tt.data))
			if err != nil {
				t.Fatalf("Sum() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Sum() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSumUnsupported(t *testing.T) {
	if _, err := Sum("md5", nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Sum(md5) error = %v, want INVALID_INPUT", err)
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", SHA1, false},
		{"sha1", SHA1, false},
		{"SHA512", SHA512, false},
		{" sha256 ", SHA256, false},
		{"md5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	alg, digest, err := Parse("sha1-2jmj7l5rSw0yVb/vlWAYkK/YBwk=")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if alg != SHA1 || len(digest) != sha1.Size {
		t.Errorf("Parse() = %q, %d bytes", alg, len(digest))
	}

	invalid := []string{
		"",
		"sha1",
		"sha1-",
		"md5-1B2M2Y8AsgTpgAmY7PhCfg==",
		"sha1-not base64!",
		"sha512-2jmj7l5rSw0yVb/vlWAYkK/YBwk=",
	}
	for _, s := range invalid {
		if _, _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error", s)
		}
	}
}

func TestFromShasum(t *testing.T) {
	got, err := FromShasum("da39a3ee5e6b4b0d3255bfef95601890afd80709")
	if err != nil {
		t.Fatalf("FromShasum() error: %v", err)
	}
	if want := "sha1-2jmj7l5rSw0yVb/vlWAYkK/YBwk="; got != want {
		t.Errorf("FromShasum() = %q, want %q", got, want)
	}

	for _, bad := range []string{"", "zz", "da39a3ee"} {
		if _, err := FromShasum(bad); err == nil {
			t.Errorf("FromShasum(%q) expected error", bad)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	digest, _ := hex.DecodeString("da39a3ee5e6b4b0d3255bfef95601890afd80709")
	s := Format(SHA1, digest)
	alg, got, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", s, err)
	}
	if alg != SHA1 || hex.EncodeToString(got) != hex.EncodeToString(digest) {
		t.Errorf("round trip mismatch: %q", s)
	}
}

type fakeFetcher struct {
	data []byte
	err  error
	urls []string
}

func (f *fakeFetcher) FetchBytes(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	return f.data, f.err
}

func TestComputerCompute(t *testing.T) {
	f := &fakeFetcher{data: []byte("hello")}
	c := NewComputer(f, "")

	got, err := c.Compute(context.Background(), "https://mirror.example.com/a/-/a-1.0.0.tgz")
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if got != "sha1-qvTGHdzF6KLavt4PO0gs2a6pQ00=" {
		t.Errorf("Compute() = %q", got)
	}
	if len(f.urls) != 1 || f.urls[0] != "https://mirror.example.com/a/-/a-1.0.0.tgz" {
		t.Errorf("fetched %v", f.urls)
	}
}

func TestComputerComputeError(t *testing.T) {
	f := &fakeFetcher{err: errors.New(errors.ErrCodeNetwork, "GET x failed after 5 attempts")}
	c := NewComputer(f, SHA512)

	_, err := c.Compute(context.Background(), "https://mirror.example.com/x.tgz")
	if !errors.Is(err, errors.ErrCodeIntegrity) {
		t.Errorf("Compute() error = %v, want INTEGRITY_COMPUTE_ERROR", err)
	}
}
