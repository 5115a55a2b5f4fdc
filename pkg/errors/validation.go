package errors

import (
	"net/url"
	"strings"
	"unicode"
)

// ValidatePackageName validates a package name for safety and correctness.
// It rejects names that could be used for path traversal or injection attacks.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No "." or ".." path segments and no "//"
//   - No null bytes
//   - Maximum length of 256 characters
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "package name contains invalid control characters")
		}
	}

	for _, seg := range strings.Split(name, "/") {
		if seg == "." || seg == ".." {
			return New(ErrCodeInvalidInput, "package name contains a relative path segment: %q", name)
		}
	}

	dangerousPatterns := []string{
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateRegistryURL validates a registry base URL.
//
// Validation rules:
//   - URL cannot be empty
//   - Scheme must be http or https
//   - Host must be present
//   - No query string or fragment
func ValidateRegistryURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "registry URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid registry URL %q", rawURL)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidInput, "registry URL must use http or https scheme: %q", rawURL)
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "registry URL has no host: %q", rawURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return New(ErrCodeInvalidInput, "registry URL cannot carry a query or fragment: %q", rawURL)
	}

	return nil
}
