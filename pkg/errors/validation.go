package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// symbolicNameRegex matches OSGi symbolic names and package names: dotted
// segments of letters, digits, '_' and '-'.
var symbolicNameRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+)*$`)

// ValidateSymbolicName validates a bundle, feature or package name before it
// is used to build a file name or repository path.
//
// Names are rejected when they:
//   - are empty or longer than 256 characters
//   - contain control characters
//   - contain path separators or traversal sequences
func ValidateSymbolicName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "symbolic name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "symbolic name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "symbolic name contains invalid control characters")
		}
	}

	for _, pattern := range []string{"..", "/", "\\", "\x00"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "symbolic name contains invalid characters: %q", pattern)
		}
	}

	if !symbolicNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid symbolic name: %q", name)
	}

	return nil
}

// ValidatePath validates a repository-relative artifact path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURL validates a repository URL.
// It ensures the URL has a safe scheme (http, https or file).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidConfig, "URL cannot be empty")
	}

	for _, scheme := range []string{"http://", "https://", "file://"} {
		if strings.HasPrefix(rawURL, scheme) {
			return nil
		}
	}
	return New(ErrCodeInvalidConfig, "URL must use http, https or file scheme: %q", rawURL)
}
