package errors

import (
	"testing"
)

func TestValidateSymbolicName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "org.eclipse.core.runtime", false},
		{"valid with dash", "com.acme-tools.ui", false},
		{"valid with underscore", "org.eclipse.swt.gtk.linux.x86_64", false},
		{"valid single segment", "bundle", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"path traversal ..", "foo/../bar", true},
		{"slash", "foo/bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
		{"leading dot", ".hidden", true},
		{"trailing dot", "org.eclipse.", true},
		{"space", "org eclipse", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymbolicName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbolicName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://download.eclipse.org/releases/2024-03", false},
		{"http", "http://example.com/path", false},
		{"file", "file:///srv/p2/mirror", false},

		{"empty", "", true},
		{"ftp", "ftp://example.com", true},
		{"javascript", "javascript:alert(1)", true},
		{"no scheme", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidConfig) {
				t.Errorf("ValidateURL(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid plugin", "plugins/org.acme.core_1.0.0.jar", false},
		{"valid feature", "features/org.acme.feature_2.1.0.v2024.jar", false},
		{"valid filename only", "content.jar", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 600)), true},
		{"absolute path", "/etc/passwd", true},
		{"path traversal", "../../../etc/passwd", true},
		{"path traversal middle", "plugins/../secret", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "plugins\\a.jar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidatePath(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidManifest,
		ErrCodeInvalidDescriptor,
		ErrCodeInvalidConfig,
		ErrCodeInvalidPath,
		ErrCodeInvalidVersion,
		ErrCodeNotFound,
		ErrCodeBundleNotFound,
		ErrCodeFeatureNotFound,
		ErrCodeArtifactNotFound,
		ErrCodeFileNotFound,
		ErrCodeRepositoryInit,
		ErrCodeNetwork,
		ErrCodeTimeout,
		ErrCodeRateLimited,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
