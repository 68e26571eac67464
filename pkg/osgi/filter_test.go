package osgi

import "testing"

func TestFilterMatch(t *testing.T) {
	linux := Env{OS: "linux", WS: "gtk", Arch: "x86_64"}.Properties()
	win := Env{OS: "win32", WS: "win32", Arch: "x86_64"}.Properties()

	tests := []struct {
		filter string
		props  map[string]string
		want   bool
	}{
		{"", linux, true},
		{"(osgi.os=linux)", linux, true},
		{"(osgi.os=linux)", win, false},
		{"(&(osgi.os=linux)(osgi.ws=gtk))", linux, true},
		{"(&(osgi.os=linux)(osgi.ws=cocoa))", linux, false},
		{"(|(osgi.arch=aarch64)(osgi.arch=x86_64))", linux, true},
		{"(|(osgi.arch=aarch64)(osgi.arch=ppc64le))", linux, false},
		{"(!(osgi.os=win32))", linux, true},
		{"(!(osgi.os=win32))", win, false},
		{"(& (osgi.os=linux) (osgi.arch=x86*))", linux, true},
		{"(osgi.os=*)", linux, true},
		{"(osgi.os~=LINUX)", linux, true},
		{"(osgi.nl=de)", linux, true},
		{"(!(osgi.nl=de))", linux, true},
		{"(osgi.os=linux)", map[string]string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			f, err := ParseFilter(tt.filter)
			if err != nil {
				t.Fatalf("ParseFilter(%q): %v", tt.filter, err)
			}
			if got := f.Match(tt.props); got != tt.want {
				t.Errorf("Match(%v) = %v, want %v", tt.props, got, tt.want)
			}
		})
	}
}

func TestParseFilterInvalid(t *testing.T) {
	for _, in := range []string{
		"osgi.os=linux",
		"(osgi.os=linux",
		"(osgi.os=linux))",
		"(!(a=b)(c=d))",
		"(=linux)",
		"(noop)",
	} {
		if _, err := ParseFilter(in); err == nil {
			t.Errorf("ParseFilter(%q) succeeded, want error", in)
		}
	}
}

func TestEnvMatches(t *testing.T) {
	env := Env{OS: "linux", WS: "gtk", Arch: "x86_64"}

	tests := []struct {
		os, ws, arch string
		want         bool
	}{
		{"", "", "", true},
		{"linux", "", "", true},
		{"win32,linux", "gtk", "", true},
		{"macosx", "", "", false},
		{"linux", "cocoa", "", false},
		{"linux", "gtk", "aarch64", false},
	}
	for _, tt := range tests {
		if got := env.Matches(tt.os, tt.ws, tt.arch); got != tt.want {
			t.Errorf("Matches(%q, %q, %q) = %v, want %v", tt.os, tt.ws, tt.arch, got, tt.want)
		}
	}

	if !(Env{}).Matches("macosx", "cocoa", "aarch64") {
		t.Error("an unset environment admits everything")
	}
}
