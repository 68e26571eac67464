package exclude

import "testing"

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		pkg  string
		want bool
	}{
		{"java.lang", true},
		{"java.util.concurrent", true},
		{"javax.xml.parsers", true},
		{"javax.xml", true},
		{"javax.crypto.spec", true},
		{"javax.net.ssl", true},
		{"javax.networking", false},
		{"javax.inject", false},
		{"javax.annotation", true},
		{"javax.annotation.security", false},
		{"org.w3c.dom.events", true},
		{"org.xml.sax.helpers", true},
		{"org.ietf.jgss", true},
		{"sun.misc", true},
		{"system.bundle", true},
		{"org.osgi.framework", true},
		{"org.osgi.service.event", false},
		{"org.eclipse.core.runtime", false},
		{"javafx.scene", false},
	}

	for _, tt := range tests {
		t.Run(tt.pkg, func(t *testing.T) {
			if got := p.Excluded(tt.pkg); got != tt.want {
				t.Errorf("Excluded(%q) = %v, want %v", tt.pkg, got, tt.want)
			}
		})
	}
}

func TestPolicyWith(t *testing.T) {
	base := DefaultPolicy()
	p := base.With("org.apache.commons.logging")

	if !p.Excluded("org.apache.commons.logging.impl") {
		t.Error("extra prefix should be excluded")
	}
	if !p.Excluded("java.io") {
		t.Error("defaults should be kept")
	}
	if base.Excluded("org.apache.commons.logging") {
		t.Error("With must not modify the receiver")
	}
}

func TestNilAndZeroPolicy(t *testing.T) {
	var p *Policy
	if p.Excluded("java.lang") {
		t.Error("nil policy excludes nothing")
	}
	if (&Policy{}).Excluded("java.lang") {
		t.Error("zero policy excludes nothing")
	}
}
