// Package exclude decides which imported packages are provided by the
// platform and must never trigger bundle resolution.
package exclude

import (
	"slices"
	"strings"
)

// SystemBundle is the synthetic bundle name the framework itself answers to.
const SystemBundle = "system.bundle"

// defaultPrefixes are namespaces supplied by the Java runtime.
var defaultPrefixes = []string{
	"java.",
	"javax.accessibility",
	"javax.annotation.processing",
	"javax.crypto",
	"javax.imageio",
	"javax.lang.model",
	"javax.management",
	"javax.naming",
	"javax.net",
	"javax.print",
	"javax.rmi",
	"javax.script",
	"javax.security",
	"javax.sound",
	"javax.sql",
	"javax.swing",
	"javax.tools",
	"javax.transaction.xa",
	"javax.xml",
	"jdk.",
	"org.ietf.jgss",
	"org.omg.",
	"org.w3c.dom",
	"org.xml.sax",
	"sun.",
	"com.sun.",
}

// defaultNames are matched exactly.
var defaultNames = []string{
	SystemBundle,
	"javax.annotation",
	"javax.transaction",
	"org.osgi.framework",
}

// Policy is a set of exact names and name prefixes that are satisfied
// externally. The zero value excludes nothing.
type Policy struct {
	names    map[string]struct{}
	prefixes []string
}

// DefaultPolicy excludes the Java runtime namespaces and the system bundle.
func DefaultPolicy() *Policy {
	return New(defaultNames, defaultPrefixes)
}

// New builds a policy from exact names and prefixes.
func New(names, prefixes []string) *Policy {
	p := &Policy{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		p.names[n] = struct{}{}
	}
	p.prefixes = slices.Clone(prefixes)
	return p
}

// With returns a copy of p that additionally excludes prefixes.
func (p *Policy) With(prefixes ...string) *Policy {
	names := make([]string, 0, len(p.names))
	for n := range p.names {
		names = append(names, n)
	}
	return New(names, append(slices.Clone(p.prefixes), prefixes...))
}

// Excluded reports whether pkg must be treated as already satisfied.
func (p *Policy) Excluded(pkg string) bool {
	if p == nil {
		return false
	}
	if _, ok := p.names[pkg]; ok {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(pkg, prefix) && boundary(pkg, prefix) {
			return true
		}
	}
	return false
}

// boundary rejects prefix matches that stop inside a segment, so "javax.net"
// does not exclude "javax.networking".
func boundary(pkg, prefix string) bool {
	if strings.HasSuffix(prefix, ".") || len(pkg) == len(prefix) {
		return true
	}
	return pkg[len(prefix)] == '.'
}
