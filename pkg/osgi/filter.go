package osgi

import (
	"fmt"
	"path"
	"strings"
)

// Env is the target platform a product is resolved for. Empty fields match
// anything.
type Env struct {
	OS   string `toml:"os"`
	WS   string `toml:"ws"`
	Arch string `toml:"arch"`
}

// Properties returns the filter properties describing e.
func (e Env) Properties() map[string]string {
	props := map[string]string{}
	if e.OS != "" {
		props["osgi.os"] = e.OS
	}
	if e.WS != "" {
		props["osgi.ws"] = e.WS
	}
	if e.Arch != "" {
		props["osgi.arch"] = e.Arch
	}
	return props
}

// Matches reports whether the comma-separated os/ws/arch lists used by
// product and feature plugin entries admit e. An empty list admits anything.
func (e Env) Matches(os, ws, arch string) bool {
	return listAdmits(os, e.OS) && listAdmits(ws, e.WS) && listAdmits(arch, e.Arch)
}

func listAdmits(list, v string) bool {
	if list == "" || v == "" {
		return true
	}
	for _, item := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}

// Filter is a parsed LDAP filter expression such as
// "(&(osgi.os=linux)(|(osgi.arch=x86_64)(osgi.arch=aarch64)))".
type Filter struct {
	op       string // "&", "|", "!", "=", ">=", "<=", "~="
	key      string
	value    string
	children []*Filter
}

// ParseFilter parses an LDAP filter. The empty string yields a nil filter,
// which matches everything.
func ParseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	p := &filterParser{s: s}
	f, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("osgi: trailing data in filter %q", s)
	}
	return f, nil
}

// Match reports whether props satisfy f. A nil filter matches everything.
// A key absent from props matches, so an unconfigured environment admits
// every platform-specific unit.
func (f *Filter) Match(props map[string]string) bool {
	if f == nil {
		return true
	}
	switch f.op {
	case "&":
		for _, c := range f.children {
			if !c.Match(props) {
				return false
			}
		}
		return true
	case "|":
		for _, c := range f.children {
			if c.Match(props) {
				return true
			}
		}
		return len(f.children) == 0
	case "!":
		c := f.children[0]
		if c.key != "" {
			if _, ok := props[c.key]; !ok {
				return true
			}
		}
		return !c.Match(props)
	}

	v, ok := props[f.key]
	if !ok {
		return true
	}
	switch f.op {
	case ">=":
		return v >= f.value
	case "<=":
		return v <= f.value
	case "~=":
		return strings.EqualFold(v, f.value)
	}
	if f.value == "*" {
		return true
	}
	if strings.Contains(f.value, "*") {
		ok, _ := path.Match(f.value, v)
		return ok
	}
	return v == f.value
}

type filterParser struct {
	s   string
	pos int
}

func (p *filterParser) skipSpace() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *filterParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.s) || p.s[p.pos] != c {
		return fmt.Errorf("osgi: expected %q at %d in filter %q", c, p.pos, p.s)
	}
	p.pos++
	return nil
}

func (p *filterParser) parse() (*Filter, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos >= len(p.s) {
		return nil, fmt.Errorf("osgi: unterminated filter %q", p.s)
	}

	var f *Filter
	switch c := p.s[p.pos]; c {
	case '&', '|', '!':
		p.pos++
		f = &Filter{op: string(c)}
		for {
			p.skipSpace()
			if p.pos < len(p.s) && p.s[p.pos] == ')' {
				break
			}
			child, err := p.parse()
			if err != nil {
				return nil, err
			}
			f.children = append(f.children, child)
		}
		if c == '!' && len(f.children) != 1 {
			return nil, fmt.Errorf("osgi: negation needs exactly one operand in %q", p.s)
		}
	default:
		end := strings.IndexByte(p.s[p.pos:], ')')
		if end < 0 {
			return nil, fmt.Errorf("osgi: unterminated filter %q", p.s)
		}
		item := p.s[p.pos : p.pos+end]
		p.pos += end
		var err error
		if f, err = parseItem(item); err != nil {
			return nil, err
		}
	}

	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return f, nil
}

func parseItem(item string) (*Filter, error) {
	for _, op := range []string{">=", "<=", "~=", "="} {
		if k, v, ok := strings.Cut(item, op); ok {
			k = strings.TrimSpace(k)
			if k == "" {
				break
			}
			return &Filter{op: op, key: k, value: strings.TrimSpace(v)}, nil
		}
	}
	return nil, fmt.Errorf("osgi: invalid filter item %q", item)
}
