package osgi

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Header holds the main-section attributes of a JAR manifest.
type Header map[string]string

// Get returns the value of key, matching the name case-insensitively.
func (h Header) Get(key string) string {
	if v, ok := h[key]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// ReadManifest reads the main section of a JAR manifest.
//
// Manifest lines are wrapped at 72 bytes with continuation lines starting with
// a single space; continuations are joined without a separator because the
// wrap can fall in the middle of a name. Reading stops at the first blank line.
func ReadManifest(r io.Reader) (Header, error) {
	h := Header{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var key string
	var val strings.Builder
	flush := func() {
		if key != "" {
			h[key] = strings.TrimSpace(val.String())
		}
		key = ""
		val.Reset()
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			if key == "" && len(h) == 0 {
				continue
			}
			break
		}
		if line[0] == ' ' {
			if key == "" {
				return nil, fmt.Errorf("osgi: continuation line without header: %q", line)
			}
			val.WriteString(line[1:])
			continue
		}
		flush()
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("osgi: malformed manifest line: %q", line)
		}
		key = strings.TrimSpace(k)
		val.WriteString(strings.TrimPrefix(v, " "))
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return h, nil
}

// Clause is one comma-separated entry of a manifest list header, e.g.
// `org.foo;org.bar;version="[1,2)";resolution:=optional`.
type Clause struct {
	Paths      []string
	Attrs      map[string]string
	Directives map[string]string
}

// Path returns the first path of c.
func (c Clause) Path() string {
	if len(c.Paths) == 0 {
		return ""
	}
	return c.Paths[0]
}

// ParseClauses splits a list header into clauses. Commas and semicolons inside
// double-quoted segments do not separate entries.
func ParseClauses(value string) []Clause {
	var clauses []Clause
	for _, entry := range splitUnquoted(value, ',') {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		c := Clause{Attrs: map[string]string{}, Directives: map[string]string{}}
		for _, part := range splitUnquoted(entry, ';') {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if k, v, ok := strings.Cut(part, ":="); ok && !strings.Contains(k, "=") {
				c.Directives[strings.TrimSpace(k)] = unquote(v)
				continue
			}
			if k, v, ok := strings.Cut(part, "="); ok {
				c.Attrs[strings.TrimSpace(k)] = unquote(v)
				continue
			}
			c.Paths = append(c.Paths, part)
		}
		if len(c.Paths) > 0 {
			clauses = append(clauses, c)
		}
	}
	return clauses
}

// TrimDirectives strips ";..." parameters from a header value such as
// "org.foo;singleton:=true".
func TrimDirectives(v string) string {
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

func splitUnquoted(s string, sep byte) []string {
	var out []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

func unquote(v string) string {
	return strings.Trim(strings.TrimSpace(v), `"`)
}
