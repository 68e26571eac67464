// Package testutil builds bundle, feature and repository fixtures on disk.
package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Manifest renders manifest headers in a stable order, wrapping lines at 72
// bytes the way jar tooling does.
func Manifest(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Manifest-Version: 1.0\r\n")
	for _, k := range keys {
		line := k + ": " + headers[k]
		for len(line) > 72 {
			b.WriteString(line[:72] + "\r\n")
			line = " " + line[72:]
		}
		b.WriteString(line + "\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

// BundleHeaders returns the minimal headers for a bundle named name at version.
func BundleHeaders(name, version string, extra map[string]string) map[string]string {
	h := map[string]string{
		"Bundle-ManifestVersion": "2",
		"Bundle-SymbolicName":    name,
	}
	if version != "" {
		h["Bundle-Version"] = version
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

// JarBytes returns a zip archive holding files.
func JarBytes(t testing.TB, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close jar: %v", err)
	}
	return buf.Bytes()
}

// WriteJar writes a zip archive holding files to path.
func WriteJar(t testing.TB, path string, files map[string]string) string {
	t.Helper()
	WriteFile(t, path, string(JarBytes(t, files)))
	return path
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// BundleJar writes plugins/<name>_<version>.jar under dir.
func BundleJar(t testing.TB, dir, name, version string, extra map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.jar", name, version))
	return WriteJar(t, path, map[string]string{
		"META-INF/MANIFEST.MF": Manifest(BundleHeaders(name, version, extra)),
	})
}

// BundleDir writes an exploded bundle <name>_<version>/ under dir.
func BundleDir(t testing.TB, dir, name, version string, extra map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("%s_%s", name, version))
	WriteFile(t, filepath.Join(path, "META-INF", "MANIFEST.MF"), Manifest(BundleHeaders(name, version, extra)))
	return path
}

// FeatureXML renders a feature.xml with the given plugin and included feature ids.
func FeatureXML(id, version string, plugins, includes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<feature id=%q version=%q>\n", id, version)
	for _, inc := range includes {
		fmt.Fprintf(&b, "  <includes id=%q version=\"0.0.0\"/>\n", inc)
	}
	for _, p := range plugins {
		fmt.Fprintf(&b, "  <plugin id=%q version=\"0.0.0\" unpack=\"false\"/>\n", p)
	}
	b.WriteString("</feature>\n")
	return b.String()
}

// FeatureDir writes <id>_<version>/feature.xml under dir.
func FeatureDir(t testing.TB, dir, id, version string, plugins, includes []string) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("%s_%s", id, version))
	WriteFile(t, filepath.Join(path, "feature.xml"), FeatureXML(id, version, plugins, includes))
	return path
}
