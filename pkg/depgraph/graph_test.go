package depgraph

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteTree(t *testing.T) {
	g := New(t.TempDir())
	g.AddDependency("product", "a", DirectDependency)
	g.AddDependency("a", "c", DirectDependency)
	g.AddDependency("a", "b", DirectDependency)
	g.AddDependency("b", "p.exporter", BundleImport)
	g.AddDependency("b", "c", DirectDependency)

	var buf bytes.Buffer
	if err := g.WriteTree("product", &buf); err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	want := strings.Join([]string{
		"product",
		"  a",
		"    b",
		"      c",
		"      p.exporter [import]",
		"    c",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("WriteTree =\n%s\nwant\n%s", got, want)
	}
}

func TestWriteTreeCycle(t *testing.T) {
	g := New(t.TempDir())
	g.AddDependency("a", "b", DirectDependency)
	g.AddDependency("b", "c", DirectDependency)
	g.AddDependency("c", "a", BundleImport)

	var buf bytes.Buffer
	if err := g.WriteTree("a", &buf); err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	want := "a\n  b\n    c\n      a [import] (already imported)\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteTree =\n%q\nwant\n%q", got, want)
	}

	// on-path markers are cleared after printing
	for _, name := range []string{"a", "b", "c"} {
		if n, _ := g.Node(name); n.onStack {
			t.Errorf("node %s still marked on stack", name)
		}
	}
}

type countingWriter struct {
	writes int
	bytes.Buffer
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func TestWriteTreeFlushesInChunks(t *testing.T) {
	g := New(t.TempDir())
	name := strings.Repeat("org.acme.component.", 5)
	for i := 0; i < 2000; i++ {
		g.AddDependency("root", fmt.Sprintf("%s%04d", name, i), DirectDependency)
	}

	w := &countingWriter{}
	if err := g.WriteTree("root", w); err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if w.Len() <= flushThreshold {
		t.Fatalf("fixture too small: %d bytes", w.Len())
	}
	if w.writes < 2 {
		t.Errorf("expected output in several chunks, got %d write(s)", w.writes)
	}
	if got := strings.Count(w.String(), "\n"); got != 2001 {
		t.Errorf("lines = %d, want 2001", got)
	}
}

func TestPrintTree(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "trees")
	g := New(dir)
	g.AddDependency("org.acme/product", "a", DirectDependency)

	path, err := g.PrintTree("org.acme/product")
	if err != nil {
		t.Fatalf("PrintTree: %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Base(path) != "org.acme_product.txt" {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "org.acme/product\n  a\n" {
		t.Errorf("content = %q", data)
	}

	if path, err := g.PrintTree("unknown"); path != "" || err != nil {
		t.Errorf("PrintTree(unknown) = (%q, %v)", path, err)
	}
}

func TestGraphCounts(t *testing.T) {
	g := New(t.TempDir())
	g.AddDependency("a", "b", DirectDependency)
	g.AddDependency("a", "b", DirectDependency)
	g.AddDependency("a", "b", BundleImport)
	g.AddDependency("x", "b", DirectDependency)
	g.node("lonely")

	if g.NodeCount() != 4 {
		t.Errorf("NodeCount = %d, want 4", g.NodeCount())
	}
	if g.EdgeCount() != 3 {
		t.Errorf("EdgeCount = %d, want 3", g.EdgeCount())
	}
	roots := g.Roots()
	if strings.Join(roots, ",") != "a,x,lonely" {
		t.Errorf("Roots = %v", roots)
	}
}

func TestToDOT(t *testing.T) {
	g := New(t.TempDir())
	g.AddDependency("a", "b", DirectDependency)
	g.AddDependency("a", "c", BundleImport)

	dot := g.ToDOT()
	for _, want := range []string{`"a" -> "b";`, `"a" -> "c" [style=dashed];`, "digraph G {"} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}

	svg, err := RenderSVG(context.Background(), dot)
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Error("RenderSVG output is not SVG")
	}
}

func TestNoop(t *testing.T) {
	var g Graph = Noop{}
	g.AddDependency("a", "b", BundleImport)
	if path, err := g.PrintTree("a"); path != "" || err != nil {
		t.Errorf("Noop.PrintTree = (%q, %v)", path, err)
	}
}
