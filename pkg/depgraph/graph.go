// Package depgraph records why bundles were pulled into a resolution and
// prints the result as indented trees or Graphviz diagrams.
//
// Use [Noop] when diagnostics are not needed; every method does nothing.
package depgraph

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EdgeKind tells how a dependency was discovered.
type EdgeKind int

const (
	// DirectDependency comes from Require-Bundle or feature nesting.
	DirectDependency EdgeKind = iota
	// BundleImport comes from satisfying an Import-Package statement.
	BundleImport
)

func (k EdgeKind) String() string {
	if k == BundleImport {
		return "import"
	}
	return "direct"
}

// flushThreshold is the buffered tree size after which output is written out.
const flushThreshold = 64 * 1024

// Graph is the diagnostics sink used by the resolvers.
type Graph interface {
	// AddDependency records that from needs to, creating both nodes.
	AddDependency(from, to string, kind EdgeKind)
	// PrintTree writes the tree rooted at name to a text file and returns
	// its path. Unknown roots produce an empty path.
	PrintTree(name string) (string, error)
}

// Edge points at a dependency.
type Edge struct {
	To   *Node
	Kind EdgeKind
}

// Node is one bundle, feature or product in the graph.
type Node struct {
	Name  string
	Edges []Edge

	onStack bool
}

// DependencyGraph is the real [Graph]. It is not safe for concurrent use.
type DependencyGraph struct {
	outDir string
	nodes  map[string]*Node
	order  []string
}

// New creates an empty graph whose trees are written under outDir.
func New(outDir string) *DependencyGraph {
	return &DependencyGraph{outDir: outDir, nodes: make(map[string]*Node)}
}

func (g *DependencyGraph) node(name string) *Node {
	n, ok := g.nodes[name]
	if !ok {
		n = &Node{Name: name}
		g.nodes[name] = n
		g.order = append(g.order, name)
	}
	return n
}


// AddDependency implements [Graph]. Repeated edges are recorded once.
func (g *DependencyGraph) AddDependency(from, to string, kind EdgeKind) {
	src, dst := g.node(from), g.node(to)
	for _, e := range src.Edges {
		if e.To == dst && e.Kind == kind {
			return
		}
	}
	src.Edges = append(src.Edges, Edge{To: dst, Kind: kind})
}

// Node returns the node called name.
func (g *DependencyGraph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// NodeCount returns the number of nodes.
func (g *DependencyGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *DependencyGraph) EdgeCount() int {
	n := 0
	for _, node := range g.nodes {
		n += len(node.Edges)
	}
	return n
}

// Roots returns nodes nothing depends on, in insertion order.
func (g *DependencyGraph) Roots() []string {
	incoming := make(map[*Node]bool)
	for _, n := range g.nodes {
		for _, e := range n.Edges {
			incoming[e.To] = true
		}
	}
	var roots []string
	for _, name := range g.order {
		if !incoming[g.nodes[name]] {
			roots = append(roots, name)
		}
	}
	return roots
}

// PrintTree implements [Graph]. The file is named after the root.
func (g *DependencyGraph) PrintTree(name string) (string, error) {
	if _, ok := g.nodes[name]; !ok {
		return "", nil
	}
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(g.outDir, fileName(name)+".txt")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := g.WriteTree(name, f); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// WriteTree writes the tree rooted at name to w, two spaces per level. A node
// met again while it is still on the current path is printed once more with
// "(already imported)" and not expanded.
func (g *DependencyGraph) WriteTree(name string, w io.Writer) error {
	root, ok := g.nodes[name]
	if !ok {
		return fmt.Errorf("depgraph: unknown node %q", name)
	}
	tw := &treeWriter{w: w}
	tw.walk(root, 0, "")
	tw.flush()
	return tw.err
}

type treeWriter struct {
	w   io.Writer
	buf bytes.Buffer
	err error
}

func (t *treeWriter) walk(n *Node, depth int, suffix string) {
	if t.err != nil {
		return
	}
	t.buf.WriteString(strings.Repeat("  ", depth))
	t.buf.WriteString(n.Name)
	t.buf.WriteString(suffix)
	if n.onStack {
		t.buf.WriteString(" (already imported)\n")
		return
	}
	t.buf.WriteByte('\n')
	if t.buf.Len() > flushThreshold {
		t.flush()
	}

	n.onStack = true
	defer func() { n.onStack = false }()
	for _, e := range sortedEdges(n) {
		s := ""
		if e.Kind == BundleImport {
			s = " [import]"
		}
		t.walk(e.To, depth+1, s)
	}
}

func (t *treeWriter) flush() {
	if t.err != nil || t.buf.Len() == 0 {
		return
	}
	_, t.err = t.w.Write(t.buf.Bytes())
	t.buf.Reset()
}

func sortedEdges(n *Node) []Edge {
	edges := append([]Edge(nil), n.Edges...)
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Kind != edges[j].Kind {
			return edges[i].Kind < edges[j].Kind
		}
		return edges[i].To.Name < edges[j].To.Name
	})
	return edges
}

func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}

// Noop is a [Graph] that records nothing.
type Noop struct{}

func (Noop) AddDependency(string, string, EdgeKind) {}
func (Noop) PrintTree(string) (string, error)         { return "", nil }

var (
	_ Graph = (*DependencyGraph)(nil)
	_ Graph = Noop{}
)
