package depgraph

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
)

// ToDOT converts the graph to Graphviz DOT. Import edges are dashed.
func (g *DependencyGraph) ToDOT() string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	for _, name := range g.order {
		fmt.Fprintf(&buf, "  %q;\n", name)
	}

	buf.WriteString("\n")
	for _, name := range g.order {
		for _, e := range sortedEdges(g.nodes[name]) {
			if e.Kind == BundleImport {
				fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", name, e.To.Name)
				continue
			}
			fmt.Fprintf(&buf, "  %q -> %q;\n", name, e.To.Name)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
