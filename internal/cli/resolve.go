package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/launchtower/pkg/config"
	"github.com/matzehuels/launchtower/pkg/depgraph"
	errs "github.com/matzehuels/launchtower/pkg/errors"
	"github.com/matzehuels/launchtower/pkg/exclude"
	lio "github.com/matzehuels/launchtower/pkg/io"
	"github.com/matzehuels/launchtower/pkg/product"
	"github.com/matzehuels/launchtower/pkg/resolve"
	"github.com/matzehuels/launchtower/pkg/result"
	"github.com/matzehuels/launchtower/pkg/storage"
)

// launchFile is the launch document written into the output directory.
const launchFile = "launch.json"

// resolveOpts holds the flags of the resolve command.
type resolveOpts struct {
	repoFlags
	plugins     []string
	features    []string
	preferOlder []string
	blocked     []string
	excludes    []string
	out         string
	trees       bool
	dot         bool
	svg         bool
	skipImports bool
	strict      bool
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var opts resolveOpts

	cmd := &cobra.Command{
		Use:   "resolve <product-file|dir>",
		Short: "Resolve every bundle and feature a product needs",
		Long: `Resolve reads a .product descriptor and computes the bundles and features
needed to launch it. Bundles are taken from the plugin directories first and
from the configured p2 repositories second. Package imports are satisfied in a
second pass.

When the argument is a directory holding several .product files, an
interactive picker is shown.`,
		Example: `  # Resolve against a local target platform
  launchtower resolve acme.product --plugins /opt/platform/plugins --features /opt/platform/features

  # Fall back to a p2 repository and write diagnostics
  launchtower resolve acme.product --repo https://download.eclipse.org/releases/2024-03 --out target/launch --trees --svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(withLogger(cmd.Context(), c.Logger), args[0], opts)
		},
	}

	opts.register(cmd)
	fs := cmd.Flags()
	fs.StringArrayVar(&opts.plugins, "plugins", nil, "local plugin directory (repeatable)")
	fs.StringArrayVar(&opts.features, "features", nil, "local feature directory (repeatable)")
	fs.StringArrayVar(&opts.preferOlder, "prefer-older", nil, "bundle resolved to its lowest matching version (repeatable)")
	fs.StringArrayVar(&opts.blocked, "block", nil, "bundle never taken from a repository as a package exporter (repeatable)")
	fs.StringArrayVar(&opts.excludes, "exclude-package", nil, "package prefix provided by the runtime (repeatable)")
	fs.StringVarP(&opts.out, "out", "o", "", "output directory for "+launchFile+" and diagnostics")
	fs.BoolVar(&opts.trees, "trees", false, "write one dependency tree file per root bundle")
	fs.BoolVar(&opts.dot, "dot", false, "write the dependency graph as DOT")
	fs.BoolVar(&opts.svg, "svg", false, "render the dependency graph as SVG")
	fs.BoolVar(&opts.skipImports, "skip-imports", false, "skip the Import-Package pass")
	fs.BoolVar(&opts.strict, "strict", false, "fail when anything stays unresolved")

	return cmd
}

func (c *CLI) runResolve(ctx context.Context, arg string, opts resolveOpts) error {
	logger := loggerFromContext(ctx)
	defer c.metrics(opts.metricsFile)()

	path, err := selectProduct(arg)
	if err != nil || path == "" {
		return err
	}
	p, err := product.Read(path)
	if err != nil {
		return err
	}

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Debug("configuration", "plugins", cfg.Plugins, "features", cfg.Features, "repositories", cfg.Repositories, "env", cfg.Env)

	local := storage.New(storage.Options{
		PluginDirs:  cfg.Plugins,
		FeatureDirs: cfg.Features,
		PreferOlder: cfg.PreferOlder,
		Logger:      logger,
	})
	if err := local.Index(ctx); err != nil {
		logger.Warn("some local bundles could not be read", "err", err)
	}

	idx, closeIndex, err := c.openIndex(ctx, cfg, &opts.repoFlags)
	if err != nil {
		return err
	}
	defer closeIndex()
	var remote resolve.Remote
	if idx != nil {
		remote = idx
	}

	var graph *depgraph.DependencyGraph
	if opts.wantsGraph() {
		graph = depgraph.New(filepath.Join(cfg.Output, "trees"))
	}

	resolver := resolve.New(local, remote, resolve.Options{
		Env:            cfg.Env,
		Exclude:        exclude.DefaultPolicy().With(cfg.ExcludePackages...),
		BlockedBundles: cfg.BlockedBundles,
		Graph:          graphOrNoop(graph),
		SkipImports:    cfg.SkipImports,
		Logger:         logger,
	})

	prog := newProgress(logger)
	res, report, err := resolver.ResolveProduct(ctx, p)
	if err != nil {
		return err
	}
	res.WorkingDir = cfg.WorkingDir
	prog.done(fmt.Sprintf("Resolved %s", p.DisplayName()))

	printSuccess("Resolved %s", StyleHighlight.Render(p.DisplayName()))
	printStats(
		count(res.BundleCount(), "bundle", "bundles"),
		count(len(res.FeatureNames()), "feature", "features"),
		count(remoteCount(res), "from repositories", "from repositories"),
	)
	if res.SplashPath != "" {
		printKeyValue("splash", res.SplashPath)
	}
	if idx != nil {
		if n := idx.Stats().Fetched; n > 0 {
			printKeyValue("downloaded", count(n, "artifact", "artifacts"))
		}
	}
	printReport(report)

	if err := writeOutputs(ctx, cfg.Output, res, report, graph, opts); err != nil {
		return err
	}

	if opts.strict && !report.Clean() {
		return errs.New(errs.ErrCodeBundleNotFound, "%d bundles, %d features and %d packages unresolved",
			len(report.Bundles), len(report.Features), len(report.Packages))
	}
	return nil
}

// apply copies the resolve-only flags into cfg.
func (o resolveOpts) apply(cfg *config.Config) {
	if len(o.plugins) > 0 {
		cfg.Plugins = absPaths(o.plugins)
	}
	if len(o.features) > 0 {
		cfg.Features = absPaths(o.features)
	}
	if len(o.preferOlder) > 0 {
		cfg.PreferOlder = o.preferOlder
	}
	if len(o.blocked) > 0 {
		cfg.BlockedBundles = o.blocked
	}
	cfg.ExcludePackages = append(cfg.ExcludePackages, o.excludes...)
	if o.out != "" {
		cfg.Output = absPath(o.out)
	}
	if o.skipImports {
		cfg.SkipImports = true
	}
	if cfg.Output == "" && o.wantsGraph() {
		cfg.Output = absPath(".")
	}
}

func (o resolveOpts) wantsGraph() bool {
	return o.trees || o.dot || o.svg
}

// graphOrNoop keeps a nil *DependencyGraph from becoming a non-nil interface.
func graphOrNoop(g *depgraph.DependencyGraph) depgraph.Graph {
	if g == nil {
		return depgraph.Noop{}
	}
	return g
}

// selectProduct maps the argument to a single .product file. A directory with
// one descriptor selects it; with several, the user picks one when attached to
// a terminal.
func selectProduct(arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return "", errs.Wrap(errs.ErrCodeFileNotFound, err, "product %s", arg)
	}
	if !info.IsDir() {
		return arg, nil
	}

	paths, err := filepath.Glob(filepath.Join(arg, "*.product"))
	if err != nil {
		return "", err
	}
	sort.Strings(paths)
	switch {
	case len(paths) == 0:
		return "", errs.New(errs.ErrCodeFileNotFound, "no .product file in %s", arg)
	case len(paths) == 1:
		printInfo("Found %s", StyleHighlight.Render(filepath.Base(paths[0])))
		return paths[0], nil
	case !isatty.IsTerminal(os.Stdout.Fd()):
		names := make([]string, len(paths))
		for i, p := range paths {
			names[i] = filepath.Base(p)
		}
		return "", errs.New(errs.ErrCodeInvalidInput, "%s holds several products (%s); name one", arg, strings.Join(names, ", "))
	}

	printInfo("Found %d product files", len(paths))
	printNewline()
	path, err := pickProduct(paths)
	if err != nil {
		return "", err
	}
	if path == "" {
		printDetail("No product selected")
	}
	return path, nil
}

func remoteCount(res *result.Result) int {
	n := 0
	for _, b := range res.AllBundles() {
		if b.Remote {
			n++
		}
	}
	return n
}

// printReport lists unresolved references, one table per kind.
func printReport(report *resolve.Report) {
	if report.Clean() {
		return
	}
	if len(report.Bundles) > 0 {
		printWarning("%s unresolved", count(len(report.Bundles), "bundle", "bundles"))
		printTable([]string{"Bundle", "Range", "Required by"}, missRows(report.Bundles))
	}
	if len(report.Features) > 0 {
		printWarning("%s unresolved", count(len(report.Features), "feature", "features"))
		printTable([]string{"Feature", "Range", "Required by"}, missRows(report.Features))
	}
	if len(report.Packages) > 0 {
		printWarning("%s unresolved", count(len(report.Packages), "package", "packages"))
		rows := make([][]string, 0, len(report.Packages))
		for _, name := range report.PackageNames() {
			rows = append(rows, []string{name, "", strings.Join(report.Packages[name], ", ")})
		}
		printTable([]string{"Package", "", "Imported by"}, rows)
	}
	for _, name := range report.Cycles {
		printDetail("feature cycle at %s", name)
	}
}

func missRows(misses []resolve.Miss) [][]string {
	rows := make([][]string, len(misses))
	for i, m := range misses {
		rows[i] = []string{m.Name, m.Range, m.From}
	}
	return rows
}

// writeOutputs writes the launch document and the requested diagnostics.
func writeOutputs(ctx context.Context, dir string, res *result.Result, report *resolve.Report, graph *depgraph.DependencyGraph, opts resolveOpts) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	launch := filepath.Join(dir, launchFile)
	if err := lio.ExportJSON(res, report, launch); err != nil {
		return err
	}
	printFile(launch)

	if graph == nil {
		return nil
	}
	printDetail("graph: %d nodes, %d edges", graph.NodeCount(), graph.EdgeCount())
	if opts.trees {
		roots := graph.Roots()
		for _, name := range roots {
			if _, err := graph.PrintTree(name); err != nil {
				return fmt.Errorf("print tree %s: %w", name, err)
			}
		}
		printFile(fmt.Sprintf("%s (%s)", filepath.Join(dir, "trees"), count(len(roots), "tree", "trees")))
	}
	if !opts.dot && !opts.svg {
		return nil
	}
	dot := graph.ToDOT()
	if opts.dot {
		path := filepath.Join(dir, "graph.dot")
		if err := os.WriteFile(path, []byte(dot), 0o644); err != nil {
			return err
		}
		printFile(path)
	}
	if opts.svg {
		svg, err := depgraph.RenderSVG(ctx, dot)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, "graph.svg")
		if err := os.WriteFile(path, svg, 0o644); err != nil {
			return err
		}
		printFile(path)
	}
	return nil
}

func absPaths(in []string) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = absPath(p)
	}
	return out
}
