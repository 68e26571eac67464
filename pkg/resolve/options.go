package resolve

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/launchtower/pkg/depgraph"
	"github.com/matzehuels/launchtower/pkg/exclude"
	"github.com/matzehuels/launchtower/pkg/osgi"
)

// Options configures a Resolver.
type Options struct {
	// Env filters platform-specific plugins, features and units.
	Env osgi.Env
	// Exclude lists packages provided by the runtime. Defaults to
	// [exclude.DefaultPolicy].
	Exclude *exclude.Policy
	// BlockedBundles are never chosen as remote package exporters.
	BlockedBundles []string
	// Graph receives dependency edges. Defaults to [depgraph.Noop].
	Graph depgraph.Graph
	// SkipImports disables the Import-Package pass.
	SkipImports bool
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Exclude == nil {
		opts.Exclude = exclude.DefaultPolicy()
	}
	if opts.Graph == nil {
		opts.Graph = depgraph.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return opts
}
