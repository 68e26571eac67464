package resolve

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/launchtower/pkg/observability"
	"github.com/matzehuels/launchtower/pkg/osgi"
	"github.com/matzehuels/launchtower/pkg/product"
	"github.com/matzehuels/launchtower/pkg/result"
)

// SplashFile is the splash image looked up in the splash bundle.
const SplashFile = "splash.bmp"

// ResolveProduct resolves everything p needs into a new Result.
//
// Plugins are resolved first, then features, then the start level
// configuration, which backfills levels on bundles pulled in transitively.
// The import pass follows unless disabled. Only cancellation of ctx makes
// it return an error.
func (r *Resolver) ResolveProduct(ctx context.Context, p *product.Product) (*result.Result, *Report, error) {
	name := p.DisplayName()
	hooks := observability.Resolve()
	hooks.OnResolveStart(ctx, name)
	start := time.Now()

	res := result.New()
	res.Product = result.Product{
		Name:        p.Name,
		UID:         p.UID,
		ID:          p.ID,
		Application: p.Application,
		Version:     p.Version,
	}
	res.ProgramArgs = p.ProgramArgsFor(r.opts.Env.OS)
	res.VMArgs = p.VMArgsFor(r.opts.Env.OS)

	r.opts.Logger.Info("resolving product", "product", name, "run", res.RunID)
	run := r.Start(ctx, res)
	levels := p.StartLevels()
	for _, pl := range p.PluginsFor(r.opts.Env) {
		run.Plugin(pl.Name, pl.Version, pl.Fragment, levels[pl.Name], name)
	}
	for _, f := range p.Features {
		run.Feature(f.Name, name)
	}
	for _, c := range p.Configurations {
		if c.StartLevel > 0 {
			run.Bundle(c.Name, osgi.AnyVersion, c.StartLevel, name)
		}
	}
	if !r.opts.SkipImports {
		run.Imports()
	}
	report := run.Finish()

	if p.Splash != "" {
		if bs := res.Bundles(p.Splash); len(bs) > 0 && bs[0].Path != "" {
			res.SplashPath = splashPath(bs[0].Path)
		}
	}

	err := ctx.Err()
	hooks.OnResolveComplete(ctx, name, res.BundleCount(), len(res.FeatureNames()), time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}
	return res, report, nil
}

// splashPath locates the splash image of a bundle at path. An exploded
// bundle yields the image file; a jar yields the jar itself, since the image
// is only reachable through the archive.
func splashPath(path string) string {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return filepath.Join(path, SplashFile)
}
