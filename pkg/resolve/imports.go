package resolve

import (
	"github.com/matzehuels/launchtower/pkg/depgraph"
	"github.com/matzehuels/launchtower/pkg/observability"
	"github.com/matzehuels/launchtower/pkg/osgi"
	"github.com/matzehuels/launchtower/pkg/result"
)

// Imports satisfies the Import-Package statements of every bundle in the
// result. Bundles added along the way are scanned as well, until no bundle
// is left unscanned.
func (run *Run) Imports() {
	for {
		var pending []*osgi.BundleInfo
		for _, b := range run.root.AllBundles() {
			if !run.scanned[b.Key()] {
				pending = append(pending, b)
			}
		}
		if len(pending) == 0 {
			return
		}
		for _, b := range pending {
			if run.ctx.Err() != nil {
				return
			}
			run.scanned[b.Key()] = true
			run.imports(run.root, b, false)
		}
	}
}

// imports resolves the imports of b into s. In strict mode the first
// unsatisfied mandatory import fails the call.
func (run *Run) imports(s result.Store, b *osgi.BundleInfo, strict bool) bool {
	for _, imp := range b.ImportedPackages {
		if run.pkg(s, b, imp, strict) {
			continue
		}
		if strict && !imp.Optional {
			return false
		}
	}
	return true
}

func (run *Run) pkg(s result.Store, importer *osgi.BundleInfo, imp osgi.PackageImport, strict bool) bool {
	if run.r.opts.Exclude.Excluded(imp.Name) || exported(s, imp) {
		return true
	}

	key := imp.Name + "@" + imp.Range.String()
	switch run.packages[key] {
	case pkgPending, pkgResolved:
		return true
	case pkgFailed:
		run.missPackage(imp, importer, strict)
		return false
	}

	run.setPackage(key, pkgPending)
	if run.exporters(s, importer, imp) {
		run.setPackage(key, pkgResolved)
		return true
	}
	// failures are not journaled; the same lookup would fail again
	run.packages[key] = pkgFailed
	run.missPackage(imp, importer, strict)
	return false
}

// exporters adds an exporter of imp to s. Every local exporter is tried,
// each in its own branch; the best remote exporter is the fallback.
func (run *Run) exporters(s result.Store, importer *osgi.BundleInfo, imp osgi.PackageImport) bool {
	locals := run.r.local.Exporters(run.ctx, imp.Name, imp.Range)
	if len(locals) > 1 {
		names := make([]string, len(locals))
		for i, c := range locals {
			names[i] = c.Key()
		}
		run.log.Debug("multiple exporters, using all", "package", imp.Name, "importer", importer.Name, "exporters", names)
	}
	ok := false
	for _, c := range locals {
		if run.branch(s, importer, c, observability.SourceLocal) {
			ok = true
		}
	}
	if ok || run.r.remote == nil {
		return ok
	}

	rb := run.r.remote.BestExporter(imp.Name, imp.Range, func(name string) bool { return run.r.blocked[name] })
	if rb == nil {
		return false
	}
	b, err := run.r.remote.Materialize(run.ctx, rb)
	if err != nil {
		run.log.Warn("fetch failed", "bundle", rb.Info.Key(), "package", imp.Name, "err", err)
		return false
	}
	return run.branch(s, importer, b, observability.SourceRemote)
}

// branch adds cand to a fork of s together with everything it requires and
// imports. The fork is merged only when every bundle it added has its
// required bundles and mandatory imports satisfied; otherwise it is discarded.
func (run *Run) branch(s result.Store, importer, cand *osgi.BundleInfo, source string) bool {
	fork := result.NewFork(s)
	undoMark, deferredMark := len(run.undo), len(run.deferred)

	run.depth++
	fork.AddBundle(cand)
	run.edge(importer.Name, cand.Name, depgraph.BundleImport)
	run.resolved(cand, source)
	ok := run.requirements(fork, cand, true) && run.forkImports(fork)
	added := fork.Added()
	run.depth--
	observability.Resolve().OnForkComplete(run.ctx, ok)

	if !ok {
		fork.Discard()
		run.rollback(undoMark)
		run.deferred = run.deferred[:deferredMark]
		run.log.Debug("discarded exporter", "bundle", cand.Key(), "importer", importer.Name)
		return false
	}
	if err := fork.Merge(); err != nil {
		run.log.Error("merge failed", "bundle", cand.Key(), "err", err)
		return false
	}
	if run.depth == 0 {
		for _, fn := range run.deferred {
			fn()
		}
		run.deferred, run.undo = nil, nil
		for _, b := range added {
			run.scanned[b.Key()] = true
		}
	}
	return true
}

// forkImports strictly resolves the imports of every bundle written to fork,
// including bundles that the imports themselves pull in.
func (run *Run) forkImports(fork *result.Fork) bool {
	checked := make(map[string]bool)
	for {
		progress := false
		for _, b := range fork.Added() {
			if checked[b.Key()] {
				continue
			}
			checked[b.Key()] = true
			progress = true
			if !run.imports(fork, b, true) {
				return false
			}
		}
		if !progress {
			return true
		}
	}
}

func (run *Run) setPackage(key string, st pkgState) {
	if run.depth > 0 {
		run.undo = append(run.undo, pkgUndo{key: key, prev: run.packages[key]})
	}
	run.packages[key] = st
}

func (run *Run) rollback(mark int) {
	for i := len(run.undo) - 1; i >= mark; i-- {
		u := run.undo[i]
		if run.packages[u.key] == pkgFailed {
			continue
		}
		if u.prev == 0 {
			delete(run.packages, u.key)
		} else {
			run.packages[u.key] = u.prev
		}
	}
	run.undo = run.undo[:mark]
}

func (run *Run) missPackage(imp osgi.PackageImport, importer *osgi.BundleInfo, strict bool) {
	if strict || imp.Optional {
		run.log.Debug("package not resolved", "package", imp.Name, "importer", importer.Name, "optional", imp.Optional)
		return
	}
	run.report.addPackage(imp.Name, importer.Name)
	observability.Resolve().OnUnresolved(run.ctx, observability.KindPackage, imp.Name)
}

// exported reports whether a bundle visible through s exports imp.
func exported(s result.Store, imp osgi.PackageImport) bool {
	for _, b := range result.All(s) {
		if b.Exports(imp.Name, imp.Range) {
			return true
		}
	}
	return false
}
