// Package pkg holds the launchtower libraries.
//
// # Overview
//
// Launchtower computes everything an OSGi product needs to start: the bundles
// named by its descriptor, the bundles and features those pull in, and the
// bundles exporting the packages they import. The packages are layered:
//
//  1. [osgi], [product] - descriptors: manifests, versions, features, products
//  2. [storage], [p2] - bundle sources: local directories and p2 repositories
//  3. [resolve], [result], [exclude] - the resolution engine and its output
//  4. [depgraph], [io] - diagnostics and serialized launch documents
//  5. [cache], [config], [observability], [errors] - infrastructure
//
// # Architecture
//
//	.product descriptor
//	         ↓
//	    [product] (plugins, features, start levels, launch args)
//	         ↓
//	    [resolve] ←── [storage] local plugins/features
//	         ↑   ←── [p2] indexed repositories (cached in [cache])
//	         ↓
//	    [result].Result + [resolve].Report
//	         ↓
//	    [io] launch.json, [depgraph] trees / DOT / SVG
//
// # Quick Start
//
//	local := storage.New(storage.Options{PluginDirs: []string{"plugins"}})
//	p, err := product.Read("acme.product")
//	if err != nil {
//	    return err
//	}
//	res, report, err := resolve.New(local, nil, resolve.Options{}).ResolveProduct(ctx, p)
//	if err != nil {
//	    return err
//	}
//	for _, b := range res.AllBundles() {
//	    fmt.Println(b.Name, b.Version, b.Path)
//	}
//	fmt.Println(report.PackageNames())
package pkg
