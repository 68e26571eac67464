// Package resolve computes the bundle closure of a product.
//
// Resolution runs in two passes over a [result.Result]. The first pass walks
// the product's plugins and features and follows Require-Bundle, Fragment-Host
// and feature nesting, taking bundles from local plugin directories first and
// from the remote repository index second. The second pass satisfies
// Import-Package statements that nothing in the result exports yet. Each
// candidate exporter is tried inside a [result.Fork], so a candidate whose own
// requirements cannot be met leaves no trace.
//
// Missing bundles, features and packages are never errors. They are collected
// in a [Report] and logged; only cancellation aborts a run.
//
// # Usage
//
//	r := resolve.New(store, index, resolve.Options{Env: env, Logger: logger})
//	res, report, err := r.ResolveProduct(ctx, prod)
//
// A Resolver is not safe for concurrent use.
package resolve
