// Package p2 reads Eclipse p2 repositories over HTTP.
//
// # Indexing
//
// [NewIndex] walks every configured repository. Each location is checked for
// a composite descriptor first:
//
//	compositeContent.jar, compositeContent.xml.xz, compositeContent.xml
//
// A composite lists child locations, which are indexed the same way and in
// parallel. A composite none of whose children can be indexed is itself a
// failure, and each location is visited at most once per index. A location without a composite descriptor is a leaf and must
// offer a content index:
//
//	content.jar, content.xml.xz, content.xml
//
// The units of every leaf are merged into one lookup by bundle name, by
// feature name and (lazily) by exported package. Parsed leaf unit lists are
// stored in a [cache.Cache] so later runs skip the download.
//
// # Artifacts
//
// Indexing only reads metadata. A bundle's jar is downloaded on first use by
// [Index.Materialize]. Concurrent requests for the same artifact share a
// single transfer. Files are written to a temporary name and renamed into
// place under a process-wide lock, so readers never see partial artifacts.
//
// Every download is preceded by a HEAD request. A response whose final URL
// differs from the requested one (after redirects) counts as not found.
package p2
