// Package osgi models OSGi bundles and features as they appear on disk and in
// p2 repositories.
//
// # Versions
//
// [Version] is a three-part version (major.minor.micro) with an optional
// qualifier. Ordering compares the numeric parts only; the qualifier is kept
// for display and identity but two versions differing only in qualifier
// compare equal.
//
// [VersionRange] is an interval over two versions with independently
// inclusive or exclusive bounds:
//
//	r, _ := osgi.ParseRange("[1.0.0,2.0.0)")
//	r.Includes(osgi.MustParseVersion("1.5.0")) // true
//	r.Includes(osgi.MustParseVersion("2.0.0")) // false
//
// A bare version ("1.2") means "at least this version", and the empty string or
// "0.0.0" means any version.
//
// # Manifests
//
// [ParseManifest] turns the main section of a META-INF/MANIFEST.MF into a
// [BundleInfo]. List headers (Require-Bundle, Import-Package, Export-Package)
// are split on commas outside quoted segments, so
//
//	Require-Bundle: foo;bar="1,2"
//
// yields exactly one requirement named "foo". Entries of Require-Bundle marked
// resolution:=optional are dropped.
//
// [ReadBundle] locates the manifest inside a jar or an exploded bundle
// directory and parses it.
//
// # Features
//
// [ParseFeature] reads a feature.xml into a [FeatureInfo]: the plugins and
// nested features the feature pulls in. Features ship no code of their own.
//
// # Filters
//
// [ParseFilter] evaluates the LDAP-style filters used by p2 units and feature
// plugins against a target [Env].
package osgi
