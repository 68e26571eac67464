// Package io reads and writes resolved launch configurations as JSON.
//
// A [Document] is the serialized form of a [result.Result] plus the
// [resolve.Report] of what the run could not find. It is what the resolve
// command writes next to the generated config.ini, and what downstream
// tooling reads to inspect a launch without re-running resolution.
//
// # Format
//
//	{
//	  "run_id": "5f0c...",
//	  "product": {"name": "Acme IDE", "id": "org.acme.ide.product"},
//	  "splash": "/opt/platform/plugins/org.acme.branding_1.0.0/splash.bmp",
//	  "program_args": ["-showsplash"],
//	  "vm_args": ["-Xmx2g"],
//	  "bundles": [
//	    {"name": "org.acme.core", "version": "1.2.0", "path": "...", "start_level": 4, "auto_start": true}
//	  ],
//	  "features": [{"name": "org.acme.feature", "version": "1.4.0"}],
//	  "unresolved": {"bundles": [{"name": "org.missing", "from": "org.acme.core"}]}
//	}
//
// Bundles are ordered by name, then by insertion order of their versions.
// Features are ordered by name.
//
// Use [WriteJSON] / [ReadJSON] for streams and [ExportJSON] / [ImportJSON]
// for files.
package io
