// Package registry persists the device registry in SQLite.
//
// The store mirrors a metadata.Snapshot: modules with their junctions and
// deployment windows, per-module indoor and censor windows, the site
// location, site censor windows, and snow days. Import replaces the whole
// registry in one transaction and bumps the revision that Version reports,
// so cached analysis results keyed by it are never reused across imports.
// Imports take an advisory file lock so only one writer runs at a time.
package registry
