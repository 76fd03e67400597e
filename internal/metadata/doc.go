// Package metadata reads the device registry kept as files alongside the
// point-data exports: per-batch module-metadata.json and site-metadata.json
// documents, the outdoor modules setup sheet, and the censored days sheet.
//
// A Directory loads every file under its root into an immutable Snapshot.
// The snapshot version is a content hash, so query results keyed by it stay
// valid until a file actually changes and Reload is called.
package metadata
