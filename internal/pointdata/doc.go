// Package pointdata turns raw per-junction rows into a device's point sample
// stream.
//
// A Source hands out raw rows for one junction source in ingestion order; the
// Aggregator sorts them, keeps the latest-ingested row for duplicate
// timestamps, and for a metadevice inner-joins the junction streams on
// timestamp, summing power and averaging the environmental channels. The
// package also ships the CSV reader for the point-data export and a directory
// Source that indexes an export tree.
package pointdata
