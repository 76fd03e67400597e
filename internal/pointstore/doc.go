// Package pointstore keeps ingested point-data rows in BadgerDB so repeated
// queries skip CSV parsing.
//
// Rows are keyed by a hash of the source identifier followed by the
// big-endian timestamp, so a prefix scan yields one source's rows in time
// order and re-ingesting a timestamp overwrites the earlier row. The store
// implements pointdata.Source.
package pointstore
