// Package pv holds the value types shared by the outdoor module analytics
// pipeline: devices and their junctions, raw point samples, daily records
// with quality flags, T80 results, and per-device summaries.
//
// Every value here is derived deterministically from raw rows, a metadata
// snapshot, and an analysis configuration, and is never mutated after it is
// built. The typed errors in this package let callers tell an incomplete
// metadevice, a device without valid data, and a missing input apart with
// errors.As.
package pv
