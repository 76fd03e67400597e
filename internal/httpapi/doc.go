// Package httpapi serves analysis queries over HTTP for plotting and
// reporting clients.
//
// Routes (all JSON):
//
//	GET  /v1/health
//	GET  /v1/devices
//	GET  /v1/devices/{id}/points?from=YYYY-MM-DD&to=YYYY-MM-DD
//	GET  /v1/devices/{id}/daily?valid=true
//	GET  /v1/devices/{id}/t80
//	GET  /v1/devices/{id}/summary
//	GET  /v1/summary?active=true&batch=P-0042&include_excluded=true
//	POST /v1/cache/invalidate
//
// Unknown devices and incomplete metadevices answer 404, missing inputs 422.
// A device without valid days still answers 200 with absent fields.
package httpapi
