// Command pact is the operator CLI for PV outdoor module analytics.
//
// Queries run in-process against the configured registry and point-data
// collaborators; `pact serve` exposes the same session over HTTP.
package main
