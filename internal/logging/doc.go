// Package logging assembles structured slog loggers and formatting helpers used
// across pact.
//
// It owns the configurable console/JSON handlers, picks a format automatically
// when attached to a terminal, and exposes context-aware helpers so request
// handlers can tag log lines with session and request identifiers. The package
// also provides a no-op logger for tests and for analytic code constructed
// without a logger.
package logging
