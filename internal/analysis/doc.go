// Package analysis owns an analysis session: an immutable settings snapshot,
// the registry and raw-row collaborators, and the query cache that memoizes
// point streams, daily series, T80 results, and summaries per device.
//
// Changing settings means building a new Session. When raw files or
// metadata change on disk, callers call Invalidate; the session then reloads
// whatever collaborators support reloading and drops every cached result.
package analysis
