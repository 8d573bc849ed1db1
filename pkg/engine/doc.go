// Package engine is the mock request pipeline.
//
// A Cache compiles the active workspace into an immutable Snapshot of
// CachedEntry values, one per enabled api, and republishes it whenever
// storage or the active workspace changes. For each inbound request the
// Handler:
//
//  1. finds the first entry whose method, host, prefix and URL pattern match
//     (MatchRequest, 404 when none does),
//  2. builds the canonical mock.MockRequest (BuildRequest),
//  3. picks the first enabled provider eligible for the project's active
//     scenario whose matcher passes (SelectProvider, 422 when none does),
//  4. dispatches on the provider type,
//
// and records exactly one requestlog.Entry, whatever the outcome.
//
// Paths under InternalPrefix are served by the engine itself (health, request
// log, cache diagnostics and metrics) and never reach the matcher.
package engine
