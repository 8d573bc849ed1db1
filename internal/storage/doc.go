// Package storage defines read access to the configuration hierarchy
// (workspace, project, service, api) served by carbon.
//
// Key types:
//
//   - Reader: the read-only collaborator interface the engine cache loads from
//   - ChangeEvent / ChangeListener: notifications that trigger a cache reload
//   - MemoryStore: thread-safe in-memory Reader, used by tests and embedders
//
// Records are returned in storage enumeration order. That order decides
// first-match-wins precedence in the engine, so implementations must keep it
// stable between calls.
package storage
