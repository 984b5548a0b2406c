// Package docstore defines the document-store contract used by the lending
// engine: a versioned Document DTO, typed storage errors, dependency-free
// observability interfaces, and an explicit change-feed subscription hub.
//
// The contract is deliberately narrow. Engines (Postgres, SQLite, memory)
// implement optimistic concurrency with a per-document version counter:
// a batch of writes either applies completely or not at all, and any version
// mismatch surfaces as ErrConcurrencyConflict so callers can re-read and
// retry. Business-rule outcomes are never expressed through this package.
package docstore
