// Package postgresengine implements the docstore contract on PostgreSQL.
//
// Documents are rows in a single table keyed by (collection, id) with the
// payload stored as JSONB and a version counter used for optimistic
// concurrency control. A write batch runs on one database transaction:
// inserts use ON CONFLICT DO NOTHING, updates are compare-and-swap guarded
// by the expected version, and any statement that affects zero rows rolls
// the whole batch back.
//
// The engine supports pgxpool, sqlx, and database/sql connections through
// internal adapters and accepts dependency-free observability collectors
// (logging, metrics, tracing) via functional options.
//
// Expected schema:
//
//	CREATE TABLE documents (
//	    collection TEXT        NOT NULL,
//	    id         TEXT        NOT NULL,
//	    version    BIGINT      NOT NULL,
//	    payload    JSONB       NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (collection, id)
//	);
package postgresengine
