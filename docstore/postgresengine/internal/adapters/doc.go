// Package adapters wraps the supported database access libraries (pgxpool,
// sqlx, database/sql) behind one narrow interface so the engine can build
// plain SQL strings and stay agnostic of the connection technology.
package adapters
