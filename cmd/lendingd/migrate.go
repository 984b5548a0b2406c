package main

import (
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS %s (
    collection TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    version    BIGINT      NOT NULL,
    payload    JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_%s_payload ON %s USING GIN (payload);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS %s (
    collection TEXT    NOT NULL,
    id         TEXT    NOT NULL,
    version    INTEGER NOT NULL,
    payload    TEXT    NOT NULL,
    updated_at TEXT    NOT NULL,
    PRIMARY KEY (collection, id)
);
`

func migrateCmd(config *serverConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the documents table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch config.storageDriver {
			case driverPostgres:
				return migratePostgres(cmd, config)
			case driverSQLite:
				return migrateSQLite(cmd, config)
			default:
				return fmt.Errorf("unknown storage driver %q", config.storageDriver)
			}
		},
	}
}

func migratePostgres(cmd *cobra.Command, config *serverConfig) error {
	conn, err := pgx.Connect(cmd.Context(), config.postgresDSN)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer func() { _ = conn.Close(cmd.Context()) }()

	ddl := fmt.Sprintf(postgresSchema, config.tableName, config.tableName, config.tableName)
	if _, err := conn.Exec(cmd.Context(), ddl); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	cmd.Printf("schema ready in table %q\n", config.tableName)

	return nil
}

func migrateSQLite(cmd *cobra.Command, config *serverConfig) error {
	db, err := openSQLite(config.sqlitePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(fmt.Sprintf(sqliteSchema, config.tableName)); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	cmd.Printf("schema ready in table %q\n", config.tableName)

	return nil
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}

	return db, nil
}
