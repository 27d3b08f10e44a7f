// Package sqlitestore implements the graph store contract on an embedded
// SQLite database. Nodes, labels and properties live in narrow tables keyed
// by node id; property values carry a kind column so the original Go type
// survives the round trip. The store is meant for embedded deployments and
// tests, not for multi-process access.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/joewhite86/frogr/graph"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT
);
CREATE TABLE IF NOT EXISTS node_labels (
	node_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	label   TEXT    NOT NULL,
	PRIMARY KEY (node_id, label)
);
CREATE INDEX IF NOT EXISTS node_labels_by_label ON node_labels (label, node_id);
CREATE TABLE IF NOT EXISTS node_props (
	node_id    INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	name       TEXT    NOT NULL,
	kind       INTEGER NOT NULL,
	text_value TEXT,
	int_value  INTEGER,
	real_value REAL,
	blob_value BLOB,
	PRIMARY KEY (node_id, name)
);
CREATE INDEX IF NOT EXISTS node_props_by_value ON node_props (name, text_value, int_value);
CREATE TABLE IF NOT EXISTS edges (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	type     TEXT    NOT NULL,
	start_id INTEGER NOT NULL REFERENCES nodes(id),
	end_id   INTEGER NOT NULL REFERENCES nodes(id)
);
CREATE INDEX IF NOT EXISTS edges_by_start ON edges (start_id, type);
CREATE INDEX IF NOT EXISTS edges_by_end ON edges (end_id, type);
CREATE TABLE IF NOT EXISTS edge_props (
	edge_id    INTEGER NOT NULL REFERENCES edges(id) ON DELETE CASCADE,
	name       TEXT    NOT NULL,
	kind       INTEGER NOT NULL,
	text_value TEXT,
	int_value  INTEGER,
	real_value REAL,
	blob_value BLOB,
	PRIMARY KEY (edge_id, name)
);
CREATE TABLE IF NOT EXISTS unique_constraints (
	label    TEXT NOT NULL,
	property TEXT NOT NULL,
	PRIMARY KEY (label, property)
);
`

// Store is a SQLite backed graph store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ graph.Store = (*Store)(nil)

// Open creates or opens a store at the given DSN. Use ":memory:" for a
// throwaway in-memory store. The connection pool is capped at one
// connection, SQLite serializes writers anyway.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}
	logger.Debug("store opened", zap.String("dsn", dsn))
	return &Store{db: db, logger: logger}, nil
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: begin: %w", err)
	}
	return &tx{sqlTx: sqlTx, logger: s.logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
