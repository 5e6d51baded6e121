package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const DefaultPath = "./lending-admin.db"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    key TEXT PRIMARY KEY,
    content BLOB NOT NULL,
    content_hash TEXT NOT NULL,
    modified_at DATETIME NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

type SQLite struct {
	path string
	conn *sql.DB
}

// NewSQLite returns an unopened database at path. ":memory:" is accepted.
func NewSQLite(path string) *SQLite {
	if path == "" {
		path = DefaultPath
	}
	return &SQLite{path: path}
}

func (s *SQLite) InitDB() error {
	conn, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("error opening database %s: %w", s.path, err)
	}

	// Every connection to ":memory:" is a separate database.
	conn.SetMaxOpenConns(1)

	res, err := conn.Exec(schema)
	if err != nil {
		conn.Close()
		return fmt.Errorf("error creating schema: %w", err)
	}
	s.conn = conn

	dbLogger.Info().Str("path", s.path).Any("db_result", res).Msg("Database initialized")
	return nil
}

func (s *SQLite) Get() *sql.DB {
	return s.conn
}

func (s *SQLite) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *SQLite) Query(query string, args ...any) (*sql.Rows, error) {
	dbLogger.Debug().Str("query", query).Msg("Query")
	return s.conn.Query(query, args...)
}

func (s *SQLite) Exec(query string, args ...any) (sql.Result, error) {
	dbLogger.Debug().Str("query", query).Msg("Exec")
	return s.conn.Exec(query, args...)
}
