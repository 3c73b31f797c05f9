package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/notedb/notedb/internal/errors"
)

// Store is the SQLite-backed index database. A single write connection
// is used; SQLite serializes writers anyway and one connection avoids
// lock contention under WAL.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the index database at path.
// Use ":memory:" for an in-memory database in tests.
//
// A corrupted on-disk database is detected before open and cleared so
// the next sync rebuilds it from scratch.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.New(errors.ErrCodeFilePermission,
				"cannot create database directory", err)
		}

		if err := validateIntegrity(path); err != nil {
			slog.Warn("store_corrupted_clearing",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			removeDatabaseFiles(path)
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex,
			"cannot open index database", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.New(errors.ErrCodeCorruptIndex,
				fmt.Sprintf("cannot apply %s", pragma), err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if s.path != ":memory:" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS files (
		path  TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		hash  TEXT NOT NULL DEFAULT '',
		atime INTEGER NOT NULL DEFAULT 0,
		mtime INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS aliases (
		path  TEXT NOT NULL,
		alias TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		path TEXT NOT NULL,
		tag  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		source TEXT NOT NULL,
		dest   TEXT NOT NULL,
		kind   TEXT NOT NULL,
		pos    INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS citations (
		path     TEXT NOT NULL,
		cite_key TEXT NOT NULL,
		pos      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS refs (
		path TEXT NOT NULL,
		ref  TEXT NOT NULL,
		kind TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_aliases_path ON aliases(path)`,
	`CREATE INDEX IF NOT EXISTS idx_tags_path ON tags(path)`,
	`CREATE INDEX IF NOT EXISTS idx_links_source ON links(source)`,
	`CREATE INDEX IF NOT EXISTS idx_links_dest ON links(dest)`,
	`CREATE INDEX IF NOT EXISTS idx_citations_path ON citations(path)`,
	`CREATE INDEX IF NOT EXISTS idx_refs_path ON refs(path)`,
}

func (s *Store) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.New(errors.ErrCodeCorruptIndex, "cannot create schema", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		StateSchemaVersion, fmt.Sprintf("%d", CurrentSchemaVersion),
	)
	if err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "cannot record schema version", err)
	}
	return nil
}

// Reset drops every row and reinitializes the schema. Used by forced
// syncs to rebuild the index from scratch.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{TableFiles, TableAliases, TableTags, TableLinks, TableCitations, TableRefs, "meta"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return errors.New(errors.ErrCodeCorruptIndex,
				fmt.Sprintf("cannot drop table %s", table), err)
		}
	}
	return s.initSchema()
}

// ModTimes returns the stored modification time for every indexed file.
// This is the change detector's view of the database.
func (s *Store) ModTimes(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, mtime FROM files")
	if err != nil {
		return nil, errors.New(errors.ErrCodeDetectFailed, "cannot read indexed mtimes", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]time.Time)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, errors.New(errors.ErrCodeDetectFailed, "cannot scan indexed mtime", err)
		}
		out[path] = time.Unix(mtime, 0)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeDetectFailed, "cannot iterate indexed mtimes", err)
	}
	return out, nil
}

// GetFile returns the file record for path, or an ERR_201 error when the
// path is not indexed.
func (s *Store) GetFile(ctx context.Context, path string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT path, title, hash, atime, mtime FROM files WHERE path = ?", path)

	var rec FileRecord
	var atime, mtime int64
	err := row.Scan(&rec.Path, &rec.Title, &rec.Hash, &atime, &mtime)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeFileNotFound,
			fmt.Sprintf("%s is not indexed", path), nil)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot read file record", err)
	}

	rec.Atime = time.Unix(atime, 0)
	rec.Mtime = time.Unix(mtime, 0)
	return &rec, nil
}

// GetState reads a value from the meta table. Missing keys return "".
func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key)
	var value string
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.New(errors.ErrCodeCorruptIndex, "cannot read state", err)
	}
	return value, nil
}

// SetState writes a value to the meta table.
func (s *Store) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "cannot write state", err)
	}
	return nil
}

// Tx is one index transaction. Deferred operation logs are replayed
// against it during merge.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.New(errors.ErrCodeMergeFailed, "cannot begin transaction", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return errors.New(errors.ErrCodeMergeFailed, "cannot commit transaction", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// DeleteFile removes every row belonging to path, across all tables.
func (t *Tx) DeleteFile(ctx context.Context, path string) error {
	stmts := []string{
		"DELETE FROM files WHERE path = ?",
		"DELETE FROM aliases WHERE path = ?",
		"DELETE FROM tags WHERE path = ?",
		"DELETE FROM links WHERE source = ?",
		"DELETE FROM citations WHERE path = ?",
		"DELETE FROM refs WHERE path = ?",
	}
	for _, stmt := range stmts {
		if _, err := t.tx.ExecContext(ctx, stmt, path); err != nil {
			return errors.New(errors.ErrCodeMergeFailed,
				fmt.Sprintf("cannot delete rows for %s", path), err)
		}
	}
	return nil
}

// Apply replays one deferred operation.
func (t *Tx) Apply(ctx context.Context, op Op) error {
	switch op.Kind {
	case OpKindDelete:
		return t.DeleteFile(ctx, op.Path)

	case OpKindInsert:
		cols, ok := tableColumns[op.Table]
		if !ok {
			return errors.New(errors.ErrCodeMergeFailed,
				fmt.Sprintf("unknown table %q", op.Table), nil)
		}
		if len(op.Args) != len(cols) {
			return errors.New(errors.ErrCodeMergeFailed,
				fmt.Sprintf("table %q expects %d args, got %d", op.Table, len(cols), len(op.Args)), nil)
		}

		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			op.Table,
			strings.Join(cols, ", "),
			placeholders(len(cols)),
		)
		if _, err := t.tx.ExecContext(ctx, stmt, op.Args...); err != nil {
			return errors.New(errors.ErrCodeMergeFailed,
				fmt.Sprintf("insert into %s failed", op.Table), err)
		}
		return nil

	default:
		return errors.New(errors.ErrCodeMergeFailed,
			fmt.Sprintf("unknown op kind %d", op.Kind), nil)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// validateIntegrity checks an existing database before open. A missing
// file is fine; a file that fails the integrity check is not.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned %q", result)
	}
	return nil
}

// removeDatabaseFiles removes the database plus its WAL sidecar files.
func removeDatabaseFiles(path string) {
	_ = os.Remove(path)
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
}
