package store

import (
	"context"
	"time"

	"github.com/notedb/notedb/internal/errors"
)

// Counts returns the row count of every index table.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	tables := []string{TableFiles, TableAliases, TableTags, TableLinks, TableCitations, TableRefs}
	out := make(map[string]int, len(tables))

	for _, table := range tables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot count "+table, err)
		}
		out[table] = n
	}
	return out, nil
}

// ListFiles returns all file records ordered by path. limit <= 0 means
// no limit.
func (s *Store) ListFiles(ctx context.Context, limit int) ([]*FileRecord, error) {
	query := "SELECT path, title, hash, atime, mtime FROM files ORDER BY path"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot list files", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*FileRecord
	for rows.Next() {
		var rec FileRecord
		var atime, mtime int64
		if err := rows.Scan(&rec.Path, &rec.Title, &rec.Hash, &atime, &mtime); err != nil {
			return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot scan file record", err)
		}
		rec.Atime = time.Unix(atime, 0)
		rec.Mtime = time.Unix(mtime, 0)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// FileDetail returns the full indexed view of one note.
func (s *Store) FileDetail(ctx context.Context, path string) (*FileDetail, error) {
	rec, err := s.GetFile(ctx, path)
	if err != nil {
		return nil, err
	}

	detail := &FileDetail{Record: *rec}

	if detail.Aliases, err = s.stringColumn(ctx,
		"SELECT alias FROM aliases WHERE path = ? ORDER BY alias", path); err != nil {
		return nil, err
	}
	if detail.Tags, err = s.stringColumn(ctx,
		"SELECT tag FROM tags WHERE path = ? ORDER BY tag", path); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT source, dest, kind, pos FROM links WHERE source = ? ORDER BY pos", path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot read links", err)
	}
	for rows.Next() {
		var l LinkRow
		if err := rows.Scan(&l.Source, &l.Dest, &l.Kind, &l.Pos); err != nil {
			_ = rows.Close()
			return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot scan link", err)
		}
		detail.Links = append(detail.Links, l)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT path, cite_key, pos FROM citations WHERE path = ? ORDER BY pos", path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot read citations", err)
	}
	for rows.Next() {
		var c CitationRow
		if err := rows.Scan(&c.Path, &c.CiteKey, &c.Pos); err != nil {
			_ = rows.Close()
			return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot scan citation", err)
		}
		detail.Citations = append(detail.Citations, c)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT path, ref, kind FROM refs WHERE path = ? ORDER BY ref", path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot read refs", err)
	}
	for rows.Next() {
		var r RefRow
		if err := rows.Scan(&r.Path, &r.Ref, &r.Kind); err != nil {
			_ = rows.Close()
			return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot scan ref", err)
		}
		detail.Refs = append(detail.Refs, r)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return detail, nil
}

// Backlinks returns the links pointing at dest, ordered by source path.
func (s *Store) Backlinks(ctx context.Context, dest string) ([]LinkRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT source, dest, kind, pos FROM links WHERE dest = ? ORDER BY source, pos", dest)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot read backlinks", err)
	}
	defer func() { _ = rows.Close() }()

	var out []LinkRow
	for rows.Next() {
		var l LinkRow
		if err := rows.Scan(&l.Source, &l.Dest, &l.Kind, &l.Pos); err != nil {
			return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot scan backlink", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.New(errors.ErrCodeCorruptIndex, "scan failed", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
