package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/gedworks/archive-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Concurrent pipeline workers share this handle; a single connection
	// plus WAL keeps writes serialized without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS categories (
	name     TEXT PRIMARY KEY,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subcategories (
	category TEXT NOT NULL REFERENCES categories(name) ON DELETE CASCADE,
	name     TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (category, name)
);

CREATE TABLE IF NOT EXISTS file_index (
	fingerprint TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	archived_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	dest_root  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	file_count INTEGER NOT NULL DEFAULT 0,
	report     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_subcategories_category ON subcategories(category);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Taxonomy ---

func (s *SQLiteStore) Taxonomy(ctx context.Context) (model.Taxonomy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.name, sc.name
		 FROM categories c
		 LEFT JOIN subcategories sc ON sc.category = c.name
		 ORDER BY c.position, sc.position`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load taxonomy")
	}
	defer rows.Close()

	var tax model.Taxonomy
	idx := make(map[string]int)
	for rows.Next() {
		var cat string
		var sub sql.NullString
		if err := rows.Scan(&cat, &sub); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan taxonomy row")
		}
		i, ok := idx[cat]
		if !ok {
			i = len(tax)
			idx[cat] = i
			tax = append(tax, model.Category{Name: cat})
		}
		if sub.Valid {
			tax[i].Subcategories = append(tax[i].Subcategories, sub.String)
		}
	}
	return tax, eris.Wrap(rows.Err(), "sqlite: iterate taxonomy")
}

func (s *SQLiteStore) EnsureCategory(ctx context.Context, name string) (bool, error) {
	name = model.NormalizeCategory(name)
	if name == "" {
		return false, eris.New("sqlite: empty category name")
	}

	// The WHERE clause is required: SQLite refuses ON CONFLICT after a
	// bare SELECT source to keep the grammar unambiguous.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, position)
		 SELECT ?, COALESCE(MAX(position) + 1, 0) FROM categories WHERE true
		 ON CONFLICT(name) DO NOTHING`,
		name,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: ensure category %s", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) EnsureSubcategory(ctx context.Context, category, sub string) (bool, error) {
	category = model.NormalizeCategory(category)
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return false, eris.New("sqlite: empty subcategory name")
	}

	if _, err := s.EnsureCategory(ctx, category); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subcategories (category, name, position)
		 SELECT ?, ?, COALESCE(MAX(position) + 1, 0) FROM subcategories WHERE category = ?
		 ON CONFLICT(category, name) DO NOTHING`,
		category, sub, category,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: ensure subcategory %s/%s", category, sub)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

// --- Duplicate index ---

func (s *SQLiteStore) LookupFingerprint(ctx context.Context, fp model.Fingerprint) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx,
		`SELECT path FROM file_index WHERE fingerprint = ?`, string(fp),
	).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: lookup fingerprint")
	}
	return path, nil
}

func (s *SQLiteStore) InsertFingerprint(ctx context.Context, fp model.Fingerprint, path string) (bool, error) {
	// First writer wins; an existing entry is never overwritten.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO file_index (fingerprint, path, archived_at) VALUES (?, ?, ?)
		 ON CONFLICT(fingerprint) DO NOTHING`,
		string(fp), path, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert fingerprint")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) IndexSize(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_index`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: index size")
}

// --- Settings ---

func (s *SQLiteStore) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: get setting %s", key)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return eris.Wrapf(err, "sqlite: set setting %s", key)
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, destRoot string, fileCount int) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, dest_root, status, file_count, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, destRoot, string(model.RunStatusQueued), fileCount, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		DestRoot:  destRoot,
		Status:    model.RunStatusQueued,
		FileCount: fileCount,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, report *model.BatchReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET report = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(reportJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dest_root, status, file_count, report, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dest_root, status, file_count, report, created_at, updated_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var reportJSON sql.NullString

	err := row.Scan(&r.ID, &r.DestRoot, &r.Status, &r.FileCount, &reportJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if reportJSON.Valid {
		r.Report = &model.BatchReport{}
		if err := json.Unmarshal([]byte(reportJSON.String), r.Report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
	}
	return &r, nil
}
