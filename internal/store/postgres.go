package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/gedworks/archive-cli/internal/model"
)

// pgxPool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgxPool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// newPostgresWithPool wires an existing pool; used by tests.
func newPostgresWithPool(pool pgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
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
	archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
	report     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_subcategories_category ON subcategories(category);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Taxonomy ---

func (s *PostgresStore) Taxonomy(ctx context.Context) (model.Taxonomy, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.name, sc.name
		 FROM categories c
		 LEFT JOIN subcategories sc ON sc.category = c.name
		 ORDER BY c.position, sc.position`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load taxonomy")
	}
	defer rows.Close()

	var tax model.Taxonomy
	idx := make(map[string]int)
	for rows.Next() {
		var cat string
		var sub *string
		if err := rows.Scan(&cat, &sub); err != nil {
			return nil, eris.Wrap(err, "postgres: scan taxonomy row")
		}
		i, ok := idx[cat]
		if !ok {
			i = len(tax)
			idx[cat] = i
			tax = append(tax, model.Category{Name: cat})
		}
		if sub != nil {
			tax[i].Subcategories = append(tax[i].Subcategories, *sub)
		}
	}
	return tax, eris.Wrap(rows.Err(), "postgres: iterate taxonomy")
}

func (s *PostgresStore) EnsureCategory(ctx context.Context, name string) (bool, error) {
	name = model.NormalizeCategory(name)
	if name == "" {
		return false, eris.New("postgres: empty category name")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO categories (name, position)
		 SELECT $1, COALESCE(MAX(position) + 1, 0) FROM categories
		 ON CONFLICT (name) DO NOTHING`,
		name,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: ensure category %s", name)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) EnsureSubcategory(ctx context.Context, category, sub string) (bool, error) {
	category = model.NormalizeCategory(category)
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return false, eris.New("postgres: empty subcategory name")
	}

	if _, err := s.EnsureCategory(ctx, category); err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO subcategories (category, name, position)
		 SELECT $1, $2, COALESCE(MAX(position) + 1, 0) FROM subcategories WHERE category = $1
		 ON CONFLICT (category, name) DO NOTHING`,
		category, sub,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: ensure subcategory %s/%s", category, sub)
	}
	return tag.RowsAffected() > 0, nil
}

// --- Duplicate index ---

func (s *PostgresStore) LookupFingerprint(ctx context.Context, fp model.Fingerprint) (string, error) {
	var path string
	err := s.pool.QueryRow(ctx,
		`SELECT path FROM file_index WHERE fingerprint = $1`, string(fp),
	).Scan(&path)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "postgres: lookup fingerprint")
	}
	return path, nil
}

func (s *PostgresStore) InsertFingerprint(ctx context.Context, fp model.Fingerprint, path string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO file_index (fingerprint, path, archived_at) VALUES ($1, $2, $3)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		string(fp), path, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: insert fingerprint")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) IndexSize(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM file_index`).Scan(&n)
	return n, eris.Wrap(err, "postgres: index size")
}

// --- Settings ---

func (s *PostgresStore) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: get setting %s", key)
	}
	return value, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	return eris.Wrapf(err, "postgres: set setting %s", key)
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, destRoot string, fileCount int) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, dest_root, status, file_count, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, destRoot, string(model.RunStatusQueued), fileCount, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, report *model.BatchReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET report = $1, status = $2, updated_at = $3 WHERE id = $4`,
		reportJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, dest_root, status, file_count, report, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, dest_root, status, file_count, report, created_at, updated_at
		 FROM runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var reportJSON []byte

	err := row.Scan(&r.ID, &r.DestRoot, &r.Status, &r.FileCount, &reportJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if len(reportJSON) > 0 {
		r.Report = &model.BatchReport{}
		if err := json.Unmarshal(reportJSON, r.Report); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
	}
	return &r, nil
}
