// Package store persists the taxonomy, the duplicate index, batch run
// history and scalar settings behind a single interface with SQLite and
// Postgres backends.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/gedworks/archive-cli/internal/config"
	"github.com/gedworks/archive-cli/internal/model"
)

// Setting keys used by the archive commands.
const (
	SettingLastDestination = "last_destination"
)

// Store defines the persistence interface for the archival pipeline.
//
// Mutating taxonomy operations are durable before they return: callers may
// report a category as created only after EnsureCategory has committed.
// Both backends serialize writes, so the returned "inserted" booleans are
// linearizable across concurrent workers — exactly one caller observes
// true for a given new category.
type Store interface {
	// Taxonomy
	Taxonomy(ctx context.Context) (model.Taxonomy, error)
	EnsureCategory(ctx context.Context, name string) (bool, error)
	EnsureSubcategory(ctx context.Context, category, sub string) (bool, error)

	// Duplicate index. Fingerprints map to the first successfully archived
	// path; entries are never overwritten or removed automatically.
	LookupFingerprint(ctx context.Context, fp model.Fingerprint) (string, error)
	InsertFingerprint(ctx context.Context, fp model.Fingerprint, path string) (bool, error)
	IndexSize(ctx context.Context) (int, error)

	// Settings
	Setting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Runs
	CreateRun(ctx context.Context, destRoot string, fileCount int) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, report *model.BatchReport) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver, runs migrations and
// seeds the default taxonomy on a fresh database.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		st, err = NewSQLite(cfg.Path)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := seedDefaults(ctx, st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// seedDefaults inserts the default classification plan when the taxonomy
// is empty. Idempotent.
func seedDefaults(ctx context.Context, st Store) error {
	tax, err := st.Taxonomy(ctx)
	if err != nil {
		return err
	}
	if len(tax) > 0 {
		return nil
	}
	for _, cat := range model.DefaultTaxonomy() {
		if _, err := st.EnsureCategory(ctx, cat.Name); err != nil {
			return err
		}
		for _, sub := range cat.Subcategories {
			if _, err := st.EnsureSubcategory(ctx, cat.Name, sub); err != nil {
				return err
			}
		}
	}
	return nil
}
