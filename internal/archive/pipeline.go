// Package archive moves classified documents into the category tree,
// verifies the copy and records content fingerprints so the same document
// is never archived twice.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gedworks/archive-cli/internal/classify"
	"github.com/gedworks/archive-cli/internal/hash"
	"github.com/gedworks/archive-cli/internal/model"
	"github.com/gedworks/archive-cli/internal/store"
)

// Pipeline runs the per-file archival transaction:
// hash, duplicate check, classify, copy, verify, index.
type Pipeline struct {
	store      store.Store
	engine     *classify.Engine
	tagger     MediaTagger
	autoDelete bool

	// afterCopy runs between copy and verification with the staged
	// copy's path. Tests use it to corrupt the copy or to line workers
	// up on a barrier.
	afterCopy func(stagedPath string)
}

// NewPipeline builds a Pipeline. tagger may be nil to disable media
// tagging; autoDelete removes the source after a verified archive.
func NewPipeline(st store.Store, engine *classify.Engine, tagger MediaTagger, autoDelete bool) *Pipeline {
	return &Pipeline{
		store:      st,
		engine:     engine,
		tagger:     tagger,
		autoDelete: autoDelete,
	}
}

// Process archives one file under destRoot and returns its outcome. It
// never panics or returns an error; every failure mode is an outcome kind.
func (p *Pipeline) Process(ctx context.Context, sourcePath, destRoot string) model.ArchivalOutcome {
	outcome := model.ArchivalOutcome{SourcePath: sourcePath}

	fp, err := hash.File(sourcePath)
	if err != nil {
		return p.failed(outcome, model.OutcomeOtherError, err)
	}

	existing, err := p.store.LookupFingerprint(ctx, fp)
	if err != nil {
		return p.failed(outcome, model.OutcomeOtherError, eris.Wrap(err, "archive: lookup fingerprint"))
	}
	if existing != "" {
		outcome.Kind = model.OutcomeDuplicate
		outcome.DuplicateOf = existing
		zap.L().Info("duplicate skipped",
			zap.String("source", sourcePath),
			zap.String("already_at", existing))
		return outcome
	}

	decision, err := p.engine.Classify(ctx, sourcePath)
	if err != nil {
		var extractErr *classify.ExtractionError
		if errors.As(err, &extractErr) {
			return p.failed(outcome, model.OutcomeExtractionError, err)
		}
		return p.failed(outcome, model.OutcomeOtherError, err)
	}

	outcome.Category = decision.Category
	outcome.Subcategory = decision.Subcategory
	outcome.IsNewCategory = decision.IsNewCategory
	outcome.Rationale = decision.Rationale

	destDir := filepath.Join(destRoot, decision.Category, decision.Subcategory)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return p.failed(outcome, model.OutcomeOtherError, eris.Wrap(err, "archive: create destination dir"))
	}

	// Copy to a worker-unique staged name first. Concurrent workers
	// archiving the same content compute the same final path, so nothing
	// may touch destPath until our copy is verified.
	destPath := filepath.Join(destDir, decision.ArchivalFileName)
	stagePath := destPath + "." + uuid.NewString() + ".partial"
	if err := copyFile(sourcePath, stagePath); err != nil {
		return p.failed(outcome, model.OutcomeOtherError, err)
	}
	outcome.DestinationPath = stagePath

	if p.afterCopy != nil {
		p.afterCopy(stagePath)
	}

	// Verify the staged copy. On mismatch it is kept for inspection and
	// the fingerprint is not indexed.
	destFp, err := hash.File(stagePath)
	if err != nil {
		return p.failed(outcome, model.OutcomeIntegrityError, eris.Wrap(err, "archive: verify copy"))
	}
	if destFp != fp {
		return p.failed(outcome, model.OutcomeIntegrityError,
			eris.Errorf("archive: copy verification failed for %s", stagePath))
	}

	// Commit phase. A file that got this far finishes its rename and
	// index write even when the batch is being cancelled; anything less
	// leaves a verified copy the index does not know about.
	commitCtx := context.WithoutCancel(ctx)

	// If a concurrent winner already renamed into destPath the rename
	// replaces it with byte-identical, verified content.
	if err := os.Rename(stagePath, destPath); err != nil {
		return p.failed(outcome, model.OutcomeOtherError, eris.Wrapf(err, "archive: move into place %s", destPath))
	}
	outcome.DestinationPath = destPath

	inserted, err := p.store.InsertFingerprint(commitCtx, fp, destPath)
	if err != nil {
		return p.failed(outcome, model.OutcomeOtherError, eris.Wrap(err, "archive: index fingerprint"))
	}
	if !inserted {
		// A concurrent worker indexed the same content first. Defer to
		// the winner; remove our copy only when it is not the indexed
		// path, so the loser never deletes the file the index points at.
		winner, lookupErr := p.store.LookupFingerprint(commitCtx, fp)
		if lookupErr == nil && winner != destPath {
			if removeErr := os.Remove(destPath); removeErr != nil {
				outcome.Warnings = append(outcome.Warnings,
					fmt.Sprintf("could not remove redundant copy %s: %v", destPath, removeErr))
			}
		}
		outcome.Kind = model.OutcomeDuplicate
		outcome.DestinationPath = ""
		if lookupErr == nil {
			outcome.DuplicateOf = winner
		}
		return outcome
	}

	outcome.Kind = model.OutcomeArchived

	if p.autoDelete {
		if err := os.Remove(sourcePath); err != nil {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("could not delete source %s: %v", sourcePath, err))
		}
	}

	if p.tagger != nil {
		if err := p.tagger.Tag(destPath, decision.Category, decision.Subcategory); err != nil {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("media tagging failed: %v", err))
		}
	}

	zap.L().Info("archived",
		zap.String("source", sourcePath),
		zap.String("dest", destPath),
		zap.String("category", decision.Category),
		zap.String("subcategory", decision.Subcategory),
		zap.Bool("new_category", decision.IsNewCategory))

	return outcome
}

func (p *Pipeline) failed(outcome model.ArchivalOutcome, kind model.OutcomeKind, err error) model.ArchivalOutcome {
	outcome.Kind = kind
	outcome.Error = err.Error()
	zap.L().Warn("archival failed",
		zap.String("source", outcome.SourcePath),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return outcome
}

// copyFile copies src to dst, preserving the source mode best-effort.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "archive: open %s", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "archive: create %s", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return eris.Wrapf(err, "archive: copy to %s", dst)
	}
	if err := out.Close(); err != nil {
		return eris.Wrapf(err, "archive: close %s", dst)
	}

	if info, err := in.Stat(); err == nil {
		_ = os.Chmod(dst, info.Mode().Perm())
	}
	return nil
}
