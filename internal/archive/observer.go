package archive

import (
	"go.uber.org/zap"

	"github.com/gedworks/archive-cli/internal/model"
)

// Observer receives batch progress. Outcomes are delivered in submission
// order regardless of which worker finished first.
type Observer interface {
	FileProcessed(index, total int, outcome model.ArchivalOutcome)
	BatchCompleted(report *model.BatchReport)
}

// LogObserver reports progress through the global logger.
type LogObserver struct{}

func (LogObserver) FileProcessed(index, total int, outcome model.ArchivalOutcome) {
	zap.L().Info("file processed",
		zap.Int("n", index+1),
		zap.Int("of", total),
		zap.String("source", outcome.SourcePath),
		zap.String("kind", string(outcome.Kind)))
}

func (LogObserver) BatchCompleted(report *model.BatchReport) {
	zap.L().Info("batch complete",
		zap.String("run_id", report.RunID),
		zap.Int("archived", report.Archived()),
		zap.Int("duplicates", report.Duplicates()),
		zap.Int("errors", report.Errors()),
		zap.Int("new_categories", len(report.NewCategories)))
}

type noopObserver struct{}

func (noopObserver) FileProcessed(int, int, model.ArchivalOutcome) {}
func (noopObserver) BatchCompleted(*model.BatchReport)             {}
