package archive

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gedworks/archive-cli/internal/model"
	"github.com/gedworks/archive-cli/internal/store"
)

// Coordinator fans a batch of files out to a bounded set of workers and
// reports outcomes to an observer in submission order. One file's failure
// never stops the rest of the batch.
type Coordinator struct {
	store    store.Store
	pipeline *Pipeline
	workers  int
}

// NewCoordinator builds a Coordinator running at most workers pipelines
// concurrently.
func NewCoordinator(st store.Store, pipeline *Pipeline, workers int) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	return &Coordinator{store: st, pipeline: pipeline, workers: workers}
}

// Run archives every file under destRoot and returns the batch report. A
// cancelled context stops dispatching new files but lets in-flight files
// reach a terminal state; their outcomes are still reported. The returned
// report covers the files that were dispatched.
func (c *Coordinator) Run(ctx context.Context, files []string, destRoot string, obs Observer) (*model.BatchReport, error) {
	if obs == nil {
		obs = noopObserver{}
	}

	// Run bookkeeping must survive cancellation so a stopped batch still
	// leaves a complete record.
	bookCtx := context.WithoutCancel(ctx)

	run, err := c.store.CreateRun(bookCtx, destRoot, len(files))
	if err != nil {
		return nil, eris.Wrap(err, "archive: create run")
	}
	if err := c.store.UpdateRunStatus(bookCtx, run.ID, model.RunStatusRunning); err != nil {
		return nil, eris.Wrap(err, "archive: mark run running")
	}

	report := &model.BatchReport{
		RunID:     run.ID,
		DestRoot:  destRoot,
		StartedAt: time.Now(),
	}

	zap.L().Info("batch started",
		zap.String("run_id", run.ID),
		zap.Int("files", len(files)),
		zap.Int("workers", c.workers),
		zap.String("dest", destRoot))

	// One slot per file keeps observer reporting in submission order
	// while workers complete in any order.
	slots := make([]chan model.ArchivalOutcome, len(files))
	for i := range slots {
		slots[i] = make(chan model.ArchivalOutcome, 1)
	}

	var g errgroup.Group
	g.SetLimit(c.workers)

	dispatched := 0
	for i, file := range files {
		if ctx.Err() != nil {
			zap.L().Warn("batch cancelled, not dispatching remaining files",
				zap.String("run_id", run.ID),
				zap.Int("remaining", len(files)-i))
			break
		}
		dispatched++
		i, file := i, file
		g.Go(func() error {
			slots[i] <- c.pipeline.Process(ctx, file, destRoot)
			return nil
		})
	}
	for i := dispatched; i < len(files); i++ {
		close(slots[i])
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, slot := range slots {
			outcome, ok := <-slot
			if !ok {
				return
			}
			report.Outcomes = append(report.Outcomes, outcome)
			obs.FileProcessed(i, len(files), outcome)
		}
	}()

	_ = g.Wait()
	<-done

	report.FinishedAt = time.Now()
	report.Tally()

	if taxonomy, taxErr := c.store.Taxonomy(bookCtx); taxErr == nil {
		report.Taxonomy = taxonomy
	} else {
		zap.L().Warn("could not snapshot taxonomy for report", zap.Error(taxErr))
	}

	if err := c.store.CompleteRun(bookCtx, run.ID, report); err != nil {
		return report, eris.Wrap(err, "archive: complete run")
	}

	obs.BatchCompleted(report)
	return report, nil
}
