package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gedworks/archive-cli/internal/classify"
	"github.com/gedworks/archive-cli/internal/config"
	"github.com/gedworks/archive-cli/internal/extract"
	"github.com/gedworks/archive-cli/internal/model"
	"github.com/gedworks/archive-cli/pkg/anthropic"
)

type recordingObserver struct {
	mu      sync.Mutex
	indices []int
	kinds   []model.OutcomeKind
	report  *model.BatchReport
}

func (r *recordingObserver) FileProcessed(index, _ int, outcome model.ArchivalOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indices = append(r.indices, index)
	r.kinds = append(r.kinds, outcome.Kind)
}

func (r *recordingObserver) BatchCompleted(report *model.BatchReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report = report
}

func TestCoordinator_Run(t *testing.T) {
	st := testStore(t)
	coord := NewCoordinator(st, NewPipeline(st, testEngine(st), nil, false), 4)

	srcDir, destRoot := t.TempDir(), t.TempDir()
	files := []string{
		writeSource(t, srcDir, "bail_1.txt", "premier bail"),
		writeSource(t, srcDir, "facture_2.txt", "une facture"),
		writeSource(t, srcDir, "dup.txt", "premier bail"),
		filepath.Join(srcDir, "missing.txt"),
	}

	obs := &recordingObserver{}
	report, err := coord.Run(context.Background(), files, destRoot, obs)
	require.NoError(t, err)

	// Every file yields an outcome even when some error.
	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, 2, report.Archived())
	assert.Equal(t, 1, report.Duplicates())
	assert.Equal(t, 1, report.Errors())
	assert.NotEmpty(t, report.RunID)
	assert.True(t, report.Taxonomy.Has("JURIDIQUE"))

	// Progress arrives in submission order regardless of worker timing.
	assert.Equal(t, []int{0, 1, 2, 3}, obs.indices)
	assert.Equal(t, model.OutcomeDuplicate, report.Outcomes[2].Kind)
	require.NotNil(t, obs.report)

	run, err := st.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Report)
	assert.Equal(t, 2, run.Report.Archived())
}

func TestCoordinator_ConcurrentNewCategoryRace(t *testing.T) {
	st := testStore(t)

	client := &fakeAssistClient{}
	extractor := extract.NewService(config.ExtractConfig{MaxChars: 20000})
	assist := classify.NewAssistedClassifier(client, "claude-haiku-4-5-20251001", 500, 30*time.Second, 1000)
	engine := classify.NewEngine(st, extractor, assist, true)
	coord := NewCoordinator(st, NewPipeline(st, engine, nil, false), 8)

	srcDir, destRoot := t.TempDir(), t.TempDir()
	var files []string
	for i := 0; i < 8; i++ {
		files = append(files, writeSource(t, srcDir, fmt.Sprintf("projet_%d.txt", i),
			fmt.Sprintf("dossier de zonage numero %d pour la commune", i)))
	}

	report, err := coord.Run(context.Background(), files, destRoot, nil)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 8)

	newCount := 0
	for _, o := range report.Outcomes {
		assert.Equal(t, model.OutcomeArchived, o.Kind)
		assert.Equal(t, "URBANISME", o.Category)
		if o.IsNewCategory {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount, "exactly one worker may observe the category as new")

	taxonomy, err := st.Taxonomy(context.Background())
	require.NoError(t, err)
	urbanisme := 0
	for _, cat := range taxonomy {
		if cat.Name == "URBANISME" {
			urbanisme++
		}
	}
	assert.Equal(t, 1, urbanisme)
}

func TestCoordinator_CancelledContextStopsDispatch(t *testing.T) {
	st := testStore(t)
	coord := NewCoordinator(st, NewPipeline(st, testEngine(st), nil, false), 2)

	srcDir := t.TempDir()
	files := []string{
		writeSource(t, srcDir, "a.txt", "contenu a"),
		writeSource(t, srcDir, "b.txt", "contenu b"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := coord.Run(ctx, files, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
}

// fakeAssistClient always proposes the same brand-new category.
type fakeAssistClient struct{}

func (fakeAssistClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return &anthropic.MessageResponse{
		Model: req.Model,
		Content: []anthropic.ContentBlock{{
			Type: "text",
			Text: `{"category": "URBANISME", "subcategory": "Zonage", "reason": "Dossier de zonage."}`,
		}},
	}, nil
}
