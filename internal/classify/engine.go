package classify

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gedworks/archive-cli/internal/extract"
	"github.com/gedworks/archive-cli/internal/model"
	"github.com/gedworks/archive-cli/internal/store"
)

// ExtractionError reports a source file that could not be read when the
// engine tried to extract its text.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("classify: extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Engine produces one ClassificationDecision per file: keyword rules first,
// then the assisted classifier, then the GENERAL/Divers fallback. The only
// errors it returns are unreadable sources and taxonomy persistence
// failures; everything else degrades to the fallback decision.
type Engine struct {
	store      store.Store
	extractor  *extract.Service
	rules      RuleClassifier
	assist     *AssistedClassifier
	autoCreate bool

	now func() time.Time
}

// NewEngine builds an Engine. assist may be nil to disable assisted
// classification; autoCreate gates whether the assist path may introduce
// categories that are not yet in the taxonomy.
func NewEngine(st store.Store, extractor *extract.Service, assist *AssistedClassifier, autoCreate bool) *Engine {
	return &Engine{
		store:      st,
		extractor:  extractor,
		assist:     assist,
		autoCreate: autoCreate,
		now:        time.Now,
	}
}

// Classify decides the category, subcategory and archival name for path.
// The taxonomy mutation implied by the decision is durable before Classify
// returns, so a concurrent worker filing into the same category observes it
// as already present.
func (e *Engine) Classify(ctx context.Context, path string) (model.ClassificationDecision, error) {
	filename := filepath.Base(path)

	text, err := e.extractor.Text(path)
	if err != nil {
		return model.ClassificationDecision{}, &ExtractionError{Path: path, Err: err}
	}

	taxonomy, err := e.store.Taxonomy(ctx)
	if err != nil {
		return model.ClassificationDecision{}, eris.Wrap(err, "classify: load taxonomy")
	}

	if category := e.rules.ClassifyByName(filename); category != "" {
		return e.resolveByRule(ctx, filename, text, category, taxonomy)
	}

	if e.assist != nil && e.autoCreate && len(text) > 10 {
		if proposal := e.assist.Propose(ctx, text, filename); proposal != nil {
			return e.resolveByAssist(ctx, filename, proposal)
		}
	}

	return e.resolveByFallback(ctx, filename)
}

func (e *Engine) resolveByRule(ctx context.Context, filename, text, category string, taxonomy model.Taxonomy) (model.ClassificationDecision, error) {
	createdCat, err := e.store.EnsureCategory(ctx, category)
	if err != nil {
		return model.ClassificationDecision{}, eris.Wrap(err, "classify: ensure category")
	}

	subcategory := e.rules.SuggestSubcategory(text, category, taxonomy)
	if subcategory == "" {
		if existing := taxonomy.Subcategories(category); len(existing) > 0 {
			subcategory = existing[0]
		} else {
			subcategory = "Divers"
		}
	}

	if _, err := e.store.EnsureSubcategory(ctx, category, subcategory); err != nil {
		return model.ClassificationDecision{}, eris.Wrap(err, "classify: ensure subcategory")
	}

	return e.decision(filename, category, subcategory, createdCat, "", model.DecisionByRule), nil
}

func (e *Engine) resolveByAssist(ctx context.Context, filename string, proposal *Proposal) (model.ClassificationDecision, error) {
	category := model.NormalizeCategory(proposal.Category)
	subcategory := proposal.Subcategory

	// The insert results are what make isNewCategory linearizable: two
	// workers filing the same brand-new category concurrently get exactly
	// one true between them.
	createdCat, err := e.store.EnsureCategory(ctx, category)
	if err != nil {
		return model.ClassificationDecision{}, eris.Wrap(err, "classify: ensure category")
	}
	createdSub, err := e.store.EnsureSubcategory(ctx, category, subcategory)
	if err != nil {
		return model.ClassificationDecision{}, eris.Wrap(err, "classify: ensure subcategory")
	}
	isNew := createdCat || createdSub

	zap.L().Info("classified by assist",
		zap.String("file", filename),
		zap.String("category", category),
		zap.String("subcategory", subcategory),
		zap.Bool("new_category", isNew))

	return e.decision(filename, category, subcategory, isNew, proposal.Rationale, model.DecisionByAssist), nil
}

func (e *Engine) resolveByFallback(ctx context.Context, filename string) (model.ClassificationDecision, error) {
	created, err := e.store.EnsureCategory(ctx, "GENERAL")
	if err != nil {
		return model.ClassificationDecision{}, eris.Wrap(err, "classify: ensure category")
	}
	if _, err := e.store.EnsureSubcategory(ctx, "GENERAL", "Divers"); err != nil {
		return model.ClassificationDecision{}, eris.Wrap(err, "classify: ensure subcategory")
	}
	return e.decision(filename, "GENERAL", "Divers", created, "default category", model.DecisionByFallback), nil
}

func (e *Engine) decision(filename, category, subcategory string, isNew bool, rationale string, source model.DecisionSource) model.ClassificationDecision {
	return model.ClassificationDecision{
		Category:         category,
		Subcategory:      subcategory,
		IsNewCategory:    isNew,
		Rationale:        rationale,
		ArchivalFileName: ArchivalFileName(e.now(), category, subcategory, filename),
		Source:           source,
	}
}
