package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gedworks/archive-cli/internal/archive"
	"github.com/gedworks/archive-cli/internal/classify"
	"github.com/gedworks/archive-cli/internal/extract"
	"github.com/gedworks/archive-cli/internal/store"
	"github.com/gedworks/archive-cli/pkg/anthropic"
)

// runtimeEnv wires the store, extractor, classifier and pipeline for one
// command invocation.
type runtimeEnv struct {
	Store     store.Store
	Extractor *extract.Service
	Engine    *classify.Engine
	Pipeline  *archive.Pipeline
	Coord     *archive.Coordinator
}

func initEnv(ctx context.Context) (*runtimeEnv, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	extractor := extract.NewService(cfg.Extract)

	var assist *classify.AssistedClassifier
	if cfg.Assist.Enabled && cfg.Assist.Key != "" {
		client := anthropic.NewClient(cfg.Assist.Key)
		assist = classify.NewAssistedClassifier(
			client,
			cfg.Assist.Model,
			cfg.Assist.MaxTokens,
			time.Duration(cfg.Assist.TimeoutSecs)*time.Second,
			cfg.Assist.RatePerSec,
		)
	} else {
		zap.L().Info("assisted classification disabled, using rules and fallback only")
	}

	engine := classify.NewEngine(st, extractor, assist, cfg.Archive.AutoCreateCategories)

	var tagger archive.MediaTagger
	if cfg.Archive.TagMedia {
		tagger = archive.ID3Tagger{}
	}

	pipeline := archive.NewPipeline(st, engine, tagger, cfg.Archive.AutoDeleteSource)

	return &runtimeEnv{
		Store:     st,
		Extractor: extractor,
		Engine:    engine,
		Pipeline:  pipeline,
		Coord:     archive.NewCoordinator(st, pipeline, cfg.Batch.Workers),
	}, nil
}

func (e *runtimeEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}
