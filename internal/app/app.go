package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
	"github.com/joseph-ayodele/mediclaim/internal/export"
	"github.com/joseph-ayodele/mediclaim/internal/llm"
	"github.com/joseph-ayodele/mediclaim/internal/llm/gemini"
	"github.com/joseph-ayodele/mediclaim/internal/llm/openai"
	"github.com/joseph-ayodele/mediclaim/internal/pipeline"
	"github.com/joseph-ayodele/mediclaim/internal/retrieval"
)

// App is the dependency graph shared by the daemon and the CLI.
type App struct {
	Config    *common.Config
	Logger    *zap.Logger
	Corpus    *corpus.Corpus
	Retriever *retrieval.Retriever
	Generator llm.Generator
	Processor *pipeline.Processor
	Exporter  *export.Service
}

// New loads the corpus and wires retrieval, the configured generator and the processor.
func New(ctx context.Context, cfg *common.Config, logger *zap.Logger) (*App, error) {
	logger = common.OrNop(logger)

	c, r, err := NewSearch(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	gen, err := NewGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Corpus:    c,
		Retriever: r,
		Generator: gen,
		Processor: pipeline.NewProcessor(logger, gen, r, cfg.Retrieval.Limit),
		Exporter:  export.NewService(logger),
	}, nil
}

// NewSearch loads the corpus and builds a retriever over it. No generator is needed.
func NewSearch(ctx context.Context, cfg *common.Config, logger *zap.Logger) (*corpus.Corpus, *retrieval.Retriever, error) {
	c := corpus.Load(ctx, cfg.Corpus.Sources, CorpusOptions(cfg.Corpus), logger)
	r, err := retrieval.NewRetriever(c,
		retrieval.WithRanking(cfg.Retrieval.Ranking),
		retrieval.WithDefaultLimit(cfg.Retrieval.Limit),
		retrieval.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("retriever: %w", err)
	}
	return c, r, nil
}

// CorpusOptions maps the corpus config section onto loader options.
func CorpusOptions(cc common.CorpusConfig) corpus.Options {
	return corpus.Options{
		Columns: corpus.Columns{
			Code:       cc.CodeColumn,
			Name:       cc.NameColumn,
			Procedure:  cc.ProcedureColumn,
			Speciality: cc.SpecialityColumn,
		},
		Table: cc.Table,
		Sheet: cc.Sheet,
	}
}

// NewGenerator returns the generator for the configured provider.
func NewGenerator(ctx context.Context, lc common.LLMConfig, logger *zap.Logger) (llm.Generator, error) {
	switch lc.Provider {
	case "", "gemini":
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:      lc.APIKey,
			Model:       lc.Model,
			Temperature: lc.Temperature,
			Timeout:     lc.Timeout,
		}, logger)
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      lc.APIKey,
			BaseURL:     lc.BaseURL,
			Model:       lc.Model,
			Temperature: lc.Temperature,
			Timeout:     lc.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", common.ErrInvalidInput, lc.Provider)
	}
}
