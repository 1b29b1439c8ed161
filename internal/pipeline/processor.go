package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
	"github.com/joseph-ayodele/mediclaim/internal/entity"
	"github.com/joseph-ayodele/mediclaim/internal/llm"
)

// Searcher is the retrieval step the processor depends on.
type Searcher interface {
	Search(keywords []string, limit int) []corpus.Record
}

// Analysis is the outcome of one document run.
type Analysis struct {
	RequestID  string                `json:"request_id"`
	Keywords   []string              `json:"keywords"`
	Candidates []corpus.Record       `json:"candidates"`
	Result     entity.AnalysisResult `json:"result"`
}

// Processor coordinates keyword extraction, retrieval and constrained reasoning.
type Processor struct {
	Logger    *zap.Logger
	Keywords  *KeywordStage
	Retriever Searcher
	Reason    *ReasonStage
	// Limit caps the candidate list; <= 0 defers to the retriever default.
	Limit int
}

func NewProcessor(logger *zap.Logger, gen llm.Generator, retriever Searcher, limit int) *Processor {
	logger = common.OrNop(logger)
	return &Processor{
		Logger:    logger,
		Keywords:  NewKeywordStage(logger, gen),
		Retriever: retriever,
		Reason:    NewReasonStage(logger, gen),
		Limit:     limit,
	}
}

// Analyze runs the three stages over doc. Unsupported or empty documents are
// rejected before any model call. A ctx that ends before the final stage
// starts aborts the run with ctx.Err(); once the final stage starts it runs to
// completion even if ctx is cancelled.
func (p *Processor) Analyze(ctx context.Context, doc llm.Document) (*Analysis, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	log := p.Logger.With(zap.String("req_id", rid))
	start := time.Now()

	if err := doc.Validate(); err != nil {
		log.Warn("processor.admit.rejected", zap.String("mime_type", doc.MIMEType), zap.Error(err))
		return nil, err
	}

	// 1) keywords: best effort
	keywords := p.Keywords.Run(ctx, doc)
	// A deadline or cancellation during stage 1 must not degrade into NO_MATCH.
	if err := ctx.Err(); err != nil {
		log.Warn("processor.keywords.aborted", zap.Error(err))
		return nil, err
	}

	// 2) retrieval: never fails
	candidates := p.Retriever.Search(keywords, p.Limit)
	log.Info("processor.retrieve.ok",
		zap.Int("keywords", len(keywords)),
		zap.Int("candidates", len(candidates)),
	)

	// 3) constrained reasoning
	result, _, err := p.Reason.Run(context.WithoutCancel(ctx), doc, candidates)
	if err != nil {
		log.Error("processor.reason.failed", zap.Error(err))
		return nil, err
	}

	log.Info("processor.analyze.ok",
		zap.String("primary", result.PackageRecommendation.PrimaryPackage.PackageCode),
		zap.Strings("selected", result.PackageRecommendation.SelectedCodes()),
		zap.Int("applicable", result.PackageRecommendation.TotalApplicablePackages),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	if keywords == nil {
		keywords = []string{}
	}
	if candidates == nil {
		candidates = []corpus.Record{}
	}
	return &Analysis{
		RequestID:  rid,
		Keywords:   keywords,
		Candidates: candidates,
		Result:     result,
	}, nil
}
