package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
	"github.com/joseph-ayodele/mediclaim/internal/entity"
	"github.com/joseph-ayodele/mediclaim/internal/llm"
)

// ReasonStage produces the structured analysis constrained to the candidates.
// Unlike KeywordStage, every failure here is returned to the caller.
type ReasonStage struct {
	Logger    *zap.Logger
	Generator llm.Generator
}

func NewReasonStage(logger *zap.Logger, gen llm.Generator) *ReasonStage {
	return &ReasonStage{Logger: common.OrNop(logger), Generator: gen}
}

// Run returns the validated result and the model text it came from.
func (s *ReasonStage) Run(ctx context.Context, doc llm.Document, candidates []corpus.Record) (entity.AnalysisResult, string, error) {
	log := s.Logger.With(zap.String("req_id", common.RequestIDFromContext(ctx)))
	start := time.Now()

	prompt, err := llm.BuildAnalysisPrompt(candidates)
	if err != nil {
		return entity.AnalysisResult{}, "", fmt.Errorf("build prompt: %w: %w", common.ErrInternal, err)
	}

	text, err := s.Generator.Generate(ctx, llm.GenerateRequest{
		Document:       doc,
		Prompt:         prompt,
		ResponseSchema: llm.BuildAnalysisJSONSchema(),
	})
	if err != nil {
		log.Error("pipeline.reason.generate_failed", zap.Error(err))
		return entity.AnalysisResult{}, "", fmt.Errorf("reason stage: %w: %w", common.ErrGeneration, err)
	}

	raw, err := llm.UnwrapJSON(text)
	if err != nil {
		log.Error("pipeline.reason.malformed", zap.Error(err), zap.String("raw", text))
		return entity.AnalysisResult{}, text, &llm.MalformedOutputError{Stage: "reason", Raw: text, Err: err}
	}

	result, err := llm.ValidateAnalysis(raw, candidates)
	if err != nil {
		log.Error("pipeline.reason.invalid", zap.Error(err), zap.String("raw", text))
		return result, text, fmt.Errorf("reason stage: %w", err)
	}

	rec := result.PackageRecommendation
	log.Info("pipeline.reason.ok",
		zap.String("primary", rec.PrimaryPackage.PackageCode),
		zap.Int("add_ons", len(rec.AddOnPackages)),
		zap.Int("rejected", len(rec.RejectedPackages)),
		zap.Float64("confidence", result.InsuranceJustification.ConfidenceScore),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return result, text, nil
}
