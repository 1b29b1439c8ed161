package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
	"github.com/joseph-ayodele/mediclaim/internal/llm"
)

// KeywordStage asks the model for search terms. It never fails: any problem
// yields an empty keyword set and retrieval then finds nothing.
type KeywordStage struct {
	Logger    *zap.Logger
	Generator llm.Generator
}

func NewKeywordStage(logger *zap.Logger, gen llm.Generator) *KeywordStage {
	return &KeywordStage{Logger: common.OrNop(logger), Generator: gen}
}

// Run returns the cleaned keyword set for doc.
func (s *KeywordStage) Run(ctx context.Context, doc llm.Document) []string {
	log := s.Logger.With(zap.String("req_id", common.RequestIDFromContext(ctx)))
	start := time.Now()

	text, err := s.Generator.Generate(ctx, llm.GenerateRequest{
		Document:       doc,
		Prompt:         llm.BuildKeywordPrompt(),
		ResponseSchema: llm.BuildKeywordJSONSchema(),
	})
	if err != nil {
		log.Warn("pipeline.keywords.generate_failed", zap.Error(err))
		return nil
	}

	keywords, err := ParseKeywords(text)
	if err != nil {
		log.Warn("pipeline.keywords.malformed", zap.Error(err), zap.String("raw", text))
		return nil
	}
	// Report entries the lenient parse dropped.
	if raw, err := llm.UnwrapJSON(text); err == nil {
		if err := llm.ValidateJSONAgainstSchema(llm.BuildKeywordJSONSchema(), raw); err != nil {
			log.Debug("pipeline.keywords.schema_mismatch", zap.Error(err))
		}
	}

	log.Info("pipeline.keywords.ok",
		zap.Strings("keywords", keywords),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return keywords
}

// ParseKeywords decodes a JSON array of strings from model text. Entries are
// trimmed; blanks, non-strings and case-insensitive repeats are dropped.
func ParseKeywords(text string) ([]string, error) {
	raw, err := llm.UnwrapJSON(text)
	if err != nil {
		return nil, &llm.MalformedOutputError{Stage: "keywords", Raw: text, Err: err}
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &llm.MalformedOutputError{Stage: "keywords", Raw: text, Err: err}
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		key := corpus.Fold(s)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
