package server

import (
	"errors"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/internal/async"
	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
	"github.com/joseph-ayodele/mediclaim/internal/export"
	"github.com/joseph-ayodele/mediclaim/internal/llm"
	"github.com/joseph-ayodele/mediclaim/internal/pipeline"
)

// Deps is what both transports serve from. Corpus is only reported on, never mutated.
type Deps struct {
	Queue    async.Queue
	Searcher pipeline.Searcher
	Corpus   *corpus.Corpus
	Exporter *export.Service
	Logger   *zap.Logger
}

func (d Deps) validate() error {
	v := common.NewValidator()
	if d.Queue == nil {
		v.Add("queue", nil, "is required")
	}
	if d.Searcher == nil {
		v.Add("searcher", nil, "is required")
	}
	return v.Error()
}

// errorFields pulls the failing paths and raw model text out of a pipeline error.
func errorFields(err error) (fields []string, raw string) {
	var verrs common.ValidationErrors
	if errors.As(err, &verrs) {
		fields = verrs.Fields()
	}
	var merr *llm.MalformedOutputError
	if errors.As(err, &merr) {
		raw = merr.Raw
	}
	return fields, raw
}
