package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/mediclaim/internal/llm"
	"github.com/joseph-ayodele/mediclaim/internal/pipeline"
)

var ErrQueueClosed = errors.New("analysis queue is shutting down")

// Analyzer is the unit of work the pool runs.
type Analyzer interface {
	Analyze(ctx context.Context, doc llm.Document) (*pipeline.Analysis, error)
}

// Job is one queued document.
type Job struct {
	Doc         llm.Document
	RequestID   string
	SubmittedAt time.Time

	ctx    context.Context
	result chan result
}

type result struct {
	analysis *pipeline.Analysis
	err      error
}

type Queue interface {
	Submit(ctx context.Context, doc llm.Document) (*pipeline.Analysis, error)
	Shutdown(ctx context.Context)
}
