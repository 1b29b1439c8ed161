package llm

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/mediclaim/constants"
	"github.com/joseph-ayodele/mediclaim/internal/common"
)

// Document is a discharge summary as uploaded: raw bytes plus media type.
type Document struct {
	Data     []byte
	MIMEType string
	Name     string
}

// Validate rejects documents no stage could read.
func (d Document) Validate() error {
	if !constants.IsAllowedMIME(d.MIMEType) {
		return fmt.Errorf("%w: %q (allowed: pdf, jpeg, png)", common.ErrUnsupportedMedia, d.MIMEType)
	}
	if len(d.Data) == 0 {
		return fmt.Errorf("%w: document is empty", common.ErrInvalidInput)
	}
	return nil
}

// GenerateRequest is a single prompt over a document. ResponseSchema, when set,
// is a JSON-Schema the backend should constrain its output to.
type GenerateRequest struct {
	Document       Document
	Prompt         string
	ResponseSchema map[string]any
}

// Generator is the capability the pipeline depends on: given a document and a
// prompt, produce text.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}
