package gemini

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/mediclaim/constants"
	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/llm"
)

const DefaultModel = "gemini-flash-latest"

var errEmptyResponse = errors.New("gemini returned no text")

// Config for the Gemini client.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	// Timeout bounds a single call; 0 means the caller's context alone decides.
	Timeout time.Duration
}

// models is the slice of *genai.Models the client uses.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Generator on the Gemini API.
type Client struct {
	cfg    Config
	sdk    *genai.Client
	models models
	logger *zap.Logger
}

// NewClient creates a Gemini-backed generator.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Client{cfg: cfg, sdk: sdk, models: sdk.Models, logger: logger}, nil
}

// Generate sends the prompt and the document as inline bytes in one user turn.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	log := c.logger.With(zap.String("req_id", rid), zap.String("model", c.cfg.Model))
	start := time.Now()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Document.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Document.Data, constants.NormalizeMIME(req.Document.MIMEType)))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if req.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = req.ResponseSchema
	}

	log.Info("llm.gemini.generate",
		zap.String("mime_type", req.Document.MIMEType),
		zap.Int("document_bytes", len(req.Document.Data)),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Bool("has_schema", req.ResponseSchema != nil),
	)

	resp, err := c.models.GenerateContent(ctx, c.cfg.Model, contents, config)
	if err != nil {
		log.Error("llm.gemini.generate.failed", zap.Error(err), zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		log.Error("llm.gemini.generate.empty", zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return "", errEmptyResponse
	}

	log.Info("llm.gemini.generate.ok",
		zap.Int("content_len", len(text)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return text, nil
}

// ModelInfo is one entry from ListGenerativeModels.
type ModelInfo struct {
	Name        string
	DisplayName string
}

// ListGenerativeModels returns the models available to the key that support generateContent.
func (c *Client) ListGenerativeModels(ctx context.Context) ([]ModelInfo, error) {
	var out []ModelInfo
	for m, err := range c.sdk.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		if !slices.Contains(m.SupportedActions, "generateContent") {
			continue
		}
		out = append(out, ModelInfo{Name: m.Name, DisplayName: m.DisplayName})
	}
	return out, nil
}
