package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/constants"
	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/llm"
)

var errNoChoices = errors.New("no choices in openai response")

// Generate implements llm.Generator with chat/completions. The document travels
// as a data URL: images as image_url parts, PDFs as file parts.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	log := c.logger.With(zap.String("req_id", rid))
	start := time.Now()

	log.Info("llm.openai.generate.start",
		zap.String("model", c.cfg.Model),
		zap.Float32("temp", c.cfg.Temperature),
		zap.String("mime_type", req.Document.MIMEType),
		zap.Int("document_bytes", len(req.Document.Data)),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Bool("has_schema", req.ResponseSchema != nil),
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": userContent(req)},
		},
	}
	if format := responseFormat(req.ResponseSchema); format != nil {
		body["response_format"] = format
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		log.Error("llm.openai.generate.http_error",
			zap.Error(err),
			zap.Int("status", status),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return "", fmt.Errorf("openai status %d: %w", status, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.Error("llm.openai.generate.decode_error", zap.Error(err), zap.Int("raw_bytes", len(raw)))
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		log.Error("llm.openai.generate.no_choices", zap.ByteString("raw", raw))
		return "", errNoChoices
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	log.Info("llm.openai.generate.ok",
		zap.Int("content_len", len(content)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return content, nil
}

func userContent(req llm.GenerateRequest) []map[string]any {
	parts := []map[string]any{{"type": "text", "text": req.Prompt}}
	if len(req.Document.Data) == 0 {
		return parts
	}

	mt := constants.NormalizeMIME(req.Document.MIMEType)
	dataURL := "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(req.Document.Data)
	if mt == constants.MIMEPDF {
		name := req.Document.Name
		if name == "" {
			name = "discharge_summary.pdf"
		}
		return append(parts, map[string]any{
			"type": "file",
			"file": map[string]any{"filename": name, "file_data": dataURL},
		})
	}
	return append(parts, map[string]any{
		"type":      "image_url",
		"image_url": map[string]any{"url": dataURL},
	})
}

// responseFormat asks for schema-shaped output. Bare arrays are not accepted as a
// json_schema root, so those fall back to free text.
func responseFormat(schema map[string]any) map[string]any {
	if schema == nil || schema["type"] != "object" {
		return nil
	}
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   "analysis_result",
			"schema": schema,
			"strict": false,
		},
	}
}
