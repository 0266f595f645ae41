package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/order-parser/internal/llm"
)

// ExtractOrder implements llm.OrderExtractor with a JSON-mode chat completion.
// A reply that fails the schema is sanitised once and re-validated.
func (c *Client) ExtractOrder(ctx context.Context, req llm.ExtractRequest) (llm.ExtractedOrder, []byte, error) {
	start := time.Now()
	c.logger.Info("llm.extract.start",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"document_type", req.DocumentType,
	)

	if err := c.limiter.Wait(ctx); err != nil {
		return llm.ExtractedOrder{}, nil, fmt.Errorf("rate limit wait: %w", err)
	}

	schema := llm.BuildOrderJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.SystemPrompt},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
			{"role": "user", "content": llm.BuildUserPrompt(req)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"status", status, "error", err, "body", truncate(string(raw), 500),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ExtractedOrder{}, raw, fmt.Errorf("openai request: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error", "error", err, "raw_bytes", len(raw))
		return llm.ExtractedOrder{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices", "raw", truncate(string(raw), 500))
		return llm.ExtractedOrder{}, raw, fmt.Errorf("no choices in openai response")
	}
	content := []byte(stripFences(cc.Choices[0].Message.Content))

	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		cleaned, changed, sErr := llm.SanitizeExtraction(content, c.logger)
		if sErr != nil {
			c.logger.Error("llm.extract.sanitize_failed", "error", sErr)
			return llm.ExtractedOrder{}, content, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.logger.Error("llm.extract.schema_validation_failed", "error", vErr)
			return llm.ExtractedOrder{}, cleaned, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.logger.Warn("llm.extract.lenient_sanitize_applied", "changed", changed)
		content = cleaned
	}

	var out llm.ExtractedOrder
	if err := json.Unmarshal(content, &out); err != nil {
		c.logger.Error("llm.extract.unmarshal_failed", "error", err)
		return llm.ExtractedOrder{}, content, fmt.Errorf("unmarshal order: %w", err)
	}

	c.logger.Info("llm.extract.ok",
		"lines", len(out.Lines),
		"has_cnpj", out.Order.CustomerCNPJ != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

// stripFences removes a ```json ... ``` wrapper some models add in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
