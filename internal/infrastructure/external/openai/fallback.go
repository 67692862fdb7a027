package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/application/port"
	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

// Config holds the OpenAI client settings
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// chatClient is the subset of the OpenAI client the fallback needs
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// suggestion is the JSON object the model is asked to return
type suggestion struct {
	Vendor        *string  `json:"vendor"`
	Date          *string  `json:"date"`
	InvoiceNumber *string  `json:"invoice_number"`
	TotalAmount   *float64 `json:"total_amount"`
}

// FieldFallback asks a chat model for fields the heuristics could not find
type FieldFallback struct {
	client  chatClient
	model   string
	timeout time.Duration
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewFieldFallback creates a new OpenAI field fallback
func NewFieldFallback(cfg Config, prompts *PromptConfig, logger *zap.Logger) *FieldFallback {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newFieldFallback(openai.NewClientWithConfig(clientCfg), cfg, prompts, logger)
}

func newFieldFallback(client chatClient, cfg Config, prompts *PromptConfig, logger *zap.Logger) *FieldFallback {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	return &FieldFallback{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		prompts: prompts,
		logger:  logger,
	}
}

// Fill returns suggested values for the fields missing from fields. Present fields are echoed back unchanged.
func (f *FieldFallback) Fill(ctx context.Context, text string, fields entity.ExtractedFields) (entity.ExtractedFields, error) {
	missing := fields.Missing()
	if len(missing) == 0 {
		return fields, nil
	}

	p := f.prompts.FieldExtraction
	text = truncateRunes(text, p.MaxTextChars)

	prompt, err := renderTemplate(p.UserTemplate, map[string]interface{}{
		"Missing": missing,
		"Text":    text,
	})
	if err != nil {
		return fields, err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	resp, err := f.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       f.model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		f.logger.Error("OpenAI API call failed", zap.Error(err))
		return fields, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return fields, errors.New("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var s suggestion
	if err := json.Unmarshal([]byte(content), &s); err != nil {
		jsonStr := extractJSON(content)
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &s) != nil {
			f.logger.Error("Failed to parse OpenAI response", zap.Error(err), zap.String("content", content))
			return fields, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	filled := fields
	if filled.Vendor == "" && s.Vendor != nil {
		filled.Vendor = *s.Vendor
	}
	if filled.Date == "" && s.Date != nil {
		filled.Date = *s.Date
	}
	if filled.InvoiceNumber == "" && s.InvoiceNumber != nil {
		filled.InvoiceNumber = *s.InvoiceNumber
	}
	if filled.TotalAmount == nil && s.TotalAmount != nil {
		filled.TotalAmount = entity.AmountPtr(*s.TotalAmount)
	}

	f.logger.Info("Field fallback completed",
		zap.Strings("asked", missing),
		zap.Strings("still_missing", filled.Missing()))
	return filled, nil
}

// truncateRunes keeps at most max characters of s
func truncateRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// extractJSON returns the first balanced JSON object in content, e.g. inside a markdown fence
func extractJSON(content string) string {
	start := findJSONStart(content)
	if start < 0 {
		return ""
	}
	end := findJSONEnd(content, start)
	if end <= start {
		return ""
	}
	return content[start:end]
}

func findJSONStart(content string) int {
	for i := 0; i < len(content); i++ {
		if content[i] == '{' {
			return i
		}
	}
	return -1
}

func findJSONEnd(content string, start int) int {
	if start < 0 || start >= len(content) || content[start] != '{' {
		return -1
	}

	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(content); i++ {
		char := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				return i + 1
			}
		}
	}

	return -1
}

// Verify interface compliance
var _ port.FieldFallback = (*FieldFallback)(nil)
