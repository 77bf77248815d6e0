package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	flaperrors "flap/internal/errors"
	"flap/internal/logging"
)

// Config configures an OpenAI-compatible client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Headers     map[string]string
}

// openaiClient speaks the OpenAI-compatible chat completions API, which
// covers OpenAI, OpenRouter, and most self-hosted gateways.
type openaiClient struct {
	config     Config
	httpClient *http.Client
	logger     logging.Logger
}

var _ Client = (*openaiClient)(nil)

// NewOpenAIClient constructs a provider client from the given configuration.
func NewOpenAIClient(config Config) (Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &openaiClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logging.NewComponentLogger("llm-openai"),
	}, nil
}

func (c *openaiClient) Model() string {
	return c.config.Model
}

func (c *openaiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	oaiReq := map[string]any{
		"model":    c.config.Model,
		"messages": c.convertMessages(req.Messages),
		"stream":   false,
	}
	if temp := firstNonZero(req.Temperature, c.config.Temperature); temp > 0 {
		oaiReq["temperature"] = temp
	}
	if maxTokens := firstNonZeroInt(req.MaxTokens, c.config.MaxTokens); maxTokens > 0 {
		oaiReq["max_tokens"] = maxTokens
	}
	if len(req.Tools) > 0 {
		oaiReq["tools"] = convertTools(req.Tools)
		oaiReq["tool_choice"] = "auto"
	}

	body, err := json.Marshal(oaiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.config.BaseURL + "/chat/completions"
	c.logger.Debug("POST %s model=%s messages=%d tools=%d",
		endpoint, c.config.Model, len(req.Messages), len(req.Tools))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("HTTP request failed: %v", err)
		return nil, flaperrors.NewTransientError(err, fmt.Sprintf("provider request failed: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, flaperrors.NewTransientError(err, "failed to read provider response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp.StatusCode, respBody)
	}

	return c.parseResponse(respBody)
}

// statusError maps an HTTP failure onto the provider error taxonomy so the
// breaker and failover runner can classify it without re-parsing strings.
func (c *openaiClient) statusError(statusCode int, body []byte) error {
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	base := fmt.Errorf("API error %d: %s", statusCode, snippet)
	c.logger.Warn("provider returned %d: %s", statusCode, snippet)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return flaperrors.NewRateLimitError(base, fmt.Sprintf("%s rate limited (429)", c.config.Model))
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return flaperrors.NewAuthError(base, fmt.Sprintf("%s authentication failed (%d)", c.config.Model, statusCode))
	case statusCode >= 500:
		return flaperrors.NewOverloadError(base, statusCode, fmt.Sprintf("%s overloaded (%d)", c.config.Model, statusCode))
	default:
		return flaperrors.NewPermanentError(base, fmt.Sprintf("%s rejected request (%d)", c.config.Model, statusCode))
	}
}

type oaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *openaiClient) parseResponse(body []byte) (*CompletionResponse, error) {
	var parsed oaiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse provider response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	choice := parsed.Choices[0]
	model := parsed.Model
	if model == "" {
		model = c.config.Model
	}

	out := &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        model,
		FinishReason: choice.FinishReason,
		Usage: TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		args, err := decodeArguments(tc.Function.Arguments)
		if err != nil {
			c.logger.Warn("dropping tool call %s with undecodable arguments: %v", tc.ID, err)
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return out, nil
}

// decodeArguments parses tool-call argument JSON, repairing it first when the
// model emits slightly malformed output (trailing commas, single quotes).
func decodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("repair arguments: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, fmt.Errorf("parse repaired arguments: %w", err)
	}
	return args, nil
}

func (c *openaiClient) convertMessages(messages []Message) []map[string]any {
	result := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		// Tool verdicts ride as their own role:"tool" turns in the wire format.
		if len(msg.ToolResults) > 0 {
			for _, tr := range msg.ToolResults {
				result = append(result, map[string]any{
					"role":         "tool",
					"tool_call_id": tr.ToolCallID,
					"content":      tr.Content,
				})
			}
			continue
		}

		entry := map[string]any{
			"role":    msg.Role,
			"content": msg.Content,
		}
		if len(msg.ToolCalls) > 0 {
			entry["tool_calls"] = convertToolCallHistory(msg.ToolCalls)
		}
		result = append(result, entry)
	}
	return result
}

func convertTools(tools []ToolDefinition) []map[string]any {
	result := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			},
		})
	}
	return result
}

func convertToolCallHistory(calls []ToolCall) []map[string]any {
	result := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		args := "{}"
		if len(call.Arguments) > 0 {
			if data, err := json.Marshal(call.Arguments); err == nil {
				args = string(data)
			}
		}
		result = append(result, map[string]any{
			"id":   call.ID,
			"type": "function",
			"function": map[string]any{
				"name":      call.Name,
				"arguments": args,
			},
		})
	}
	return result
}

func firstNonZero(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonZeroInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
