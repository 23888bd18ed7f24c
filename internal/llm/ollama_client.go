package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"agribot/internal/agent/ports"
	"agribot/internal/logging"
)

var _ ports.StreamingLLMClient = (*ollamaClient)(nil)

// ollamaClient implements streaming and non-streaming chat completions
// against a local Ollama server.
type ollamaClient struct {
	model      string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewOllamaClient constructs a client for the native Ollama chat API.
func NewOllamaClient(model string, config Config) (ports.LLMClient, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if !strings.HasSuffix(baseURL, "/api") {
		baseURL = baseURL + "/api"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &ollamaClient{
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("ollama-client"),
	}, nil
}

func (c *ollamaClient) Model() string {
	return c.model
}

func (c *ollamaClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	payload, err := c.buildRequestPayload(req, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, mapHTTPError(resp.StatusCode, body)
	}

	var response ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", response.Error)
	}

	return c.buildCompletionResponse(response, response.Message.Content), nil
}

func (c *ollamaClient) StreamComplete(
	ctx context.Context,
	req ports.CompletionRequest,
	callbacks ports.CompletionStreamCallbacks,
) (*ports.CompletionResponse, error) {
	payload, err := c.buildRequestPayload(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, mapHTTPError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var builder strings.Builder
	var toolCalls []ports.ToolCall
	var finalResponse *ports.CompletionResponse
	finalSent := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ollamaResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return nil, fmt.Errorf("decode ollama stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return nil, fmt.Errorf("ollama error: %s", chunk.Error)
		}

		if delta := chunk.Message.Content; delta != "" {
			builder.WriteString(delta)
			if cb := callbacks.OnContentDelta; cb != nil {
				cb(ports.ContentDelta{Delta: delta})
			}
		}

		toolCalls = append(toolCalls, convertOllamaToolCalls(chunk.Message.ToolCalls)...)

		if chunk.Done && !finalSent {
			finalSent = true
			if cb := callbacks.OnContentDelta; cb != nil {
				cb(ports.ContentDelta{Final: true})
			}
			finalResponse = c.buildCompletionResponse(chunk, builder.String())
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ollama stream: %w", err)
	}

	if finalResponse == nil {
		// Stream ended without an explicit final chunk; synthesize a response.
		finalResponse = &ports.CompletionResponse{
			Content:    builder.String(),
			StopReason: "unknown",
		}
	}
	finalResponse.ToolCalls = toolCalls

	return finalResponse, nil
}

func (c *ollamaClient) buildRequestPayload(req ports.CompletionRequest, stream bool) ([]byte, error) {
	request := ollamaRequest{
		Model:    c.model,
		Messages: convertOllamaMessages(req.Messages),
		Stream:   stream,
	}

	if len(req.Tools) > 0 {
		for _, tool := range req.Tools {
			request.Tools = append(request.Tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.Parameters,
				},
			})
		}
	}

	options := make(map[string]any)
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(options) > 0 {
		request.Options = options
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}
	return body, nil
}

func (c *ollamaClient) doRequest(ctx context.Context, body []byte) (*http.Response, error) {
	endpoint := fmt.Sprintf("%s/chat", c.baseURL)
	c.logger.Debug("POST %s model=%s", endpoint, c.model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapRequestError(err)
	}
	return resp, nil
}

func (c *ollamaClient) buildCompletionResponse(resp ollamaResponse, content string) *ports.CompletionResponse {
	stopReason := strings.TrimSpace(resp.DoneReason)
	if stopReason == "" {
		stopReason = "stop"
	}

	return &ports.CompletionResponse{
		Content:    content,
		ToolCalls:  convertOllamaToolCalls(resp.Message.ToolCalls),
		StopReason: stopReason,
		Usage: ports.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []map[string]any `json:"tools,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error"`
}

func convertOllamaMessages(msgs []ports.Message) []ollamaMessage {
	result := make([]ollamaMessage, 0, len(msgs))
	for _, msg := range msgs {
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			continue
		}
		// Ollama has no separate tool role id field; tool results go back as
		// tool-role messages with plain content.
		if strings.TrimSpace(msg.Content) == "" && len(msg.ToolCalls) == 0 {
			continue
		}
		result = append(result, ollamaMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return result
}

func convertOllamaToolCalls(calls []ollamaToolCall) []ports.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ports.ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, ports.ToolCall{
			ID:        uuid.NewString(),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}
