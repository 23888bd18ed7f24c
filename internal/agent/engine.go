package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agribot/internal/agent/ports"
	"agribot/internal/attachments"
	"agribot/internal/errors"
	"agribot/internal/logging"
	"agribot/internal/metrics"
	"agribot/internal/session"
)

const (
	// DefaultMaxIterations caps model round-trips per turn.
	DefaultMaxIterations = 4

	stopReasonFinal         = "stop"
	stopReasonMaxIterations = "max_iterations"

	iterationLimitReply = "I could not finish reasoning about that within my limits. Please try a simpler question."
)

// Config tunes the agent loop.
type Config struct {
	MaxIterations int
	Temperature   float64
	MaxTokens     int
}

// TurnRequest is one user turn addressed to a session.
type TurnRequest struct {
	SessionID   string
	Message     string
	UserContext string
	Images      [][]byte
}

// TurnResult is the terminal outcome of a turn.
type TurnResult struct {
	Text       string             `json:"text"`
	ToolCalls  []ports.ToolResult `json:"tool_calls,omitempty"`
	StopReason string             `json:"stop_reason"`
	Iterations int                `json:"iterations"`
}

// Engine runs the tool-calling loop over a session's history. One Engine
// serves all sessions; per-session state lives in the history and attachment
// stores.
type Engine struct {
	llm     ports.StreamingLLMClient
	tools   ports.ToolRegistry
	history session.HistoryStore
	images  *attachments.Store
	cfg     Config
	logger  logging.Logger
	metrics *metrics.Metrics
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithLogger attaches a component logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(logger) }
}

// WithMetrics attaches a metric set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// New builds an engine over the given model, tools, and session state.
func New(cfg Config, llm ports.StreamingLLMClient, registry ports.ToolRegistry, history session.HistoryStore, images *attachments.Store, opts ...Option) *Engine {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	e := &Engine{
		llm:     llm,
		tools:   registry,
		history: history,
		images:  images,
		cfg:     cfg,
		logger:  logging.Nop(),
		metrics: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Respond runs one synchronous turn and returns the final answer.
func (e *Engine) Respond(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	result, err := e.run(ctx, req, nil)
	if err == nil {
		e.metrics.RecordTurn("sync")
	}
	return result, err
}

// Stream runs one turn, delivering the final answer's content deltas to
// onDelta as they arrive. Intermediate tool-selection iterations produce no
// deltas; onDelta receives a Final marker after the last fragment. History
// and attachment mutations are identical to Respond.
func (e *Engine) Stream(ctx context.Context, req TurnRequest, onDelta func(ports.ContentDelta)) (*TurnResult, error) {
	result, err := e.run(ctx, req, onDelta)
	if err == nil {
		e.metrics.RecordTurn("stream")
	}
	return result, err
}

func (e *Engine) run(ctx context.Context, req TurnRequest, onDelta func(ports.ContentDelta)) (*TurnResult, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = ports.DefaultSessionID
	}
	ctx = ports.WithSessionID(ctx, sessionID)

	transcript := e.history.GetOrCreate(sessionID)
	e.images.Put(sessionID, req.Images)

	userText := wrapUserContext(req.UserContext, req.Message)

	messages := make([]ports.Message, 0, transcript.Len()+4)
	messages = append(messages, ports.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, transcript.Messages()...)
	messages = append(messages,
		ports.Message{Role: "user", Content: userText},
		ports.Message{Role: "user", Content: "Attachments available: " + attachmentsOverview(len(req.Images))},
	)

	toolDefs := e.tools.List()

	var (
		finalText   string
		lastContent string
		toolResults []ports.ToolResult
		stopReason  string
		iterations  int
	)

	for iterations < e.cfg.MaxIterations {
		iterations++

		resp, err := e.complete(ctx, ports.CompletionRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Temperature: e.cfg.Temperature,
			MaxTokens:   e.cfg.MaxTokens,
		}, onDelta)
		if err != nil {
			e.logger.Error("completion failed: session=%s iteration=%d: %v", sessionID, iterations, err)
			return nil, fmt.Errorf("agent completion: %w", err)
		}
		if resp.Content != "" {
			lastContent = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			finalText = resp.Content
			stopReason = stopReasonFinal
			break
		}

		messages = append(messages, ports.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result := e.executeTool(ctx, call)
			toolResults = append(toolResults, *result)
			messages = append(messages, ports.Message{
				Role:       "tool",
				Content:    toolResultContent(result),
				ToolCallID: call.ID,
			})
		}
	}

	if stopReason == "" {
		stopReason = stopReasonMaxIterations
		finalText = lastContent
		if strings.TrimSpace(finalText) == "" {
			finalText = iterationLimitReply
		}
		e.metrics.RecordIterationAbort()
		e.logger.Warn("iteration cap reached: session=%s iterations=%d", sessionID, iterations)
	}

	if onDelta != nil && stopReason == stopReasonMaxIterations {
		// The fallback text never went through the model stream.
		onDelta(ports.ContentDelta{Delta: finalText})
		onDelta(ports.ContentDelta{Final: true})
	}

	transcript.AppendTurn(userText, finalText)

	return &TurnResult{
		Text:       finalText,
		ToolCalls:  toolResults,
		StopReason: stopReason,
		Iterations: iterations,
	}, nil
}

// complete performs one model round-trip. When streaming, deltas are buffered
// until the response is known to carry no tool calls, so callers only ever
// see final-answer content.
func (e *Engine) complete(ctx context.Context, req ports.CompletionRequest, onDelta func(ports.ContentDelta)) (*ports.CompletionResponse, error) {
	start := time.Now()
	var (
		resp *ports.CompletionResponse
		err  error
	)
	if onDelta == nil {
		resp, err = e.llm.Complete(ctx, req)
	} else {
		var buffered []ports.ContentDelta
		resp, err = e.llm.StreamComplete(ctx, req, ports.CompletionStreamCallbacks{
			OnContentDelta: func(delta ports.ContentDelta) {
				buffered = append(buffered, delta)
			},
		})
		if err == nil && len(resp.ToolCalls) == 0 {
			for _, delta := range buffered {
				onDelta(delta)
			}
		}
	}
	e.metrics.ObserveLLMRequest(e.llm.Model(), time.Since(start))
	if err != nil {
		return nil, err
	}
	e.metrics.AddTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp, nil
}

// executeTool runs one tool call. Failures of any kind become an error result
// the model can read and recover from; the loop itself never aborts on a tool
// failure.
func (e *Engine) executeTool(ctx context.Context, call ports.ToolCall) *ports.ToolResult {
	tool, err := e.tools.Get(call.Name)
	if err != nil {
		e.metrics.RecordToolCall(call.Name, false)
		e.logger.Warn("unknown tool requested: %s", call.Name)
		return &ports.ToolResult{
			CallID: call.ID,
			Name:   call.Name,
			Error:  fmt.Errorf("unknown tool %q; use one of the provided tools", call.Name),
		}
	}

	result, err := tool.Execute(ctx, call)
	if err != nil {
		e.metrics.RecordToolCall(call.Name, false)
		e.logger.Error("tool %s failed: %v", call.Name, err)
		return &ports.ToolResult{
			CallID: call.ID,
			Name:   call.Name,
			Error:  fmt.Errorf("%s", errors.FormatForLLM(err)),
		}
	}
	if result == nil {
		result = &ports.ToolResult{CallID: call.ID, Name: call.Name}
	}
	e.metrics.RecordToolCall(call.Name, result.Error == nil)
	return result
}

// toolResultContent renders a result as the tool-role message body. Errors
// travel as a JSON payload so the model sees them as data, not as protocol
// failures.
func toolResultContent(result *ports.ToolResult) string {
	if result.Error != nil {
		payload, _ := json.Marshal(map[string]string{"error": result.Error.Error()})
		return string(payload)
	}
	return result.Content
}
