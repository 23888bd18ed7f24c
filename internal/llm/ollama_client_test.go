package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"agribot/internal/agent/ports"
)

func TestOllamaClientCompleteSuccess(t *testing.T) {
	t.Parallel()

	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/api/chat" {
			t.Fatalf("unexpected path: %s", got)
		}

		var payload ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Stream {
			t.Fatalf("expected stream=false")
		}
		if payload.Model != "llama3.1" {
			t.Fatalf("unexpected model: %s", payload.Model)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "llama3.1",
			"message": {"role": "assistant", "content": "Rotate your crops."},
			"done": true,
			"done_reason": "stop",
			"prompt_eval_count": 12,
			"eval_count": 5
		}`))
	}))

	client, err := NewOllamaClient("llama3.1", Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllamaClient: %v", err)
	}

	resp, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "soil advice"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "Rotate your crops." {
		t.Fatalf("unexpected content: %q", resp.Content)
	}

	if resp.StopReason != "stop" {
		t.Fatalf("unexpected stop reason: %q", resp.StopReason)
	}

	if resp.Usage.TotalTokens != 17 {
		t.Fatalf("unexpected total tokens: %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaClientCompleteToolCalls(t *testing.T) {
	t.Parallel()

	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(payload.Tools) != 1 {
			t.Fatalf("expected 1 tool definition, got %d", len(payload.Tools))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{"function": {"name": "get_weather", "arguments": {"city": "Nashik"}}}]
			},
			"done": true,
			"done_reason": "stop"
		}`))
	}))

	client, err := NewOllamaClient("llama3.1", Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllamaClient: %v", err)
	}

	resp, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "weather in Nashik"}},
		Tools: []ports.ToolDefinition{{
			Name:        "get_weather",
			Description: "Current weather for a city",
		}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.Name != "get_weather" {
		t.Fatalf("unexpected tool name: %s", call.Name)
	}
	if call.Arguments["city"] != "Nashik" {
		t.Fatalf("unexpected arguments: %+v", call.Arguments)
	}
	if call.ID == "" {
		t.Fatalf("expected a synthesized call id")
	}
}

func TestOllamaClientStreamComplete(t *testing.T) {
	t.Parallel()

	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !payload.Stream {
			t.Fatalf("expected stream=true")
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		lines := []string{
			`{"message": {"role": "assistant", "content": "Mulch "}, "done": false}`,
			`{"message": {"role": "assistant", "content": "retains moisture."}, "done": false}`,
			`{"message": {"role": "assistant", "content": ""}, "done": true, "done_reason": "stop", "prompt_eval_count": 8, "eval_count": 4}`,
		}
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}))

	clientIface, err := NewOllamaClient("llama3.1", Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllamaClient: %v", err)
	}

	client, ok := clientIface.(ports.StreamingLLMClient)
	if !ok {
		t.Fatalf("ollama client does not implement StreamingLLMClient")
	}

	var deltas []string
	finals := 0
	resp, err := client.StreamComplete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "mulching?"}},
	}, ports.CompletionStreamCallbacks{
		OnContentDelta: func(delta ports.ContentDelta) {
			if delta.Final {
				finals++
				return
			}
			deltas = append(deltas, delta.Delta)
		},
	})
	if err != nil {
		t.Fatalf("StreamComplete: %v", err)
	}

	if got := strings.Join(deltas, ""); got != "Mulch retains moisture." {
		t.Fatalf("unexpected streamed content: %q", got)
	}

	if finals != 1 {
		t.Fatalf("expected exactly one final marker, got %d", finals)
	}

	if resp.Content != "Mulch retains moisture." {
		t.Fatalf("unexpected content: %q", resp.Content)
	}

	if resp.Usage.TotalTokens != 12 {
		t.Fatalf("unexpected total tokens: %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaClientErrorPayload(t *testing.T) {
	t.Parallel()

	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error": "model not found"}`))
	}))

	client, err := NewOllamaClient("missing-model", Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllamaClient: %v", err)
	}

	_, err = client.Complete(context.Background(), ports.CompletionRequest{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureStreamingWrapsNonStreamingClient(t *testing.T) {
	t.Parallel()

	base := NewMockClient(&ports.CompletionResponse{Content: "ok", StopReason: "stop"})

	// MockClient already streams; strip it down to the base interface to
	// exercise the adapter.
	var nonStreaming ports.LLMClient = completeOnly{base}
	streaming := EnsureStreaming(nonStreaming)

	var deltas []string
	resp, err := streaming.StreamComplete(context.Background(), ports.CompletionRequest{}, ports.CompletionStreamCallbacks{
		OnContentDelta: func(delta ports.ContentDelta) {
			if !delta.Final {
				deltas = append(deltas, delta.Delta)
			}
		},
	})
	if err != nil {
		t.Fatalf("StreamComplete: %v", err)
	}

	if resp.Content != "ok" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if len(deltas) != 1 || deltas[0] != "ok" {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
}

type completeOnly struct {
	base ports.LLMClient
}

func (c completeOnly) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	return c.base.Complete(ctx, req)
}

func (c completeOnly) Model() string { return c.base.Model() }
