package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"agribot/internal/agent/ports"
)

func TestParseToolArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", raw: "", want: nil},
		{name: "valid", raw: `{"city":"Pune"}`, want: map[string]any{"city": "Pune"}},
		{name: "trailing comma repaired", raw: `{"city": "Pune",}`, want: map[string]any{"city": "Pune"}},
		{name: "single quotes repaired", raw: `{'query': 'leaf rust'}`, want: map[string]any{"query": "leaf rust"}},
		{name: "unquoted keys repaired", raw: `{city: "Nagpur", unit: "f"}`, want: map[string]any{"city": "Nagpur", "unit": "f"}},
		{name: "not an object", raw: `"just text"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseToolArguments(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				if got != nil {
					t.Fatalf("expected nil arguments on failure, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseToolArguments: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("key %s: got %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestOpenAIClientRepairsMalformedToolArguments(t *testing.T) {
	t.Parallel()

	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"content": "",
						"tool_calls": []any{
							map[string]any{
								"id":   "call-1",
								"type": "function",
								"function": map[string]any{
									"name":      "get_weather",
									"arguments": `{"city": "Pune",}`,
								},
							},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
			"usage": map[string]any{},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("write response: %v", err)
		}
	}))

	client, err := NewOpenAIClient("test-model", Config{APIKey: "key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}

	resp, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "weather in Pune?"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected the tool call to survive repair, got %d calls", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Arguments["city"] != "Pune" {
		t.Fatalf("arguments not recovered: %+v", resp.ToolCalls[0].Arguments)
	}
}
