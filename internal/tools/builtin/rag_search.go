package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agribot/internal/agent/ports"
	"agribot/internal/rag"
)

// ragSearchTool answers factual questions from the ingested knowledge base.
type ragSearchTool struct {
	retriever *rag.Retriever
}

// NewRAGSearch creates the rag_search tool.
func NewRAGSearch(retriever *rag.Retriever) ports.ToolExecutor {
	return &ragSearchTool{retriever: retriever}
}

func (t *ragSearchTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "rag_search",
		Description: "Search the agricultural knowledge base and return top-k passages.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"query": {
					Type:        "string",
					Description: "Natural language question to look up",
				},
				"k": {
					Type:        "integer",
					Description: "Number of passages to return (default 4)",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *ragSearchTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	query, ok := call.Arguments["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return &ports.ToolResult{
			CallID: call.ID,
			Name:   call.Name,
			Error:  fmt.Errorf("missing or invalid 'query' parameter"),
		}, nil
	}

	topK := 0
	// JSON numbers arrive as float64.
	if k, ok := call.Arguments["k"].(float64); ok && k > 0 {
		topK = int(k)
	}

	matches, err := t.retriever.Search(ctx, query, topK)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Name: call.Name, Error: err}, nil
	}

	content, err := json.Marshal(map[string]any{"matches": matches})
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Name: call.Name, Error: err}, nil
	}

	return &ports.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: string(content),
	}, nil
}
