package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"agribot/internal/agent/ports"
	"agribot/internal/attachments"
	"agribot/internal/vision"
)

// classifyTool runs the crop disease classifier against an image previously
// attached to the session.
type classifyTool struct {
	attachments *attachments.Store
	classifier  vision.Classifier
}

// NewClassifyCropDisease creates the classify_crop_disease tool.
func NewClassifyCropDisease(store *attachments.Store, classifier vision.Classifier) ports.ToolExecutor {
	return &classifyTool{
		attachments: store,
		classifier:  classifier,
	}
}

func (t *classifyTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "classify_crop_disease",
		Description: "Classify a crop disease from an uploaded image. Pass image_idx=0 for first image.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"image_idx": {
					Type:        "integer",
					Description: "Zero-based index of the attached image to classify",
				},
			},
		},
	}
}

func (t *classifyTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	imageIdx := 0
	if idx, ok := call.Arguments["image_idx"].(float64); ok {
		imageIdx = int(idx)
	}

	sessionID := ports.SessionIDFromContext(ctx)
	image, err := t.attachments.Get(sessionID, imageIdx)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Name: call.Name, Error: err}, nil
	}

	result, err := t.classifier.Classify(ctx, image, 0)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Name: call.Name, Error: err}, nil
	}

	content, err := json.Marshal(result)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Name: call.Name, Error: fmt.Errorf("encode classification: %w", err)}, nil
	}

	return &ports.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: string(content),
	}, nil
}
