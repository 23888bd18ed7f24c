package llm

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// parseToolArguments decodes a model-emitted tool argument string. Models
// occasionally emit almost-JSON (trailing commas, single quotes, unquoted
// keys); a repair pass recovers those before the call is given up on. An
// empty string means the tool takes no arguments.
func parseToolArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("repair tool arguments: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, fmt.Errorf("parse repaired tool arguments: %w", err)
	}
	return args, nil
}
