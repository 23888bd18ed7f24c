package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agribot/internal/logging"
)

// Prediction is a single label with its softmax score.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classification holds the top-1 prediction plus the full top-k list.
type Classification struct {
	Label string       `json:"label"`
	Score float64      `json:"score"`
	TopK  []Prediction `json:"top_k"`
}

// Classifier identifies crop diseases from leaf images.
type Classifier interface {
	Classify(ctx context.Context, image []byte, topK int) (*Classification, error)
}

// Config holds classifier connection settings.
type Config struct {
	BaseURL string
	TopK    int // default 3
	Timeout time.Duration
}

// httpClassifier calls a remote model-serving endpoint that wraps the
// fine-tuned ViT crop disease model.
type httpClassifier struct {
	config     Config
	httpClient *http.Client
	logger     logging.Logger
}

// NewClassifier creates a classifier backed by a remote inference service.
func NewClassifier(config Config) (Classifier, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("classifier base URL not configured")
	}
	if config.TopK <= 0 {
		config.TopK = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &httpClassifier{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logging.NewComponentLogger("vision"),
	}, nil
}

func (c *httpClassifier) Classify(ctx context.Context, image []byte, topK int) (*Classification, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if topK <= 0 {
		topK = c.config.TopK
	}

	payload, err := json.Marshal(map[string]any{
		"image_base64": base64.StdEncoding.EncodeToString(image),
		"top_k":        topK,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/classify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("classifier error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Label string       `json:"label"`
		Score float64      `json:"score"`
		TopK  []Prediction `json:"top_k"`
		Error string       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("classifier error: %s", result.Error)
	}
	if result.Label == "" && len(result.TopK) > 0 {
		result.Label = result.TopK[0].Label
		result.Score = result.TopK[0].Score
	}
	if result.Label == "" {
		return nil, fmt.Errorf("classifier returned no prediction")
	}

	c.logger.Debug("classified image: %s (%.3f)", result.Label, result.Score)

	return &Classification{
		Label: result.Label,
		Score: result.Score,
		TopK:  result.TopK,
	}, nil
}
