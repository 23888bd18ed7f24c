package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	agriberrors "agribot/internal/errors"
	"agribot/internal/logging"
)

const defaultElevenLabsBaseURL = "https://api.elevenlabs.io"

// elevenLabsProvider calls the ElevenLabs text-to-speech API.
type elevenLabsProvider struct {
	apiKey     string
	voiceID    string
	modelID    string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

func newElevenLabsProvider(config Config) (*elevenLabsProvider, error) {
	if config.ElevenLabsAPIKey == "" {
		return nil, agriberrors.NewConfigError("ELEVENLABS_API_KEY")
	}
	if strings.TrimSpace(config.ElevenLabsVoiceID) == "" {
		return nil, agriberrors.NewConfigError("ELEVENLABS_VOICE_ID")
	}
	modelID := config.ElevenLabsModelID
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &elevenLabsProvider{
		apiKey:     config.ElevenLabsAPIKey,
		voiceID:    config.ElevenLabsVoiceID,
		modelID:    modelID,
		baseURL:    defaultElevenLabsBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("tts-elevenlabs"),
	}, nil
}

func (p *elevenLabsProvider) Name() string {
	return "elevenlabs"
}

func (p *elevenLabsProvider) Synthesize(ctx context.Context, req Request) (ProviderResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return ProviderResult{}, fmt.Errorf("empty text")
	}

	payload, err := json.Marshal(map[string]any{
		"text":     req.Text,
		"model_id": p.modelID,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return ProviderResult{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", strings.TrimRight(p.baseURL, "/"), p.voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return ProviderResult{}, err
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger.Debug("synthesizing %d chars with voice %s", len(req.Text), p.voiceID)
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return ProviderResult{}, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return ProviderResult{}, fmt.Errorf("elevenlabs API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return ProviderResult{}, fmt.Errorf("read audio: %w", err)
	}

	return ProviderResult{
		Audio:       audio,
		ContentType: "audio/mpeg",
		Duration:    estimateDuration(req.Text),
		Metadata:    map[string]string{"voice": p.voiceID},
	}, nil
}
