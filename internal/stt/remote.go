package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	agriberrors "agribot/internal/errors"
	"agribot/internal/logging"
)

// remoteTranscriber uploads audio to an OpenAI-compatible transcription
// endpoint.
type remoteTranscriber struct {
	apiKey     string
	baseURL    string
	model      string
	ffmpegBin  string
	httpClient *http.Client
	logger     logging.Logger
}

func newRemoteTranscriber(config Config) (*remoteTranscriber, error) {
	if config.APIKey == "" {
		return nil, agriberrors.NewConfigError("OPENAI_API_KEY")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := config.WhisperModel
	if model == "" {
		model = "whisper-1"
	}
	ffmpegBin := config.FFmpegBin
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &remoteTranscriber{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		ffmpegBin:  ffmpegBin,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("stt-remote"),
	}, nil
}

func (r *remoteTranscriber) Transcribe(ctx context.Context, path string, language string) (string, error) {
	wavPath, err := ensureWAV(ctx, r.ffmpegBin, path)
	if err != nil {
		return "", err
	}

	audio, err := os.Open(wavPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer func() { _ = audio.Close() }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("copy audio: %w", err)
	}
	if err := writer.WriteField("model", r.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	endpoint := r.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	r.logger.Debug("POST %s model=%s", endpoint, r.model)
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcription API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}
