package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agribot/internal/logging"
)

// Transcriber converts recorded speech into text.
type Transcriber interface {
	// Transcribe returns the transcript of the audio file at path. The
	// language hint may be empty for auto-detection.
	Transcribe(ctx context.Context, path string, language string) (string, error)
}

// Config holds speech-to-text settings.
type Config struct {
	Provider string // "local" or "openai"

	// Local whisper.cpp settings.
	WhisperBin       string
	WhisperModelPath string
	FFmpegBin        string

	// Remote OpenAI-compatible settings.
	APIKey       string
	BaseURL      string
	WhisperModel string

	// FallbackLocalOnError retries remote failures with the local engine.
	FallbackLocalOnError bool

	// RequestTimeout bounds one remote transcription call. Default 60s.
	RequestTimeout time.Duration

	// SubprocessTimeout bounds one whisper.cpp or ffmpeg run. Default 120s.
	SubprocessTimeout time.Duration
}

// New builds a transcriber for the configured provider. The remote provider
// is optionally wrapped with a local fallback.
func New(config Config) (Transcriber, error) {
	local := newLocalTranscriber(config)

	switch strings.ToLower(config.Provider) {
	case "", "local":
		return local, nil
	case "openai":
		remote, err := newRemoteTranscriber(config)
		if err != nil {
			return nil, err
		}
		if config.FallbackLocalOnError {
			return &fallbackTranscriber{
				primary:  remote,
				fallback: local,
				logger:   logging.NewComponentLogger("stt"),
			}, nil
		}
		return remote, nil
	default:
		return nil, fmt.Errorf("unknown STT provider: %s", config.Provider)
	}
}

// fallbackTranscriber tries the primary engine first and falls back to the
// secondary. When both fail, the primary's error is returned.
type fallbackTranscriber struct {
	primary  Transcriber
	fallback Transcriber
	logger   logging.Logger
}

func (f *fallbackTranscriber) Transcribe(ctx context.Context, path string, language string) (string, error) {
	text, primaryErr := f.primary.Transcribe(ctx, path, language)
	if primaryErr == nil {
		return text, nil
	}

	f.logger.Warn("remote transcription failed, trying local fallback: %v", primaryErr)

	text, fallbackErr := f.fallback.Transcribe(ctx, path, language)
	if fallbackErr == nil {
		return text, nil
	}
	return "", primaryErr
}
