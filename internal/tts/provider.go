package tts

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Request describes one synthesis call.
type Request struct {
	Text     string
	Language string // ISO-ish code, may be empty
	Voice    string // explicit voice override, may be empty
}

// ProviderResult holds synthesized audio.
type ProviderResult struct {
	Audio       []byte
	ContentType string
	Duration    time.Duration
	Metadata    map[string]string
}

// Provider converts text to speech.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize renders the request into audio bytes.
	Synthesize(ctx context.Context, req Request) (ProviderResult, error)
}

// Config holds text-to-speech settings.
type Config struct {
	Provider string // "espeak", "elevenlabs" or "mock"

	// espeak settings.
	EspeakBin    string
	Voice        string // default voice when no language match
	SpeedWPM     int
	VoiceMapPath string // optional YAML file overriding the language voice map

	// ElevenLabs settings.
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	// RequestTimeout bounds one remote synthesis call. Default 60s.
	RequestTimeout time.Duration

	// SubprocessTimeout bounds one espeak run. Default 60s.
	SubprocessTimeout time.Duration
}

// estimateDuration approximates speaking time at the espeak default rate of
// 170 words per minute, with a two second floor so even one-word replies
// yield audible-length clips.
func estimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 2 * time.Second
	}
	seconds := float64(words) * 60.0 / 170.0
	if seconds < 2 {
		seconds = 2
	}
	return time.Duration(seconds * float64(time.Second))
}

// New builds a provider for the configured backend.
func New(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "", "espeak":
		return newEspeakProvider(config)
	case "elevenlabs":
		return newElevenLabsProvider(config)
	case "mock":
		return MockProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown TTS provider: %s", config.Provider)
	}
}
