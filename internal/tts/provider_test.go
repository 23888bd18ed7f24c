package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewProviderSelection(t *testing.T) {
	espeak, err := New(Config{Provider: "espeak"})
	if err != nil {
		t.Fatalf("espeak provider: %v", err)
	}
	if espeak.Name() != "espeak" {
		t.Fatalf("unexpected provider: %s", espeak.Name())
	}

	if _, err := New(Config{Provider: "elevenlabs"}); err == nil {
		t.Fatalf("expected config error without ElevenLabs API key")
	}

	mock, err := New(Config{Provider: "mock"})
	if err != nil {
		t.Fatalf("mock provider: %v", err)
	}
	if mock.Name() != "mock" {
		t.Fatalf("unexpected provider: %s", mock.Name())
	}

	if _, err := New(Config{Provider: "festival"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestEspeakVoiceSelection(t *testing.T) {
	provider, err := newEspeakProvider(Config{Voice: "en-us"})
	if err != nil {
		t.Fatalf("newEspeakProvider: %v", err)
	}

	tests := []struct {
		req  Request
		want string
	}{
		{Request{Language: "hi"}, "hi"},
		{Request{Language: "MR"}, "mr"},
		{Request{Language: "en-in"}, "en-in"},
		{Request{Language: "fr"}, "en-us"},
		{Request{}, "en-us"},
		{Request{Language: "hi", Voice: "hi-custom"}, "hi-custom"},
	}
	for _, tt := range tests {
		if got := provider.voiceFor(tt.req); got != tt.want {
			t.Errorf("voiceFor(%+v) = %q, want %q", tt.req, got, tt.want)
		}
	}
}

func TestEspeakVoiceMapOverride(t *testing.T) {
	mapPath := filepath.Join(t.TempDir(), "voices.yaml")
	if err := os.WriteFile(mapPath, []byte("hi: hindi-custom\nor: or\n"), 0o644); err != nil {
		t.Fatalf("write voice map: %v", err)
	}

	provider, err := newEspeakProvider(Config{VoiceMapPath: mapPath})
	if err != nil {
		t.Fatalf("newEspeakProvider: %v", err)
	}

	if got := provider.voiceFor(Request{Language: "hi"}); got != "hindi-custom" {
		t.Fatalf("override not applied: %q", got)
	}
	if got := provider.voiceFor(Request{Language: "or"}); got != "or" {
		t.Fatalf("new mapping not applied: %q", got)
	}
	if got := provider.voiceFor(Request{Language: "ta"}); got != "ta" {
		t.Fatalf("default mapping lost: %q", got)
	}
}

func TestConfiguredTimeouts(t *testing.T) {
	espeak, err := newEspeakProvider(Config{SubprocessTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("newEspeakProvider: %v", err)
	}
	if espeak.timeout != 10*time.Second {
		t.Fatalf("espeak timeout = %v, want 10s", espeak.timeout)
	}

	espeakDefault, err := newEspeakProvider(Config{})
	if err != nil {
		t.Fatalf("newEspeakProvider: %v", err)
	}
	if espeakDefault.timeout != 60*time.Second {
		t.Fatalf("espeak default timeout = %v, want 60s", espeakDefault.timeout)
	}

	eleven, err := newElevenLabsProvider(Config{
		ElevenLabsAPIKey:  "key",
		ElevenLabsVoiceID: "voice-1",
		RequestTimeout:    15 * time.Second,
	})
	if err != nil {
		t.Fatalf("newElevenLabsProvider: %v", err)
	}
	if eleven.httpClient.Timeout != 15*time.Second {
		t.Fatalf("elevenlabs timeout = %v, want 15s", eleven.httpClient.Timeout)
	}
}

func TestEspeakRejectsEmptyText(t *testing.T) {
	provider, err := newEspeakProvider(Config{})
	if err != nil {
		t.Fatalf("newEspeakProvider: %v", err)
	}
	if _, err := provider.Synthesize(context.Background(), Request{Text: "   "}); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestMockProviderProducesWAV(t *testing.T) {
	provider := MockProvider{}

	result, err := provider.Synthesize(context.Background(), Request{Text: "Water your crops at dawn.", Voice: "en-us"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if result.ContentType != "audio/wav" {
		t.Fatalf("unexpected content type: %s", result.ContentType)
	}
	if len(result.Audio) < 44 {
		t.Fatalf("audio shorter than WAV header: %d bytes", len(result.Audio))
	}
	if string(result.Audio[:4]) != "RIFF" || string(result.Audio[8:12]) != "WAVE" {
		t.Fatalf("not a WAV container")
	}
	if result.Duration < 2*time.Second {
		t.Fatalf("unexpected duration: %v", result.Duration)
	}
}

func TestMockProviderVoiceSelection(t *testing.T) {
	provider := MockProvider{}

	tests := []struct {
		req  Request
		want string
	}{
		{Request{Text: "hello", Language: "hi"}, "hi"},
		{Request{Text: "hello", Language: "MR"}, "mr"},
		{Request{Text: "hello"}, "en-us"},
		{Request{Text: "hello", Language: "hi", Voice: "hi-custom"}, "hi-custom"},
	}
	for _, tt := range tests {
		result, err := provider.Synthesize(context.Background(), tt.req)
		if err != nil {
			t.Fatalf("Synthesize(%+v): %v", tt.req, err)
		}
		if got := result.Metadata["voice"]; got != tt.want {
			t.Errorf("voice for %+v = %q, want %q", tt.req, got, tt.want)
		}
		if got := result.Metadata["language"]; got != tt.req.Language {
			t.Errorf("language metadata for %+v = %q", tt.req, got)
		}
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/text-to-speech/") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Fatalf("unexpected api key header: %q", got)
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-mp3-bytes"))
	}))
	t.Cleanup(server.Close)

	provider, err := newElevenLabsProvider(Config{
		ElevenLabsAPIKey:  "test-key",
		ElevenLabsVoiceID: "voice-1",
	})
	if err != nil {
		t.Fatalf("newElevenLabsProvider: %v", err)
	}
	provider.baseURL = server.URL

	result, err := provider.Synthesize(context.Background(), Request{Text: "Harvest before the rains."})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if result.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected content type: %s", result.ContentType)
	}
	if string(result.Audio[:3]) != "ID3" {
		t.Fatalf("audio bytes mangled")
	}
	if result.Metadata["voice"] != "voice-1" {
		t.Fatalf("unexpected metadata: %+v", result.Metadata)
	}
}

func TestElevenLabsMissingVoiceID(t *testing.T) {
	_, err := newElevenLabsProvider(Config{ElevenLabsAPIKey: "key", ElevenLabsVoiceID: "  "})
	if err == nil {
		t.Fatalf("expected config error for missing voice id")
	}
}
