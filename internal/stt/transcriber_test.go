package stt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"agribot/internal/logging"
)

func TestConfiguredTimeouts(t *testing.T) {
	remote, err := newRemoteTranscriber(Config{APIKey: "key", RequestTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("newRemoteTranscriber: %v", err)
	}
	if remote.httpClient.Timeout != 5*time.Second {
		t.Fatalf("remote timeout = %v, want 5s", remote.httpClient.Timeout)
	}

	remoteDefault, err := newRemoteTranscriber(Config{APIKey: "key"})
	if err != nil {
		t.Fatalf("newRemoteTranscriber: %v", err)
	}
	if remoteDefault.httpClient.Timeout != 60*time.Second {
		t.Fatalf("remote default timeout = %v, want 60s", remoteDefault.httpClient.Timeout)
	}

	if got := newLocalTranscriber(Config{SubprocessTimeout: 30 * time.Second}).timeout; got != 30*time.Second {
		t.Fatalf("local timeout = %v, want 30s", got)
	}
	if got := newLocalTranscriber(Config{}).timeout; got != 120*time.Second {
		t.Fatalf("local default timeout = %v, want 120s", got)
	}
}

func TestParseTranscript(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   string
	}{
		{
			name:   "timestamped lines",
			stdout: "[00:00:00.000 --> 00:00:02.500]  My wheat has yellow spots\n[00:00:02.500 --> 00:00:04.000]  what should I do",
			want:   "My wheat has yellow spots what should I do",
		},
		{
			name:   "diagnostics skipped",
			stdout: "whisper_init: loading model\ntotal time = 1200 ms\nplain transcript line",
			want:   "plain transcript line",
		},
		{
			name:   "fallback to last non-empty line",
			stdout: "whisper_init: loading model\nprocessing took 300 ms\n",
			want:   "processing took 300 ms",
		},
		{
			name:   "empty output",
			stdout: "\n\n",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseTranscript(tt.stdout); got != tt.want {
				t.Fatalf("parseTranscript() = %q, want %q", got, tt.want)
			}
		})
	}
}

type stubTranscriber struct {
	text  string
	err   error
	calls int
}

func (s *stubTranscriber) Transcribe(context.Context, string, string) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestFallbackTranscriberPrefersPrimary(t *testing.T) {
	primary := &stubTranscriber{text: "primary transcript"}
	fallback := &stubTranscriber{text: "fallback transcript"}
	tr := &fallbackTranscriber{primary: primary, fallback: fallback}

	text, err := tr.Transcribe(context.Background(), "audio.ogg", "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "primary transcript" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback should not run when primary succeeds")
	}
}

func TestFallbackTranscriberUsesLocalOnError(t *testing.T) {
	primary := &stubTranscriber{err: errors.New("remote down")}
	fallback := &stubTranscriber{text: "local transcript"}
	tr := &fallbackTranscriber{primary: primary, fallback: fallback, logger: logging.NewComponentLogger("stt")}

	text, err := tr.Transcribe(context.Background(), "audio.ogg", "hi")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "local transcript" {
		t.Fatalf("unexpected transcript: %q", text)
	}
}

func TestFallbackTranscriberPropagatesPrimaryError(t *testing.T) {
	primaryErr := errors.New("remote quota exceeded")
	primary := &stubTranscriber{err: primaryErr}
	fallback := &stubTranscriber{err: errors.New("whisper binary missing")}
	tr := &fallbackTranscriber{primary: primary, fallback: fallback, logger: logging.NewComponentLogger("stt")}

	_, err := tr.Transcribe(context.Background(), "audio.ogg", "")
	if !errors.Is(err, primaryErr) {
		t.Fatalf("expected primary error, got %v", err)
	}
}

func TestNewProviderSelection(t *testing.T) {
	if _, err := New(Config{Provider: "local"}); err != nil {
		t.Fatalf("local provider: %v", err)
	}

	if _, err := New(Config{Provider: "openai"}); err == nil {
		t.Fatalf("expected config error without API key")
	}

	tr, err := New(Config{Provider: "openai", APIKey: "key", FallbackLocalOnError: true})
	if err != nil {
		t.Fatalf("openai provider: %v", err)
	}
	if _, ok := tr.(*fallbackTranscriber); !ok {
		t.Fatalf("expected fallback wrapper, got %T", tr)
	}

	if _, err := New(Config{Provider: "siri"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestRemoteTranscriber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %q", got)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Fatalf("unexpected model: %q", got)
		}
		if got := r.FormValue("language"); got != "mr" {
			t.Fatalf("unexpected language: %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Fatalf("missing file part: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": " माझ्या पिकाला पाणी कधी द्यावे "}`))
	}))
	t.Cleanup(server.Close)

	tr, err := newRemoteTranscriber(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("newRemoteTranscriber: %v", err)
	}

	audioPath := filepath.Join(t.TempDir(), "voice.wav")
	if err := os.WriteFile(audioPath, []byte("RIFFfakewav"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	text, err := tr.Transcribe(context.Background(), audioPath, "mr")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "माझ्या पिकाला पाणी कधी द्यावे" {
		t.Fatalf("unexpected transcript: %q", text)
	}
}

func TestRemoteTranscriberHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid audio"}}`, http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	tr, err := newRemoteTranscriber(Config{APIKey: "key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("newRemoteTranscriber: %v", err)
	}

	audioPath := filepath.Join(t.TempDir(), "voice.wav")
	if err := os.WriteFile(audioPath, []byte("RIFFfakewav"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	if _, err := tr.Transcribe(context.Background(), audioPath, ""); err == nil {
		t.Fatalf("expected error")
	}
}
