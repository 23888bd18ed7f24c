package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClassifierSuccess(t *testing.T) {
	t.Parallel()

	image := []byte("fake-jpeg-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}

		var payload struct {
			ImageBase64 string `json:"image_base64"`
			TopK        int    `json:"top_k"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		decoded, err := base64.StdEncoding.DecodeString(payload.ImageBase64)
		if err != nil {
			t.Fatalf("decode image: %v", err)
		}
		if string(decoded) != string(image) {
			t.Fatalf("image bytes mangled in transit")
		}
		if payload.TopK != 3 {
			t.Fatalf("expected default top_k 3, got %d", payload.TopK)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"label": "Tomato___Late_blight",
			"score": 0.93,
			"top_k": [
				{"label": "Tomato___Late_blight", "score": 0.93},
				{"label": "Tomato___Early_blight", "score": 0.04},
				{"label": "Tomato___healthy", "score": 0.01}
			]
		}`))
	}))
	t.Cleanup(server.Close)

	classifier, err := NewClassifier(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	result, err := classifier.Classify(context.Background(), image, 0)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Label != "Tomato___Late_blight" {
		t.Fatalf("unexpected label: %s", result.Label)
	}
	if result.Score != 0.93 {
		t.Fatalf("unexpected score: %f", result.Score)
	}
	if len(result.TopK) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(result.TopK))
	}
}

func TestClassifierErrorPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error": "cannot identify image file"}`))
	}))
	t.Cleanup(server.Close)

	classifier, err := NewClassifier(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	_, err = classifier.Classify(context.Background(), []byte("not-an-image"), 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "cannot identify image file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClassifierHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	classifier, err := NewClassifier(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	_, err = classifier.Classify(context.Background(), []byte("img"), 2)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status in error, got: %v", err)
	}
}

func TestClassifierValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClassifier(Config{}); err == nil {
		t.Fatalf("expected error for missing base URL")
	}

	classifier, err := NewClassifier(Config{BaseURL: "http://localhost:9"})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	if _, err := classifier.Classify(context.Background(), nil, 0); err == nil {
		t.Fatalf("expected error for empty image")
	}
}
