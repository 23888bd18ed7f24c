package llm

import (
	"context"
	"fmt"
	"sync"

	"agribot/internal/agent/ports"
)

var _ ports.StreamingLLMClient = (*MockClient)(nil)

// MockClient replays a scripted sequence of responses. Each call to
// Complete or StreamComplete consumes the next script entry. It is
// safe for concurrent use.
type MockClient struct {
	mu       sync.Mutex
	script   []*ports.CompletionResponse
	calls    int
	requests []ports.CompletionRequest
}

// NewMockClient builds a mock that returns the given responses in order.
func NewMockClient(script ...*ports.CompletionResponse) *MockClient {
	return &MockClient{script: script}
}

func (m *MockClient) Model() string {
	return "mock-model"
}

func (m *MockClient) Complete(_ context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	return m.next(req)
}

func (m *MockClient) StreamComplete(
	_ context.Context,
	req ports.CompletionRequest,
	callbacks ports.CompletionStreamCallbacks,
) (*ports.CompletionResponse, error) {
	resp, err := m.next(req)
	if err != nil {
		return nil, err
	}
	if cb := callbacks.OnContentDelta; cb != nil {
		if resp.Content != "" {
			cb(ports.ContentDelta{Delta: resp.Content})
		}
		cb(ports.ContentDelta{Final: true})
	}
	return resp, nil
}

// Calls reports how many completions have been consumed.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a snapshot of every request seen so far.
func (m *MockClient) Requests() []ports.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockClient) next(req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.calls >= len(m.script) {
		return nil, fmt.Errorf("mock script exhausted after %d calls", m.calls)
	}
	resp := m.script[m.calls]
	m.calls++
	return resp, nil
}
