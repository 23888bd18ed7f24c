package metrics

import (
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks the gateway's conversation, tool, and model counters.
type Metrics struct {
	turnsTotal          *promclient.CounterVec
	toolCallsTotal      *promclient.CounterVec
	iterationAborts     promclient.Counter
	llmLatency          *promclient.HistogramVec
	llmTokensTotal      *promclient.CounterVec
	requestDuration     *promclient.HistogramVec
	transcriptionsTotal *promclient.CounterVec
}

// New registers the AgriBot metric set on reg. A nil reg uses the default
// registerer.
func New(reg promclient.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	m := &Metrics{
		turnsTotal: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: "agribot",
			Name:      "turns_total",
			Help:      "Completed conversation turns by response mode.",
		}, []string{"mode"}),
		toolCallsTotal: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: "agribot",
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		iterationAborts: promclient.NewCounter(promclient.CounterOpts{
			Namespace: "agribot",
			Name:      "iteration_aborts_total",
			Help:      "Turns that hit the agent iteration cap.",
		}),
		llmLatency: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: "agribot",
			Name:      "llm_request_duration_seconds",
			Help:      "Latency of chat completion requests.",
			Buckets:   promclient.DefBuckets,
		}, []string{"model"}),
		llmTokensTotal: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: "agribot",
			Name:      "llm_tokens_total",
			Help:      "Tokens exchanged with the model by direction.",
		}, []string{"direction"}),
		requestDuration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: "agribot",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of gateway HTTP handlers.",
			Buckets:   promclient.DefBuckets,
		}, []string{"handler", "status"}),
		transcriptionsTotal: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: "agribot",
			Name:      "transcriptions_total",
			Help:      "Speech-to-text runs by outcome.",
		}, []string{"outcome"}),
	}

	collectors := []promclient.Collector{
		m.turnsTotal,
		m.toolCallsTotal,
		m.iterationAborts,
		m.llmLatency,
		m.llmTokensTotal,
		m.requestDuration,
		m.transcriptionsTotal,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(promclient.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

// Nop returns a metric set bound to a throwaway registry, for tests and
// disabled configurations.
func Nop() *Metrics {
	m, _ := New(promclient.NewRegistry())
	return m
}

func (m *Metrics) RecordTurn(mode string) {
	m.turnsTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) RecordToolCall(tool string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) RecordIterationAbort() {
	m.iterationAborts.Inc()
}

func (m *Metrics) ObserveLLMRequest(model string, elapsed time.Duration) {
	m.llmLatency.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (m *Metrics) AddTokens(prompt, completion int) {
	if prompt > 0 {
		m.llmTokensTotal.WithLabelValues("input").Add(float64(prompt))
	}
	if completion > 0 {
		m.llmTokensTotal.WithLabelValues("output").Add(float64(completion))
	}
}

func (m *Metrics) ObserveRequest(handler, status string, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(handler, status).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordTranscription(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.transcriptionsTotal.WithLabelValues(outcome).Inc()
}
