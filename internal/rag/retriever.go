package rag

import (
	"context"
	"fmt"
	"strings"
)

// maxPassageRunes bounds the text returned per match so tool payloads stay
// small enough for the model context.
const maxPassageRunes = 1200

// RetrieverConfig holds retrieval configuration.
type RetrieverConfig struct {
	TopK          int     // number of passages to return, default 4
	MinSimilarity float32 // minimum cosine similarity, default 0 (no filter)
}

// Match is a retrieved knowledge base passage.
type Match struct {
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float32           `json:"similarity"`
}

// Retriever searches the ingested knowledge base.
type Retriever struct {
	config RetrieverConfig
	store  VectorStore
}

// NewRetriever creates a new retriever.
func NewRetriever(config RetrieverConfig, store VectorStore) *Retriever {
	if config.TopK == 0 {
		config.TopK = 4
	}
	return &Retriever{
		config: config,
		store:  store,
	}
}

// Search returns the top-k passages for a natural language query. A topK of
// zero falls back to the configured default.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if topK <= 0 {
		topK = r.config.TopK
	}

	searchResults, err := r.store.SearchByText(ctx, query, topK, r.config.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}

	matches := make([]Match, 0, len(searchResults))
	for _, sr := range searchResults {
		matches = append(matches, Match{
			Text:       truncateRunes(sr.Document.Content, maxPassageRunes),
			Metadata:   sr.Document.Metadata,
			Similarity: sr.Similarity,
		})
	}
	return matches, nil
}

// FormatMatches renders matches as numbered passages for model consumption.
func FormatMatches(matches []Match) string {
	if len(matches) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d relevant passages:\n\n", len(matches)))
	for i, match := range matches {
		source := match.Metadata["source"]
		if source == "" {
			source = "knowledge base"
		}
		sb.WriteString(fmt.Sprintf("%d. %s (similarity: %.2f)\n", i+1, source, match.Similarity))
		sb.WriteString(strings.TrimSpace(match.Text))
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
