package rag

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// ChunkerConfig holds chunking configuration.
type ChunkerConfig struct {
	ChunkSize    int // tokens per chunk, default 800
	ChunkOverlap int // token overlap between consecutive chunks, default 80
}

// Chunk is a contiguous slice of a source document.
type Chunk struct {
	Text     string
	Index    int
	Metadata map[string]string
}

// Chunker splits text into token-bounded chunks.
type Chunker interface {
	// ChunkText splits text into overlapping chunks.
	ChunkText(text string, metadata map[string]string) ([]Chunk, error)

	// CountTokens returns the token count for text.
	CountTokens(text string) (int, error)
}

// tokenChunker slides a fixed token window over the encoded text.
type tokenChunker struct {
	config   ChunkerConfig
	encoding *tiktoken.Tiktoken
}

// NewChunker creates a new chunker using the cl100k_base encoding.
func NewChunker(config ChunkerConfig) (Chunker, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 800
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 80
	}
	if config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", config.ChunkOverlap, config.ChunkSize)
	}

	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get encoding: %w", err)
	}

	return &tokenChunker{
		config:   config,
		encoding: encoding,
	}, nil
}

func (c *tokenChunker) ChunkText(text string, metadata map[string]string) ([]Chunk, error) {
	if text == "" {
		return nil, nil
	}

	tokens := c.encoding.Encode(text, nil, nil)

	var chunks []Chunk
	for i := 0; i < len(tokens); {
		j := i + c.config.ChunkSize
		if j > len(tokens) {
			j = len(tokens)
		}

		chunks = append(chunks, Chunk{
			Text:     c.encoding.Decode(tokens[i:j]),
			Index:    len(chunks),
			Metadata: cloneMetadata(metadata),
		})

		if j == len(tokens) {
			break
		}
		i = j - c.config.ChunkOverlap
	}

	return chunks, nil
}

func (c *tokenChunker) CountTokens(text string) (int, error) {
	return len(c.encoding.Encode(text, nil, nil)), nil
}

func cloneMetadata(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}
