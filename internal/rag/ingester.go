package rag

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"agribot/internal/logging"
)

// IngesterConfig holds knowledge base ingestion configuration.
type IngesterConfig struct {
	DocExtensions []string // default .md, .txt
	ChunkConfig   ChunkerConfig
	Concurrency   int // parallel file workers, default 8
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	TotalFiles    int
	IngestedFiles int
	ErrorFiles    int
	TotalChunks   int
}

// Ingester loads documents into the vector store.
type Ingester struct {
	config   IngesterConfig
	chunker  Chunker
	embedder Embedder
	store    VectorStore
	logger   logging.Logger
}

// NewIngester creates a new knowledge base ingester.
func NewIngester(config IngesterConfig, chunker Chunker, embedder Embedder, store VectorStore) *Ingester {
	if len(config.DocExtensions) == 0 {
		config.DocExtensions = []string{".md", ".txt"}
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}

	return &Ingester{
		config:   config,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logging.NewComponentLogger("rag-ingester"),
	}
}

// IngestDir ingests every document under root with a matching extension.
func (ing *Ingester) IngestDir(ctx context.Context, root string) (*IngestStats, error) {
	files, err := ing.collectFiles(root)
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}

	stats := &IngestStats{TotalFiles: len(files)}
	if len(files) == 0 {
		return stats, nil
	}

	if err := ing.store.EnsureReady(ctx); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.config.Concurrency)

	for _, file := range files {
		file := file
		g.Go(func() error {
			chunks, err := ing.ingestFile(gctx, file)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.ErrorFiles++
				ing.logger.Warn("ingest %s: %v", file, err)
				return nil
			}
			stats.IngestedFiles++
			stats.TotalChunks += chunks
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	ing.logger.Info("ingested %d/%d files, %d chunks", stats.IngestedFiles, stats.TotalFiles, stats.TotalChunks)
	return stats, nil
}

// IngestText ingests a single named document, replacing nothing. The name is
// recorded as the source metadata on every chunk.
func (ing *Ingester) IngestText(ctx context.Context, name, text string) (int, error) {
	chunks, err := ing.chunker.ChunkText(text, map[string]string{"source": name})
	if err != nil {
		return 0, fmt.Errorf("chunk %s: %w", name, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	docs := make([]Document, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}

	// Embed in batches of at most 100, the embedder's batch ceiling.
	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += 100 {
		end := start + 100
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := ing.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return 0, fmt.Errorf("embed %s: %w", name, err)
		}
		embeddings = append(embeddings, batch...)
	}

	for i, chunk := range chunks {
		meta := chunk.Metadata
		meta["chunk_index"] = strconv.Itoa(chunk.Index)
		docs = append(docs, Document{
			ID:        chunkID(name, chunk.Index, chunk.Text),
			Content:   chunk.Text,
			Embedding: embeddings[i],
			Metadata:  meta,
		})
	}

	if err := ing.store.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("store %s: %w", name, err)
	}
	return len(docs), nil
}

func (ing *Ingester) ingestFile(ctx context.Context, path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}
	return ing.IngestText(ctx, filepath.Base(path), string(content))
}

func (ing *Ingester) collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, allowed := range ing.config.DocExtensions {
			if ext == allowed {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func chunkID(name string, index int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s#%d-%x", name, index, sum[:8])
}
