package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	PersistPath string // directory for on-disk persistence, empty for in-memory
	Collection  string // knowledge base collection name
}

// Document is a stored knowledge base passage.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// SearchResult pairs a document with its cosine similarity to the query.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// VectorStore manages knowledge base embeddings and similarity search.
type VectorStore interface {
	// EnsureReady provisions the backing collection if it does not exist yet.
	// Safe to call before every search.
	EnsureReady(ctx context.Context) error

	// Add upserts documents into the store.
	Add(ctx context.Context, docs []Document) error

	// SearchByText performs similarity search for a text query.
	SearchByText(ctx context.Context, queryText string, topK int, minSimilarity float32) ([]SearchResult, error)

	// Delete removes documents by ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the total document count.
	Count() int
}

var (
	collectionSanitizer = regexp.MustCompile(`[^a-z0-9-]+`)
	dashCollapser       = regexp.MustCompile(`-+`)
)

// NormalizeCollectionName lowercases the name and collapses anything outside
// [a-z0-9-] into single dashes.
func NormalizeCollectionName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = collectionSanitizer.ReplaceAllString(name, "-")
	name = strings.Trim(dashCollapser.ReplaceAllString(name, "-"), "-")
	if name == "" {
		return "default-index"
	}
	return name
}

// chromemStore implements VectorStore on chromem-go.
type chromemStore struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	config     StoreConfig
	embedder   Embedder
}

// NewVectorStore creates a vector store backed by chromem-go. The collection
// is provisioned lazily by EnsureReady.
func NewVectorStore(config StoreConfig, embedder Embedder) (VectorStore, error) {
	config.Collection = NormalizeCollectionName(config.Collection)

	var db *chromem.DB
	var err error
	if config.PersistPath != "" {
		persistFile := filepath.Join(config.PersistPath, "chromem.gob")
		db, err = chromem.NewPersistentDB(persistFile, false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &chromemStore{
		db:       db,
		config:   config,
		embedder: embedder,
	}, nil
}

func (s *chromemStore) EnsureReady(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection != nil {
		return nil
	}

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.Embed(ctx, text)
	}

	collection, err := s.db.GetOrCreateCollection(s.config.Collection, nil, embeddingFunc)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.config.Collection, err)
	}
	s.collection = collection
	return nil
}

func (s *chromemStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.EnsureReady(ctx); err != nil {
		return err
	}

	for _, doc := range docs {
		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  doc.Metadata,
		})
		if err != nil {
			return fmt.Errorf("add document %s: %w", doc.ID, err)
		}
	}
	return nil
}

func (s *chromemStore) SearchByText(ctx context.Context, queryText string, topK int, minSimilarity float32) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 4
	}
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}

	// chromem-go errors when asked for more results than stored documents.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := s.collection.Query(ctx, queryText, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	var searchResults []SearchResult
	for _, r := range results {
		if r.Similarity < minSimilarity {
			continue
		}
		searchResults = append(searchResults, SearchResult{
			Document: Document{
				ID:        r.ID,
				Content:   r.Content,
				Embedding: r.Embedding,
				Metadata:  r.Metadata,
			},
			Similarity: r.Similarity,
		})
	}
	return searchResults, nil
}

func (s *chromemStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.EnsureReady(ctx); err != nil {
		return err
	}

	for _, id := range ids {
		if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("delete document %s: %w", id, err)
		}
	}
	return nil
}

func (s *chromemStore) Count() int {
	s.mu.Lock()
	collection := s.collection
	s.mu.Unlock()
	if collection == nil {
		return 0
	}
	return collection.Count()
}
