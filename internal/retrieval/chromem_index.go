package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"
)

// EmbedFunc produces an embedding vector for a chunk of text. Embedding
// is out of core scope (spec.md §1 puts the concrete embedder alongside
// the vector store as an external collaborator); ChromemIndex only needs
// something satisfying chromem's embedding-function shape.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// ChromemIndex is the default VectorIndex, backed by
// github.com/philippgille/chromem-go, the same embedded vector store the
// teacher wires in rag/store/chromem.go.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	embed      chromem.EmbeddingFunc
}

// ChromemConfig configures a ChromemIndex.
type ChromemConfig struct {
	// PersistenceDir; empty means in-memory only.
	PersistenceDir string
	CollectionName string
	Embed          EmbedFunc
}

// NewChromemIndex creates (or reopens) a persistent or in-memory chromem
// collection.
func NewChromemIndex(cfg ChromemConfig) (*ChromemIndex, error) {
	if cfg.Embed == nil {
		return nil, fmt.Errorf("retrieval: embed function is required")
	}
	name := cfg.CollectionName
	if name == "" {
		name = "medical_documents"
	}

	var db *chromem.DB
	if cfg.PersistenceDir != "" {
		if err := os.MkdirAll(cfg.PersistenceDir, 0o755); err != nil {
			return nil, fmt.Errorf("retrieval: create persistence dir: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(filepath.Join(cfg.PersistenceDir, "chromem.db"), false)
		if err != nil {
			return nil, fmt.Errorf("retrieval: open chromem db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embedFunc := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		return cfg.Embed(ctx, text)
	})

	collection := db.GetCollection(name, embedFunc)
	if collection == nil {
		var err error
		collection, err = db.CreateCollection(name, nil, embedFunc)
		if err != nil {
			return nil, fmt.Errorf("retrieval: create collection: %w", err)
		}
	}

	return &ChromemIndex{db: db, collection: collection, embed: embedFunc}, nil
}

// Add embeds and stores passages, keyed by SourceID.
func (c *ChromemIndex) Add(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(passages))
	for _, p := range passages {
		metadata := make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			metadata[k] = fmt.Sprint(v)
		}
		doc, err := chromem.NewDocument(ctx, p.SourceID, metadata, nil, p.Content, c.embed)
		if err != nil {
			return fmt.Errorf("retrieval: build document %s: %w", p.SourceID, err)
		}
		docs = append(docs, doc)
	}

	return c.collection.AddDocuments(ctx, docs, 1)
}

// Search embeds query and returns up to k nearest passages (k1 ≈ 20 per
// spec.md §4.7; the caller picks k).
func (c *ChromemIndex) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		return nil, fmt.Errorf("retrieval: k must be positive")
	}

	count := c.collection.Count()
	if k > count {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	results, err := c.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval: query collection: %w", err)
	}

	passages := make([]Passage, len(results))
	for i, r := range results {
		metadata := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		passages[i] = Passage{
			Content:  r.Content,
			SourceID: r.ID,
			Score:    float64(r.Similarity),
			Metadata: metadata,
		}
	}
	return passages, nil
}
