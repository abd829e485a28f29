package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/clinicflow/triage/internal/config"
	"github.com/clinicflow/triage/internal/retrieval"
)

// chunkSize bounds how much text goes into one retrieval passage; long
// documents are split on this boundary before embedding.
const chunkSize = 1500

func runIngest(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlagSet("ingest")
	dir := fs.String("dir", "", "directory of .txt documents to ingest")
	fs.Parse(args)

	if *dir == "" {
		return fmt.Errorf("-dir is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	model, err := openai.New(openai.WithToken(cfg.LLMAPIKey), openai.WithBaseURL(cfg.LLMBaseURL))
	if err != nil {
		return fmt.Errorf("build embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(model)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	index, err := retrieval.NewChromemIndex(retrieval.ChromemConfig{
		PersistenceDir: cfg.ChromemPersistDir,
		CollectionName: cfg.KnowledgeCollection,
		Embed:          embedder.EmbedQuery,
	})
	if err != nil {
		return fmt.Errorf("build vector index: %w", err)
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}

	var passages []retrieval.Passage
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		path := filepath.Join(*dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		for i, chunk := range chunkText(string(data), chunkSize) {
			passages = append(passages, retrieval.Passage{
				Content:  chunk,
				SourceID: fmt.Sprintf("%s#%d", entry.Name(), i),
				Metadata: map[string]any{"file": entry.Name()},
			})
		}
	}

	if len(passages) == 0 {
		fmt.Println("no .txt documents found, nothing to ingest")
		return nil
	}

	if err := index.Add(ctx, passages); err != nil {
		return fmt.Errorf("add passages: %w", err)
	}

	fmt.Printf("ingested %d passages from %s\n", len(passages), *dir)
	return nil
}

func chunkText(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var chunks []string
	for len(text) > 0 {
		if len(text) <= size {
			chunks = append(chunks, text)
			break
		}
		cut := strings.LastIndex(text[:size], "\n\n")
		if cut <= 0 {
			cut = size
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	return chunks
}
