// Package knowledge indexes the tomato-disease reference corpus and serves
// similarity search over it. Passages come from plain-text and markdown
// files; each passage is embedded once at load time and queried per turn.
package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf/pkg/logging"
	"github.com/neuroleaf/neuroleaf/vector"
)

const (
	defaultTopK      = 5
	defaultChunkSize = 800
	defaultOverlap   = 120
	defaultSeparator = "\n\n"
)

// Base is the disease knowledge base: a vector store plus the embedder used
// for both indexing and querying.
type Base struct {
	store     vector.VectorStore
	embedder  vector.Embedder
	topK      int
	chunkSize int
	overlap   int
	separator string
	logger    *slog.Logger
}

// Option customizes the knowledge base.
type Option func(*Base)

// WithTopK overrides how many passages Search returns.
func WithTopK(k int) Option {
	return func(b *Base) {
		if k > 0 {
			b.topK = k
		}
	}
}

// WithChunkSize overrides the maximum passage length in characters.
func WithChunkSize(size int) Option {
	return func(b *Base) {
		if size > 0 {
			b.chunkSize = size
		}
	}
}

// WithOverlap configures overlap between consecutive passages of a long
// section.
func WithOverlap(overlap int) Option {
	return func(b *Base) {
		if overlap >= 0 {
			b.overlap = overlap
		}
	}
}

// WithLogger overrides the default component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a knowledge base over the given store and embedder.
func New(store vector.VectorStore, embedder vector.Embedder, opts ...Option) *Base {
	b := &Base{
		store:     store,
		embedder:  embedder,
		topK:      defaultTopK,
		chunkSize: defaultChunkSize,
		overlap:   defaultOverlap,
		separator: defaultSeparator,
		logger:    logging.WithComponent("knowledge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// LoadDir walks dir and indexes every .txt and .md file found. Files are
// split on blank lines, long sections are windowed with overlap.
func (b *Base) LoadDir(ctx context.Context, dir string) error {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk corpus dir: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no corpus files found in %s", dir)
	}

	total := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read corpus file %s: %w", path, err)
		}
		n, err := b.AddDocument(ctx, string(data))
		if err != nil {
			return fmt.Errorf("index corpus file %s: %w", path, err)
		}
		total += n
	}

	b.logger.Info("corpus indexed", "files", len(files), "passages", total)
	return nil
}

// AddDocument splits content into passages, embeds them and adds them to
// the store. It returns the number of passages indexed.
func (b *Base) AddDocument(ctx context.Context, content string) (int, error) {
	passages := b.split(content)
	if len(passages) == 0 {
		return 0, nil
	}

	vectors, err := b.embedder.EmbedBatch(ctx, passages)
	if err != nil {
		return 0, fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return 0, fmt.Errorf("expected %d embeddings, got %d", len(passages), len(vectors))
	}

	for i, passage := range passages {
		emb := &vector.Embedding{
			ID:     uuid.New().String(),
			Text:   passage,
			Vector: vectors[i],
		}
		if err := b.store.AddEmbedding(ctx, emb); err != nil {
			return 0, fmt.Errorf("store passage: %w", err)
		}
	}
	return len(passages), nil
}

// Search embeds the query and returns the most similar passage texts, best
// first. An empty result means the corpus has nothing close to the query.
func (b *Base) Search(ctx context.Context, query string) ([]string, error) {
	queryVec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := b.store.Search(ctx, queryVec, b.topK)
	if err != nil {
		return nil, fmt.Errorf("search corpus: %w", err)
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	return texts, nil
}

// Count reports how many passages are indexed.
func (b *Base) Count(ctx context.Context) (int, error) {
	return b.store.Count(ctx)
}

func (b *Base) split(content string) []string {
	// windows advance by chunkSize-overlap, so the overlap must stay
	// strictly below the chunk size
	overlap := b.overlap
	if overlap >= b.chunkSize {
		overlap = b.chunkSize - 1
	}
	parts := strings.Split(content, b.separator)
	passages := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// rune-based windows keep multi-byte characters intact
		runes := []rune(part)
		for len(runes) > b.chunkSize {
			window := string(runes[:b.chunkSize])
			runes = runes[b.chunkSize-overlap:]
			passages = append(passages, strings.TrimSpace(window))
		}
		passages = append(passages, strings.TrimSpace(string(runes)))
	}
	return passages
}
