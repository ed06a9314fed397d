package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/neuroleaf/neuroleaf/contrib/vector/inmemory"
)

// keywordEmbedder maps texts onto a fixed keyword axis so similarity
// ranking is deterministic in tests.
type keywordEmbedder struct {
	keywords []string
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(e.keywords))
	lower := strings.ToLower(text)
	for i, kw := range e.keywords {
		vec[i] = float32(strings.Count(lower, kw))
	}
	return vec, nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *keywordEmbedder) Dimension() int { return len(e.keywords) }

func newTestBase(t *testing.T, opts ...Option) *Base {
	t.Helper()
	emb := &keywordEmbedder{keywords: []string{"blight", "mildew", "mosaic", "healthy"}}
	return New(inmemory.NewInMemoryVectorStore(), emb, opts...)
}

func TestAddDocumentSplitsOnBlankLines(t *testing.T) {
	base := newTestBase(t)

	content := "Early blight causes dark spots.\n\nPowdery mildew shows white patches.\n\nMosaic virus mottles leaves."
	n, err := base.AddDocument(context.Background(), content)
	if err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 passages, got %d", n)
	}

	count, err := base.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 stored passages, got %d", count)
	}
}

func TestAddDocumentWindowsLongSections(t *testing.T) {
	base := newTestBase(t, WithChunkSize(50), WithOverlap(10))

	long := strings.Repeat("blight spreads fast. ", 10) // ~210 chars, no blank lines
	n, err := base.AddDocument(context.Background(), long)
	if err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	if n < 3 {
		t.Errorf("expected long section to be windowed into several passages, got %d", n)
	}
}

func TestSplitKeepsMultiByteRunesIntact(t *testing.T) {
	base := newTestBase(t, WithChunkSize(10), WithOverlap(3))

	passages := base.split(strings.Repeat("ブライト病 ", 8))
	if len(passages) < 2 {
		t.Fatalf("expected the section to be windowed, got %d passages", len(passages))
	}
	for _, p := range passages {
		if !utf8.ValidString(p) {
			t.Errorf("passage is not valid UTF-8: %q", p)
		}
	}
}

func TestSplitTerminatesWithOversizedOverlap(t *testing.T) {
	base := newTestBase(t, WithChunkSize(10), WithOverlap(10))

	passages := base.split(strings.Repeat("blight ", 10))
	if len(passages) == 0 {
		t.Fatal("expected passages despite overlap at chunk size")
	}
}

func TestSearchReturnsMostRelevantFirst(t *testing.T) {
	base := newTestBase(t, WithTopK(2))

	docs := []string{
		"Early blight is a fungal disease causing concentric rings on lower leaves.",
		"Powdery mildew appears as white dust on the upper leaf surface.",
		"A healthy plant has uniform green leaves.",
	}
	for _, doc := range docs {
		if _, err := base.AddDocument(context.Background(), doc); err != nil {
			t.Fatalf("AddDocument failed: %v", err)
		}
	}

	results, err := base.Search(context.Background(), "what does blight look like")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !strings.Contains(results[0], "blight") {
		t.Errorf("expected blight passage first, got %q", results[0])
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"blight.txt": "Early blight causes dark concentric rings.",
		"mildew.md":  "Powdery mildew shows as white patches.",
		"notes.json": `{"ignored": true}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	base := newTestBase(t)
	if err := base.LoadDir(context.Background(), dir); err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}

	count, err := base.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected only .txt and .md files indexed, got %d passages", count)
	}
}

func TestLoadDirEmpty(t *testing.T) {
	base := newTestBase(t)
	if err := base.LoadDir(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error for empty corpus dir")
	}
}
