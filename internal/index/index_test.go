package index

import (
	"context"
	"errors"
	"math"
	"testing"

	"casevise/internal/models"
)

// fakeEmbedder produces deterministic unit vectors from letter frequencies,
// so similar texts get similar embeddings without a live service.
type fakeEmbedder struct {
	err   error
	calls int
}

func letterVector(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
		if r >= 'A' && r <= 'Z' {
			v[r-'A']++
		}
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letterVector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return letterVector(text), nil
}

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	idx, err := NewChromemIndex("", "test")
	if err != nil {
		t.Fatalf("creating index: %v", err)
	}
	return NewIndexer(&fakeEmbedder{}, idx)
}

func caseChunks() []models.Chunk {
	return []models.Chunk{
		{Text: "The defendant was found guilty based on witness testimony.", SourceFile: "case.pdf", ChunkID: 1, StartOffset: 0, PageNumber: 1},
		{Text: "Procedural history and filing dates of the appeal.", SourceFile: "case.pdf", ChunkID: 2, StartOffset: 800, PageNumber: 1},
		{Text: "zzzz xxxx qqqq unrelated noise entry.", SourceFile: "case.pdf", ChunkID: 3, StartOffset: 1600, PageNumber: 2},
	}
}

func TestSearchTopK(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()
	if err := ix.AddDocument(ctx, caseChunks()); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	results, err := ix.Search(ctx, "guilty verdict witness", 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) > 2 {
		t.Fatalf("got %d results, want at most 2", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Error("results must be ordered by nonincreasing similarity")
		}
	}
}

func TestSearchKLargerThanCorpus(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()
	if err := ix.AddDocument(ctx, caseChunks()); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	results, err := ix.Search(ctx, "anything", 50)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want all 3", len(results))
	}
}

func TestSearchStable(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()
	if err := ix.AddDocument(ctx, caseChunks()); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	first, err := ix.Search(ctx, "appeal filing", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	second, err := ix.Search(ctx, "appeal filing", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("result counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Chunk != second[i].Chunk {
			t.Errorf("result %d differs between identical searches", i)
		}
	}
}

func TestEmbeddingFailureAbortsDocument(t *testing.T) {
	idx, err := NewChromemIndex("", "test")
	if err != nil {
		t.Fatalf("creating index: %v", err)
	}
	ix := NewIndexer(&fakeEmbedder{err: errors.New("service unreachable")}, idx)

	err = ix.AddDocument(context.Background(), caseChunks())
	var embErr *models.EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}

	all, err := ix.AllChunks(context.Background())
	if err != nil {
		t.Fatalf("all chunks failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("no partial index may be committed, found %d chunks", len(all))
	}
}

func TestAllChunksInsertionOrder(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()
	chunks := caseChunks()
	if err := ix.AddDocument(ctx, chunks); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	all, err := ix.AllChunks(ctx)
	if err != nil {
		t.Fatalf("all chunks failed: %v", err)
	}
	if len(all) != len(chunks) {
		t.Fatalf("got %d chunks, want %d", len(all), len(chunks))
	}
	for i := range chunks {
		if all[i] != chunks[i] {
			t.Errorf("chunk %d out of order", i)
		}
	}
}

func TestChromemPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewChromemIndex(dir, "chunks")
	if err != nil {
		t.Fatalf("creating index: %v", err)
	}
	ix := NewIndexer(&fakeEmbedder{}, idx)
	ctx := context.Background()
	if err := ix.AddDocument(ctx, caseChunks()); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	reopened, err := NewChromemIndex(dir, "chunks")
	if err != nil {
		t.Fatalf("reopening index: %v", err)
	}
	ix2 := NewIndexer(&fakeEmbedder{}, reopened)
	results, err := ix2.Search(ctx, "guilty verdict witness", 2)
	if err != nil {
		t.Fatalf("search after reopen failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("persisted index should answer queries after reopen")
	}
	top := results[0].Chunk
	if top.ChunkID == 0 || top.SourceFile != "case.pdf" {
		t.Errorf("reopened search result lost its identity: %+v", top)
	}
	want := caseChunks()[top.ChunkID-1]
	if top != want {
		t.Errorf("reopened search result metadata = %+v, want %+v", top, want)
	}

	all, err := ix2.AllChunks(ctx)
	if err != nil {
		t.Fatalf("all chunks after reopen failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d chunks after reopen, want 3", len(all))
	}
	for i, c := range caseChunks() {
		if all[i] != c {
			t.Errorf("chunk %d = %+v, want %+v", i, all[i], c)
		}
	}
}
