package index

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"casevise/internal/models"
)

func errMismatchedVectors(got, want int) error {
	return fmt.Errorf("embedding service returned %d vectors for %d chunks", got, want)
}

// VectorIndex stores chunk embeddings for one session and answers
// nearest-neighbor queries. Implementations: chromem (embedded) and
// postgres (pgvector).
type VectorIndex interface {
	// Add stores chunks with their precomputed embeddings. Callers never
	// commit a partial document: Add is invoked once per uploaded file with
	// the full chunk set, after all embeddings succeeded.
	Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error

	// Search returns at most k chunks ordered by nonincreasing similarity,
	// ties broken by insertion order.
	Search(ctx context.Context, queryVector []float32, k int) ([]models.SearchResult, error)

	// AllChunks returns every stored chunk in insertion order. This replaces
	// empty-query searches as the corpus-dump path used for summarization.
	AllChunks(ctx context.Context) ([]models.Chunk, error)

	Close() error
}

// Indexer glues the embedding service to a VectorIndex.
type Indexer struct {
	embedder embeddings.Embedder
	index    VectorIndex
}

func NewIndexer(embedder embeddings.Embedder, index VectorIndex) *Indexer {
	return &Indexer{embedder: embedder, index: index}
}

// AddDocument embeds every chunk and stores them. An embedding failure aborts
// the whole document with *models.EmbeddingError; nothing is committed.
func (ix *Indexer) AddDocument(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return &models.EmbeddingError{Err: err}
	}
	if len(vectors) != len(chunks) {
		return &models.EmbeddingError{Err: errMismatchedVectors(len(vectors), len(chunks))}
	}
	return ix.index.Add(ctx, chunks, vectors)
}

// Search embeds the query and retrieves the top k chunks.
func (ix *Indexer) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	vector, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, &models.EmbeddingError{Err: err}
	}
	return ix.index.Search(ctx, vector, k)
}

// AllChunks exposes the corpus-dump path of the underlying index.
func (ix *Indexer) AllChunks(ctx context.Context) ([]models.Chunk, error) {
	return ix.index.AllChunks(ctx)
}

func (ix *Indexer) Close() error { return ix.index.Close() }
