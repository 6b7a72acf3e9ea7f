package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"casevise/internal/models"
)

const compress = false

// ChromemIndex is the default VectorIndex, backed by chromem-go. Each session
// gets its own persistent directory so concurrent sessions never clobber each
// other's index.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection

	// mirror of the collection's chunks, serving AllChunks and tie ordering.
	// chromem has no document enumeration, so a persistent index also writes
	// the mirror to a manifest file and reloads it on reopen.
	mu           sync.RWMutex
	chunks       map[string]models.Chunk
	order        []string
	manifestPath string
}

// NewChromemIndex opens a persistent index under path, or an in-memory one
// when path is empty. Reopening a persistent index restores both the chromem
// collection and the chunk manifest.
func NewChromemIndex(path, collectionName string) (*ChromemIndex, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	x := &ChromemIndex{
		db:         db,
		collection: collection,
		chunks:     make(map[string]models.Chunk),
	}
	if path != "" {
		x.manifestPath = filepath.Join(path, collectionName+".chunks.json")
		if err := x.loadManifest(); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func chunkDocID(c models.Chunk) string {
	return fmt.Sprintf("%s-%d", c.SourceFile, c.ChunkID)
}

func (x *ChromemIndex) loadManifest() error {
	data, err := os.ReadFile(x.manifestPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read chunk manifest: %w", err)
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return fmt.Errorf("failed to parse chunk manifest: %w", err)
	}
	for _, c := range chunks {
		id := chunkDocID(c)
		if _, ok := x.chunks[id]; !ok {
			x.order = append(x.order, id)
		}
		x.chunks[id] = c
	}
	return nil
}

// saveManifestLocked writes the mirror next to the chromem files. Callers must
// hold x.mu.
func (x *ChromemIndex) saveManifestLocked() error {
	if x.manifestPath == "" {
		return nil
	}
	out := make([]models.Chunk, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.chunks[id])
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode chunk manifest: %w", err)
	}
	if err := os.WriteFile(x.manifestPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write chunk manifest: %w", err)
	}
	return nil
}

func (x *ChromemIndex) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errMismatchedVectors(len(vectors), len(chunks))
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:      chunkDocID(c),
			Content: c.Text,
			Metadata: map[string]string{
				"source":       c.SourceFile,
				"page":         strconv.Itoa(c.PageNumber),
				"start_offset": strconv.Itoa(c.StartOffset),
			},
			Embedding: vectors[i],
		})
	}
	if err := x.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, c := range chunks {
		id := chunkDocID(c)
		if _, ok := x.chunks[id]; !ok {
			x.order = append(x.order, id)
		}
		x.chunks[id] = c
	}
	return x.saveManifestLocked()
}

func (x *ChromemIndex) Search(ctx context.Context, queryVector []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	count := x.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := x.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryVector,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	x.mu.RLock()
	seq := make(map[string]int, len(x.order))
	for i, id := range x.order {
		seq[id] = i
	}
	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		chunk, ok := x.chunks[r.ID]
		if !ok {
			chunk = models.Chunk{Text: r.Content, SourceFile: r.Metadata["source"]}
		}
		out = append(out, models.SearchResult{Chunk: chunk, Similarity: r.Similarity})
	}
	x.mu.RUnlock()

	// nonincreasing similarity, ties by insertion order
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return seq[chunkDocID(out[i].Chunk)] < seq[chunkDocID(out[j].Chunk)]
	})
	return out, nil
}

func (x *ChromemIndex) AllChunks(ctx context.Context) ([]models.Chunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]models.Chunk, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.chunks[id])
	}
	return out, nil
}

func (x *ChromemIndex) Close() error { return nil }
