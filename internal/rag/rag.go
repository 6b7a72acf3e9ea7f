package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"casevise/internal/chunker"
	"casevise/internal/compose"
	"casevise/internal/config"
	"casevise/internal/index"
	"casevise/internal/ingest"
	"casevise/internal/models"
	"casevise/internal/narrate"
)

// IndexFactory opens the vector index for one session.
type IndexFactory func(sessionID string) (index.VectorIndex, error)

// Session holds the documents uploaded in one user session and their unified
// index. All files in a session share the index, so one query spans them all.
type Session struct {
	ID      string
	indexer *index.Indexer

	mu    sync.Mutex
	files []string
}

// Files returns the names of the documents uploaded so far, in upload order.
func (sess *Session) Files() []string {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]string, len(sess.files))
	copy(out, sess.files)
	return out
}

func (sess *Session) addFile(name string) {
	sess.mu.Lock()
	sess.files = append(sess.files, name)
	sess.mu.Unlock()
}

func (sess *Session) hasDocuments() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.files) > 0
}

// Service runs the upload -> parse -> chunk -> embed -> retrieve -> compose
// pipeline. Each request runs to completion synchronously.
type Service struct {
	cfg      *config.Config
	ingestor *ingest.Ingestor
	chunker  *chunker.Chunker
	embedder embeddings.Embedder
	composer *compose.Composer
	narrator *narrate.Narrator
	newIndex IndexFactory

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(cfg *config.Config, embedder embeddings.Embedder, composer *compose.Composer, narrator *narrate.Narrator, newIndex IndexFactory) *Service {
	return &Service{
		cfg:      cfg,
		ingestor: ingest.NewIngestor(cfg.Server.UploadsDir),
		chunker:  chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		embedder: embedder,
		composer: composer,
		narrator: narrator,
		newIndex: newIndex,
		sessions: make(map[string]*Session),
	}
}

// OpenSession creates a session with the given ID and an empty index.
// Sessions live for the lifetime of the process; nothing evicts them. That
// suits a single-user tool, but a multi-tenant deployment would need a TTL or
// a close endpoint calling CloseSession.
func (s *Service) OpenSession(id string) (*Session, error) {
	idx, err := s.newIndex(id)
	if err != nil {
		return nil, fmt.Errorf("failed to open index for session %s: %w", id, err)
	}
	sess := &Session{ID: id, indexer: index.NewIndexer(s.embedder, idx)}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return sess, nil
}

// Session returns an existing session by ID.
func (s *Service) Session(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Upload ingests one file into the session: persist, parse, chunk, embed,
// index. Parse and embedding failures propagate; nothing partial is indexed.
func (s *Service) Upload(ctx context.Context, sess *Session, filename string, content []byte) error {
	doc, err := s.ingestor.Ingest(filename, content)
	if err != nil {
		return err
	}
	return s.indexDocument(ctx, sess, doc)
}

// UploadPath ingests a file already on disk, used by the watch-directory mode.
func (s *Service) UploadPath(ctx context.Context, sess *Session, path string) error {
	doc, err := s.ingestor.IngestPath(path)
	if err != nil {
		return err
	}
	return s.indexDocument(ctx, sess, doc)
}

func (s *Service) indexDocument(ctx context.Context, sess *Session, doc models.ParsedDocument) error {
	chunks := s.chunker.Split(doc)
	if err := sess.indexer.AddDocument(ctx, chunks); err != nil {
		return err
	}

	sess.addFile(doc.SourceFile)

	log.Info().
		Str("session", sess.ID).
		Str("file", doc.SourceFile).
		Int("pages", len(doc.Pages)).
		Int("chunks", len(chunks)).
		Msg("Indexed document")
	return nil
}

// Ask answers a free-form question over the session's documents. Fails with
// models.ErrNoDocuments before contacting any external service when nothing
// has been uploaded.
func (s *Service) Ask(ctx context.Context, sess *Session, question string) (*models.Response, error) {
	if !sess.hasDocuments() {
		return nil, models.ErrNoDocuments
	}

	results, err := sess.indexer.Search(ctx, question, s.cfg.RAG.TopK)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
	}

	text, err := s.composer.Answer(ctx, chunks, question)
	if err != nil {
		return nil, err
	}
	return &models.Response{
		Text:      text,
		AudioPath: s.narrator.Synthesize(ctx, sess.ID, text),
	}, nil
}

// Summarize produces a perspective-tailored summary over the whole document
// set, capped at the configured chunk count.
func (s *Service) Summarize(ctx context.Context, sess *Session, perspective models.Perspective) (*models.Response, error) {
	if !sess.hasDocuments() {
		return nil, models.ErrNoDocuments
	}
	if _, err := compose.TemplateFor(perspective); err != nil {
		return nil, err
	}

	chunks, err := sess.indexer.AllChunks(ctx)
	if err != nil {
		return nil, err
	}
	if limit := s.cfg.RAG.MaxSummaryChunks; len(chunks) > limit {
		chunks = chunks[:limit]
	}

	text, err := s.composer.Summarize(ctx, chunks, perspective)
	if err != nil {
		return nil, err
	}
	return &models.Response{
		Text:      text,
		AudioPath: s.narrator.Synthesize(ctx, sess.ID, text),
	}, nil
}

// CloseSession releases the session's index resources.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return sess.indexer.Close()
}
