package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"casevise/internal/config"
	"casevise/internal/models"
)

// CaseChunk is the persisted row for one embedded chunk. Requires the
// pgvector extension; dimension matches the nomic-embed-text model.
type CaseChunk struct {
	bun.BaseModel `bun:"table:case_chunks,alias:c"`
	ID            int64     `bun:"id,pk,autoincrement"`
	SessionID     string    `bun:"session_id,notnull"`
	SourceFile    string    `bun:"source_file,notnull"`
	PageNumber    int       `bun:"page_number,notnull"`
	StartOffset   int       `bun:"start_offset,notnull"`
	ChunkID       int       `bun:"chunk_id,notnull"`
	Content       string    `bun:"content,notnull"`
	Embedding     []float32 `bun:"embedding,notnull,type:vector(768)"`
}

// ConnectDB opens the bun handle used by all postgres-backed sessions.
func ConnectDB(cfg *config.PostgresConfig) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(cfg.Password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

// InitSchema creates the chunk table if missing.
func InitSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*CaseChunk)(nil)).IfNotExists().Exec(ctx)
	return err
}

// PostgresIndex is a VectorIndex over pgvector rows scoped to one session.
type PostgresIndex struct {
	db      *bun.DB
	session string
}

func NewPostgresIndex(db *bun.DB, sessionID string) *PostgresIndex {
	return &PostgresIndex{db: db, session: sessionID}
}

func (x *PostgresIndex) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errMismatchedVectors(len(vectors), len(chunks))
	}
	rows := make([]CaseChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = CaseChunk{
			SessionID:   x.session,
			SourceFile:  c.SourceFile,
			PageNumber:  c.PageNumber,
			StartOffset: c.StartOffset,
			ChunkID:     c.ChunkID,
			Content:     c.Text,
			Embedding:   vectors[i],
		}
	}
	_, err := x.db.NewInsert().Model(&rows).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}

func (x *PostgresIndex) Search(ctx context.Context, queryVector []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	var rows []struct {
		CaseChunk
		Distance float64 `bun:"distance"`
	}
	err := x.db.NewSelect().
		Model((*CaseChunk)(nil)).
		ColumnExpr("c.*").
		ColumnExpr("c.embedding <-> ? AS distance", queryVector).
		Where("c.session_id = ?", x.session).
		OrderExpr("c.embedding <-> ?", queryVector).
		OrderExpr("c.id ASC").
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	out := make([]models.SearchResult, len(rows))
	for i, r := range rows {
		out[i] = models.SearchResult{
			Chunk:      rowToChunk(r.CaseChunk),
			Similarity: float32(1.0 / (1.0 + r.Distance)),
		}
	}
	return out, nil
}

func (x *PostgresIndex) AllChunks(ctx context.Context) ([]models.Chunk, error) {
	var rows []CaseChunk
	err := x.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", x.session).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	out := make([]models.Chunk, len(rows))
	for i, r := range rows {
		out[i] = rowToChunk(r)
	}
	return out, nil
}

// Close drops the session's rows; the shared bun handle stays open.
func (x *PostgresIndex) Close() error {
	_, err := x.db.NewDelete().
		Model((*CaseChunk)(nil)).
		Where("session_id = ?", x.session).
		Exec(context.Background())
	return err
}

func rowToChunk(r CaseChunk) models.Chunk {
	return models.Chunk{
		Text:        r.Content,
		StartOffset: r.StartOffset,
		PageNumber:  r.PageNumber,
		SourceFile:  r.SourceFile,
		ChunkID:     r.ChunkID,
	}
}
