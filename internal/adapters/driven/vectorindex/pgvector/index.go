// Package pgvector provides a vector index adapter backed by PostgreSQL with
// the pgvector extension. Records live in a single table with the metadata
// snapshot denormalised into columns, so retrieval needs no joins.
package pgvector

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvectorgo "github.com/pgvector/pgvector-go"
	pgvectorpgx "github.com/pgvector/pgvector-go/pgx"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// Default configuration values.
const (
	DefaultDimensions  = 768
	DefaultConnTimeout = 10 * time.Second
)

// Config holds configuration for the pgvector index.
type Config struct {
	// DSN is the PostgreSQL connection string (required).
	DSN string

	// Dimensions is the embedding vector size (default: 768).
	Dimensions int

	// ConnTimeout bounds the initial connection attempt (default: 10s).
	ConnTimeout time.Duration
}

// VectorIndex provides vector operations on a PostgreSQL pgvector table.
type VectorIndex struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewVectorIndex connects to PostgreSQL, verifies connectivity and creates
// the schema if it does not exist.
func NewVectorIndex(ctx context.Context, cfg Config) (*VectorIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector: DSN is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = DefaultConnTimeout
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolCfg.AfterConnect = pgvectorpgx.RegisterTypes

	connCtx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %w", domain.ErrVectorIndexUnavailable, err)
	}

	idx := &VectorIndex{pool: pool, dimensions: cfg.Dimensions}
	if err := idx.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

// initSchema creates the units table and its indexes.
func (idx *VectorIndex) initSchema(ctx context.Context) error {
	_, err := idx.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	if err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	_, err = idx.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS content_units (
			unit_id        TEXT PRIMARY KEY,
			document_id    TEXT NOT NULL,
			chapter_id     TEXT NOT NULL,
			section_title  TEXT NOT NULL,
			page_number    INTEGER NOT NULL,
			unit_type      TEXT NOT NULL,
			board          TEXT NOT NULL DEFAULT '',
			grade          TEXT NOT NULL DEFAULT '',
			subject        TEXT NOT NULL DEFAULT '',
			version_number INTEGER NOT NULL,
			content        TEXT NOT NULL,
			embedding      vector(%d) NOT NULL
		)
	`, idx.dimensions))
	if err != nil {
		return fmt.Errorf("create content_units table: %w", err)
	}

	_, err = idx.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS content_units_embedding_idx ON content_units
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("create embedding index: %w", err)
	}

	_, err = idx.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS content_units_document_idx ON content_units (document_id);
	`)
	if err != nil {
		return fmt.Errorf("create document index: %w", err)
	}

	return nil
}

// Upsert inserts or replaces records keyed by unit ID.
func (idx *VectorIndex) Upsert(ctx context.Context, records []domain.EmbeddingRecord) error {
	for _, r := range records {
		if len(r.Vector) != idx.dimensions {
			return fmt.Errorf("%w: unit %s has %d dimensions, index expects %d",
				domain.ErrDimensionMismatch, r.UnitID, len(r.Vector), idx.dimensions)
		}
	}

	tx, err := idx.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", domain.ErrIndexWrite, err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		_, err := tx.Exec(ctx, `
			INSERT INTO content_units (
				unit_id, document_id, chapter_id, section_title, page_number,
				unit_type, board, grade, subject, version_number, content, embedding
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (unit_id) DO UPDATE SET
				document_id    = EXCLUDED.document_id,
				chapter_id     = EXCLUDED.chapter_id,
				section_title  = EXCLUDED.section_title,
				page_number    = EXCLUDED.page_number,
				unit_type      = EXCLUDED.unit_type,
				board          = EXCLUDED.board,
				grade          = EXCLUDED.grade,
				subject        = EXCLUDED.subject,
				version_number = EXCLUDED.version_number,
				content        = EXCLUDED.content,
				embedding      = EXCLUDED.embedding
		`,
			r.UnitID,
			r.Metadata.DocumentID,
			r.Metadata.ChapterID,
			r.Metadata.SectionTitle,
			r.Metadata.PageNumber,
			string(r.Metadata.Type),
			r.Metadata.Board,
			r.Metadata.Grade,
			r.Metadata.Subject,
			r.Metadata.VersionNumber,
			r.Metadata.Text,
			pgvectorgo.NewVector(r.Vector),
		)
		if err != nil {
			return fmt.Errorf("%w: upsert unit %s: %w", domain.ErrIndexWrite, r.UnitID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit upsert: %w", domain.ErrIndexWrite, err)
	}
	return nil
}

// DeleteByDocument removes every record belonging to a document.
func (idx *VectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := idx.pool.Exec(ctx, `DELETE FROM content_units WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("%w: delete document %s: %w", domain.ErrIndexWrite, documentID, err)
	}
	return nil
}

// DeleteByUnitIDs removes the given units.
func (idx *VectorIndex) DeleteByUnitIDs(ctx context.Context, unitIDs []string) error {
	if len(unitIDs) == 0 {
		return nil
	}
	_, err := idx.pool.Exec(ctx, `DELETE FROM content_units WHERE unit_id = ANY($1)`, unitIDs)
	if err != nil {
		return fmt.Errorf("%w: delete units: %w", domain.ErrIndexWrite, err)
	}
	return nil
}

// Query finds the k nearest neighbours to the query vector within the scope
// filter, ranked by cosine similarity descending. Empty filter fields match
// any value.
func (idx *VectorIndex) Query(ctx context.Context, vector []float32, k int, filter domain.ScopeFilter) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != idx.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			domain.ErrDimensionMismatch, len(vector), idx.dimensions)
	}

	rows, err := idx.pool.Query(ctx, `
		SELECT unit_id, document_id, chapter_id, section_title, page_number,
		       unit_type, board, grade, subject, version_number, content,
		       1 - (embedding <=> $1) AS similarity
		FROM content_units
		WHERE ($2 = '' OR board = $2)
		  AND ($3 = '' OR grade = $3)
		  AND ($4 = '' OR subject = $4)
		ORDER BY embedding <=> $1
		LIMIT $5
	`, pgvectorgo.NewVector(vector), filter.Board, filter.Grade, filter.Subject, k)
	if err != nil {
		return nil, fmt.Errorf("%w: query similar units: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var (
			hit      driven.VectorHit
			unitType string
		)
		if err := rows.Scan(
			&hit.UnitID,
			&hit.Metadata.DocumentID,
			&hit.Metadata.ChapterID,
			&hit.Metadata.SectionTitle,
			&hit.Metadata.PageNumber,
			&unitType,
			&hit.Metadata.Board,
			&hit.Metadata.Grade,
			&hit.Metadata.Subject,
			&hit.Metadata.VersionNumber,
			&hit.Metadata.Text,
			&hit.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		hit.Metadata.Type = domain.UnitType(unitType)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return hits, nil
}

// Close releases the connection pool.
func (idx *VectorIndex) Close() error {
	idx.pool.Close()
	return nil
}
