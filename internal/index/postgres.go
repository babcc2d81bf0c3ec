package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// Postgres stores entries in a pgvector table, for deployments whose corpus
// outgrows the in-process index. Same ordering contract as Memory: cosine
// score descending, ties broken by insertion order via the position column.
type Postgres struct {
	pool *pgxpool.Pool
	dim  int
	size int
	next int // insertion position counter
}

// NewPostgres creates a pgvector-backed index on an existing pool. The
// schema comes from db/ migrations. Rebuild clears previous contents, so the
// table always mirrors the current corpus.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, `TRUNCATE chunk_embeddings`); err != nil {
		return nil, fmt.Errorf("clearing chunk embeddings: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// RegisterVectorTypes installs pgvector codecs on every pool connection.
// Call from pgxpool config's AfterConnect.
func RegisterVectorTypes(ctx context.Context, conn *pgx.Conn) error {
	return pgxvector.RegisterTypes(ctx, conn)
}

// Add inserts an entry, enforcing a uniform dimension like Memory.
func (p *Postgres) Add(ctx context.Context, e Entry) error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("%w: chunk %s", ErrEmptyVector, e.ChunkID)
	}
	if p.dim == 0 {
		p.dim = len(e.Vector)
	} else if len(e.Vector) != p.dim {
		return fmt.Errorf("%w: chunk %s has dimension %d, index has %d",
			ErrDimensionMismatch, e.ChunkID, len(e.Vector), p.dim)
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO chunk_embeddings (chunk_id, document_id, content, embedding, position)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ChunkID, e.DocumentID, e.Text, pgvector.NewVector(e.Vector), p.next)
	if err != nil {
		return fmt.Errorf("inserting chunk %s: %w", e.ChunkID, err)
	}
	p.next++
	p.size++
	return nil
}

// Search ranks by cosine similarity. pgvector's <=> operator is cosine
// distance, so score = 1 - distance.
func (p *Postgres) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if p.size == 0 {
		return []Result{}, nil
	}
	if len(query) != p.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			ErrDimensionMismatch, len(query), p.dim)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT chunk_id, content, 1 - (embedding <=> $1) AS score
		 FROM chunk_embeddings
		 ORDER BY embedding <=> $1 ASC, position ASC
		 LIMIT $2`,
		pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("querying chunk embeddings: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, k)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ChunkID, &r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}
	return results, nil
}

// Size returns the number of indexed entries.
func (p *Postgres) Size() int { return p.size }

// Dimension returns the vector dimension, or 0 before the first Add.
func (p *Postgres) Dimension() int { return p.dim }
