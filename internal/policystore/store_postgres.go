package policystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/tracing"
)

// PostgresStore searches a pgvector table shaped like
//
//	documents(id bigserial, content text, metadata jsonb, embedding vector(N))
//
// where metadata carries policy_id and category.
type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder Embedder
	table    string
}

func NewPostgresStore(pool *pgxpool.Pool, embedder Embedder, table string) (*PostgresStore, error) {
	if pool == nil || embedder == nil {
		return nil, errors.New("policy store needs a pool and an embedder")
	}
	if table == "" {
		table = "documents"
	}
	return &PostgresStore{pool: pool, embedder: embedder, table: pgx.Identifier{table}.Sanitize()}, nil
}

// Migrate creates the vector extension, table and policy_id index if missing.
func (s *PostgresStore) Migrate(ctx context.Context, dims int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id bigserial PRIMARY KEY,
			content text NOT NULL,
			metadata jsonb NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d) NOT NULL
		)`, s.table, dims),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ((metadata->>'policy_id'))`,
			pgx.Identifier{strings.Trim(s.table, `"`) + "_policy_id_idx"}.Sanitize(), s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate policy store: %w", err)
		}
	}
	return nil
}

// SimilaritySearch returns up to k documents whose cosine similarity to term
// is at least minScore, best first.
func (s *PostgresStore) SimilaritySearch(ctx context.Context, term string, k int, minScore float64) (_ []Match, err error) {
	ctx, end := tracing.StartSpan(ctx, "policystore.similarity_search")
	defer func() { end(err) }()

	vectors, err := s.embedder.Embed(ctx, []string{term})
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT content, metadata->>'policy_id', coalesce(metadata->>'category', ''),
		       1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE 1 - (embedding <=> $1::vector) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`, s.table)

	rows, err := s.pool.Query(ctx, query, vectorLiteral(vectors[0]), minScore, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Content, &m.PolicyID, &m.Category, &m.Score); err != nil {
			return nil, fmt.Errorf("scan policy match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Seed embeds docs and upserts them by policy_id.
func (s *PostgresStore) Seed(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed policies: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (content, metadata, embedding)
		VALUES ($1, $2, $3::vector)
		ON CONFLICT ((metadata->>'policy_id'))
		DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`, s.table)

	batch := &pgx.Batch{}
	for i, d := range docs {
		meta, err := json.Marshal(map[string]string{"policy_id": d.PolicyID, "category": d.Category})
		if err != nil {
			return 0, err
		}
		batch.Queue(query, d.Content, meta, vectorLiteral(vectors[i]))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("upsert policies: %w", err)
	}
	return len(docs), nil
}

// vectorLiteral renders v in pgvector's text input format, e.g. "[0.1,0.2]".
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
