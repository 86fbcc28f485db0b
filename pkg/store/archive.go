package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/papertrail/internal/models"
	"github.com/xhad/papertrail/internal/types"
)

type ArchiveConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// Archive keeps every review in Postgres with a pgvector embedding so
// past digests can be searched semantically.
type Archive struct {
	config   ArchiveConfig
	pool     *pgxpool.Pool
	embedder types.Embedder
}

func NewWithConfig(ctx context.Context, config ArchiveConfig, embedder types.Embedder) (*Archive, error) {
	if config.TableName == "" {
		config.TableName = "reviews"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	a := &Archive{
		config:   config,
		pool:     pool,
		embedder: embedder,
	}

	if err := a.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return a, nil
}

func (a *Archive) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := a.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			title TEXT,
			url TEXT,
			domain TEXT,
			categories TEXT,
			published TIMESTAMPTZ,
			review TEXT,
			embedding vector(%d)
		)`, a.config.TableName, a.config.VectorDim)

	_, err = a.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		a.config.TableName, a.config.TableName)

	_, err = a.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// Store upserts the run's reviews, embedding them in batches.
func (a *Archive) Store(ctx context.Context, reviews []models.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, title, url, domain, categories, published, review, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			review = EXCLUDED.review,
			domain = EXCLUDED.domain,
			embedding = EXCLUDED.embedding`,
		a.config.TableName)

	for start := 0; start < len(reviews); start += a.config.BatchSize {
		end := start + a.config.BatchSize
		if end > len(reviews) {
			end = len(reviews)
		}
		batch := reviews[start:end]

		texts := make([]string, len(batch))
		for i, review := range batch {
			texts[i] = sanitizeUTF8(review.Analysis)
		}

		embeddings, err := a.embedder.CreateEmbedding(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to create embeddings: %v", err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d reviews", len(embeddings), len(batch))
		}

		for i, review := range batch {
			paper := review.Paper
			_, err = tx.Exec(ctx, stmt,
				paper.ID,
				sanitizeUTF8(paper.Title),
				paper.AbsURL,
				review.Domain,
				strings.Join(paper.Categories, ","),
				paper.Published,
				texts[i],
				pgvector.NewVector(embeddings[i]),
			)
			if err != nil {
				return fmt.Errorf("failed to insert review: %v", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// Query returns the reviews nearest to the given embedding.
func (a *Archive) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.ArchivedReview, error) {
	if limit == 0 {
		limit = 5
	}

	query := fmt.Sprintf(`
		SELECT id, title, url, domain, categories, published, review
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		a.config.TableName)

	rows, err := a.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %v", err)
	}
	defer rows.Close()

	var reviews []models.ArchivedReview
	for rows.Next() {
		var review models.ArchivedReview
		err := rows.Scan(
			&review.ID,
			&review.Title,
			&review.URL,
			&review.Domain,
			&review.Categories,
			&review.Published,
			&review.Review,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		reviews = append(reviews, review)
	}

	return reviews, nil
}

// Search embeds a free-form query and returns the nearest reviews.
func (a *Archive) Search(ctx context.Context, query string, limit int) ([]models.ArchivedReview, error) {
	embeddings, err := a.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %v", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	return a.Query(ctx, embeddings[0], limit)
}

func (a *Archive) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
