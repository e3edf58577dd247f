package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"kbchat/types"
)

// ReplaceDocumentChunks removes every chunk stored for the filepath and
// inserts the new set in one transaction, so re-ingesting an updated document
// never leaves stale rows behind.
func (p *PostgresStore) ReplaceDocumentChunks(ctx context.Context, filepath string, chunks []types.Chunk) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM documents WHERE filepath = $1", filepath); err != nil {
		return fmt.Errorf("deleting old chunks for %s: %w", filepath, err)
	}

	query := `
	INSERT INTO documents (
		filepath, chunk_index, chunk_id, text, normalized_text, source,
		embedding, embedding_norm, embedding_model, embedding_dim, embedding_version
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, c := range chunks {
		_, err := tx.Exec(ctx, query,
			c.Filepath,
			c.ChunkIndex,
			c.ChunkID,
			c.Text,
			c.NormalizedText,
			c.Source,
			pgvector.NewVector(c.Embedding),
			c.EmbeddingNorm,
			c.EmbeddingModel,
			c.EmbeddingDim,
			c.EmbeddingVersion,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %d of %s: %w", c.ChunkIndex, filepath, err)
		}
	}

	return tx.Commit(ctx)
}

// SearchSimilar ranks the nearest chunks by cosine distance. When source
// prefixes are given the search is restricted to documents under those paths.
func (p *PostgresStore) SearchSimilar(ctx context.Context, embedding []float32, topK int, sourcePrefixes []string) ([]types.Chunk, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty query embedding")
	}

	query := `
	SELECT
		text, source, chunk_index, chunk_id,
		embedding_model, embedding_dim, embedding_version, embedding_norm,
		created_at,
		embedding <=> $1 AS cosine_distance
	FROM documents
	`
	args := []any{pgvector.NewVector(embedding)}
	if len(sourcePrefixes) > 0 {
		query += "WHERE source ILIKE ANY ($2)\nORDER BY cosine_distance ASC\nLIMIT $3"
		args = append(args, PrefixPatterns(sourcePrefixes), topK)
	} else {
		query += "ORDER BY cosine_distance ASC\nLIMIT $2"
		args = append(args, topK)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var c types.Chunk
		var distance float64
		if err := rows.Scan(
			&c.Text, &c.Source, &c.ChunkIndex, &c.ChunkID,
			&c.EmbeddingModel, &c.EmbeddingDim, &c.EmbeddingVersion, &c.EmbeddingNorm,
			&c.CreatedAt, &distance,
		); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		c.Similarity = 1 - distance
		if c.Similarity < 0 {
			c.Similarity = 0
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ChunksByFilepaths returns every chunk stored for the given filepaths, newest
// first, with similarity pinned to 1 since they were requested directly.
func (p *PostgresStore) ChunksByFilepaths(ctx context.Context, filepaths []string) ([]types.Chunk, error) {
	if len(filepaths) == 0 {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, `
	SELECT
		text, source, chunk_index, chunk_id,
		embedding_model, embedding_dim, embedding_version, embedding_norm,
		created_at
	FROM documents
	WHERE filepath = ANY ($1)
	ORDER BY created_at DESC`, filepaths)
	if err != nil {
		return nil, fmt.Errorf("fetching chunks by filepath: %w", err)
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var c types.Chunk
		if err := rows.Scan(
			&c.Text, &c.Source, &c.ChunkIndex, &c.ChunkID,
			&c.EmbeddingModel, &c.EmbeddingDim, &c.EmbeddingVersion, &c.EmbeddingNorm,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		c.Similarity = 1
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// TextsWithKeywords returns deduplicated chunk texts whose normalized text
// contains any of the keywords.
func (p *PostgresStore) TextsWithKeywords(ctx context.Context, keywords []string, maxResults int) ([]string, error) {
	patterns := KeywordPatterns(keywords)
	if len(patterns) == 0 {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, `
	SELECT text
	FROM documents
	WHERE normalized_text ILIKE ANY ($1)
	LIMIT $2`, patterns, maxResults)
	if err != nil {
		return nil, fmt.Errorf("searching by keywords: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// PrefixPatterns turns source prefixes into ILIKE patterns, ensuring each one
// ends with a path separator so "faq" cannot match "faqs-old".
func PrefixPatterns(prefixes []string) []string {
	patterns := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		patterns = append(patterns, prefix+"%")
	}
	return patterns
}

// KeywordPatterns lowercases and trims keywords, dropping empties, and wraps
// them for substring ILIKE matching.
func KeywordPatterns(keywords []string) []string {
	var patterns []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		patterns = append(patterns, "%"+kw+"%")
	}
	return patterns
}
