package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"kbchat/config"
	"kbchat/types"
)

type DBStorer interface {
	ReplaceDocumentChunks(ctx context.Context, filepath string, chunks []types.Chunk) error
	SearchSimilar(ctx context.Context, embedding []float32, topK int, sourcePrefixes []string) ([]types.Chunk, error)
	ChunksByFilepaths(ctx context.Context, filepaths []string) ([]types.Chunk, error)
	TextsWithKeywords(ctx context.Context, keywords []string, maxResults int) ([]string, error)

	SaveMessage(ctx context.Context, msg types.ChatMessage) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]types.ChatMessage, error)
	ListConversationMessages(ctx context.Context, conversationID string) ([]types.ChatMessage, error)
	UpdateMessageMetadata(ctx context.Context, messageID int64, update types.MessageMetadataUpdate) (*types.ChatMessage, error)
	EnsureConversation(ctx context.Context, conversationID string) error

	CreateLead(ctx context.Context, lead types.Lead) (int64, error)
	SaveConversationLead(ctx context.Context, lead types.ConversationLead) error
}

type PostgresStore struct {
	pool   *pgxpool.Pool
	dim    int
	logger *slog.Logger
}

// NewPostgresStore connects to Postgres, retrying the initial ping per the
// DB_CONN_RETRIES / DB_CONN_RETRY_DELAY settings since the database container
// may still be starting up.
func NewPostgresStore(ctx context.Context, cfg config.DBConfig, dim int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	logger := slog.Default()
	var pingErr error
	for attempt := 1; attempt <= cfg.ConnRetries; attempt++ {
		pingErr = pool.Ping(ctx)
		if pingErr == nil {
			break
		}
		logger.Warn("postgres not ready",
			"attempt", attempt, "of", cfg.ConnRetries, "err", pingErr)
		if attempt < cfg.ConnRetries {
			select {
			case <-time.After(cfg.ConnRetryDelay):
			case <-ctx.Done():
				pool.Close()
				return nil, ctx.Err()
			}
		}
	}
	if pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", cfg.ConnRetries, pingErr)
	}

	return &PostgresStore{
		pool:   pool,
		dim:    dim,
		logger: logger,
	}, nil
}

// Init ensures the vector extension and all tables exist. When the documents
// table was built with a different embedding dimension it is dropped and
// recreated, since stored vectors of the wrong size are unusable.
func (p *PostgresStore) Init(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	currentDim, err := p.existingEmbeddingDimension(ctx)
	if err != nil {
		return err
	}
	if currentDim > 0 && currentDim != p.dim {
		p.logger.Warn("embedding dimension changed, rebuilding documents table",
			"was", currentDim, "now", p.dim)
		if _, err := p.pool.Exec(ctx, "DROP TABLE documents CASCADE"); err != nil {
			return fmt.Errorf("dropping documents table: %w", err)
		}
	}

	if err := p.createDocumentsTable(ctx); err != nil {
		return err
	}
	if err := p.createHistoryTables(ctx); err != nil {
		return err
	}
	return p.createLeadTables(ctx)
}

// existingEmbeddingDimension reads the vector typmod of documents.embedding,
// returning 0 when the table does not exist yet.
func (p *PostgresStore) existingEmbeddingDimension(ctx context.Context) (int, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, "SELECT to_regclass('public.documents') IS NOT NULL").Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("checking documents table: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var dim *int
	err = p.pool.QueryRow(ctx, `
		SELECT a.atttypmod - 4
		FROM pg_attribute a
		JOIN pg_class c ON a.attrelid = c.oid
		WHERE c.relname = 'documents' AND a.attname = 'embedding'`).Scan(&dim)
	if err != nil || dim == nil {
		return 0, nil
	}
	return *dim, nil
}

func (p *PostgresStore) createDocumentsTable(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS documents (
		id SERIAL PRIMARY KEY,
		filepath TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		chunk_id TEXT NOT NULL,
		text TEXT NOT NULL,
		normalized_text TEXT NOT NULL,
		source TEXT NOT NULL,
		embedding VECTOR(%d) NOT NULL,
		embedding_norm DOUBLE PRECISION NOT NULL,
		embedding_model TEXT NOT NULL,
		embedding_dim INTEGER NOT NULL CHECK (embedding_dim = %d),
		embedding_version TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (filepath, chunk_id)
	);

	CREATE INDEX IF NOT EXISTS documents_chunk_index_idx ON documents (chunk_index);
	CREATE INDEX IF NOT EXISTS documents_embedding_model_idx ON documents (embedding_model);
	CREATE INDEX IF NOT EXISTS documents_embedding_dim_idx ON documents (embedding_dim);
	CREATE INDEX IF NOT EXISTS documents_embedding_vector_idx
		ON documents USING ivfflat (embedding vector_cosine_ops);
	`, p.dim, p.dim)

	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

func (p *PostgresStore) createHistoryTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id SERIAL PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		ip TEXT,
		status TEXT DEFAULT 'pending',
		notes TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS chat_messages_conv_idx
		ON chat_messages (conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS chatbot_conversations (
		conversation_id TEXT PRIMARY KEY,
		status TEXT DEFAULT 'pending',
		notes TEXT DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("creating chat history tables: %w", err)
	}
	return nil
}

func (p *PostgresStore) createLeadTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS leads (
		id SERIAL PRIMARY KEY,
		name TEXT,
		company TEXT,
		email TEXT,
		phone TEXT,
		message TEXT,
		source TEXT NOT NULL DEFAULT 'chatbot',
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS chatbot_leads_conversation (
		id SERIAL PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		status TEXT DEFAULT 'pending',
		notes TEXT DEFAULT '',
		ip TEXT,
		"timestamp" TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS chatbot_leads_conv_idx
		ON chatbot_leads_conversation (conversation_id, "timestamp");
	`
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("creating lead tables: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool closed")
	}
}
