package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"kbchat/types"
)

func (p *PostgresStore) SaveMessage(ctx context.Context, msg types.ChatMessage) error {
	status := msg.Status
	if status == "" {
		status = "pending"
	}
	_, err := p.pool.Exec(ctx, `
	INSERT INTO chat_messages (conversation_id, role, content, ip, status)
	VALUES ($1, $2, $3, $4, $5)`,
		msg.ConversationID, msg.Role, msg.Content, nullable(msg.IP), status)
	if err != nil {
		return fmt.Errorf("saving chat message: %w", err)
	}
	p.logger.Debug("saved message",
		"conversation", msg.ConversationID, "role", msg.Role, "len", len(msg.Content))
	return nil
}

// RecentMessages returns the last messages of a conversation ordered oldest
// to newest.
func (p *PostgresStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]types.ChatMessage, error) {
	rows, err := p.pool.Query(ctx, `
	SELECT id, conversation_id, created_at, role, content,
		COALESCE(ip, ''), COALESCE(status, ''), COALESCE(notes, '')
	FROM chat_messages
	WHERE conversation_id = $1
	ORDER BY created_at DESC
	LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching recent messages: %w", err)
	}

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (p *PostgresStore) ListConversationMessages(ctx context.Context, conversationID string) ([]types.ChatMessage, error) {
	rows, err := p.pool.Query(ctx, `
	SELECT id, conversation_id, created_at, role, content,
		COALESCE(ip, ''), COALESCE(status, ''), COALESCE(notes, '')
	FROM chat_messages
	WHERE conversation_id = $1
	ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing conversation messages: %w", err)
	}
	return scanMessages(rows)
}

// UpdateMessageMetadata updates status and/or notes of a message. It returns
// nil when the message does not exist.
func (p *PostgresStore) UpdateMessageMetadata(ctx context.Context, messageID int64, update types.MessageMetadataUpdate) (*types.ChatMessage, error) {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if update.Status != nil {
		args = append(args, *update.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if update.Notes != nil {
		args = append(args, *update.Notes)
		sets = append(sets, fmt.Sprintf("notes = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("no editable fields provided")
	}

	args = append(args, messageID)
	query := fmt.Sprintf(`
	UPDATE chat_messages
	SET %s
	WHERE id = $%d
	RETURNING id, conversation_id, created_at, role, content,
		COALESCE(ip, ''), COALESCE(status, ''), COALESCE(notes, '')`,
		joinSets(sets), len(args))

	var msg types.ChatMessage
	err := p.pool.QueryRow(ctx, query, args...).Scan(
		&msg.ID, &msg.ConversationID, &msg.CreatedAt, &msg.Role, &msg.Content,
		&msg.IP, &msg.Status, &msg.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("updating message metadata: %w", err)
	}
	return &msg, nil
}

func (p *PostgresStore) EnsureConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return nil
	}
	_, err := p.pool.Exec(ctx, `
	INSERT INTO chatbot_conversations (conversation_id, status)
	VALUES ($1, 'pending')
	ON CONFLICT (conversation_id) DO NOTHING`, conversationID)
	if err != nil {
		return fmt.Errorf("ensuring conversation metadata: %w", err)
	}
	return nil
}

func scanMessages(rows pgx.Rows) ([]types.ChatMessage, error) {
	defer rows.Close()
	var messages []types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.CreatedAt, &msg.Role, &msg.Content,
			&msg.IP, &msg.Status, &msg.Notes,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
