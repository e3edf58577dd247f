package store

import (
	"context"
	"fmt"
	"time"

	"kbchat/types"
)

// CreateLead inserts a form-submitted lead and returns its id.
func (p *PostgresStore) CreateLead(ctx context.Context, lead types.Lead) (int64, error) {
	source := lead.Source
	if source == "" {
		source = "chatbot"
	}

	var id int64
	err := p.pool.QueryRow(ctx, `
	INSERT INTO leads (name, company, email, phone, message, source, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`,
		nullable(lead.Name), nullable(lead.Company), nullable(lead.Email),
		nullable(lead.Phone), nullable(lead.Message), source, lead.Metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating lead: %w", err)
	}
	p.logger.Info("lead created", "id", id, "email", lead.Email)
	return id, nil
}

// SaveConversationLead stores a phone/email capture detected inside a chat.
// Rows with neither contact channel are dropped silently.
func (p *PostgresStore) SaveConversationLead(ctx context.Context, lead types.ConversationLead) error {
	if lead.Phone == "" && lead.Email == "" {
		return nil
	}

	when := lead.Timestamp
	if when.IsZero() {
		when = time.Now().UTC()
	}
	status := lead.Status
	if status == "" {
		status = "pending"
	}

	_, err := p.pool.Exec(ctx, `
	INSERT INTO chatbot_leads_conversation (conversation_id, phone, email, status, ip, "timestamp")
	VALUES ($1, $2, $3, $4, $5, $6)`,
		lead.ConversationID, nullable(lead.Phone), nullable(lead.Email),
		status, nullable(lead.IP), when)
	if err != nil {
		return fmt.Errorf("saving conversation lead: %w", err)
	}
	p.logger.Info("conversation lead saved",
		"conversation", lead.ConversationID, "has_phone", lead.Phone != "", "has_email", lead.Email != "")
	return nil
}
