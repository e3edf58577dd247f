// Package mailer sends lead notification emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"kbchat/config"
	"kbchat/types"
)

type Mailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// NotifyLead emails the configured recipients about a captured conversation
// lead. Disabled or incomplete SMTP configuration is not an error; the lead
// is already persisted and the notification is best effort.
func (m *Mailer) NotifyLead(ctx context.Context, lead types.ConversationLead) error {
	if !m.cfg.Enabled {
		m.logger.Debug("lead notification disabled")
		return nil
	}

	recipients := make([]string, 0, len(m.cfg.Recipients))
	for _, r := range m.cfg.Recipients {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		m.logger.Warn("lead notification recipients list is empty, skipping email")
		return nil
	}
	if m.cfg.Host == "" {
		m.logger.Warn("smtp host is not configured, skipping lead notification")
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(m.cfg.Subject)
	msg.SetBodyString(mail.TypeTextPlain, LeadBody(lead))

	client, err := m.newClient()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending lead notification: %w", err)
	}
	m.logger.Info("lead notification sent",
		"conversation", lead.ConversationID, "recipients", len(recipients))
	return nil
}

func (m *Mailer) newClient() (*mail.Client, error) {
	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	switch {
	case m.cfg.UseSSL:
		opts = append(opts, mail.WithSSL())
	case m.cfg.UseTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}
	return client, nil
}

// LeadBody renders the plain-text notification body.
func LeadBody(lead types.ConversationLead) string {
	var b strings.Builder
	b.WriteString("A client gave this information during the chatbot conversation:\n")
	fields := []struct {
		label string
		value string
	}{
		{"Conversation ID", lead.ConversationID},
		{"Phone", lead.Phone},
		{"Email", lead.Email},
		{"Status", lead.Status},
		{"IP", lead.IP},
		{"Timestamp", formatTime(lead.Timestamp)},
		{"Notes", lead.Notes},
	}
	for _, f := range fields {
		value := f.value
		if value == "" {
			value = "N/A"
		}
		fmt.Fprintf(&b, "+ %s: %s\n", f.label, value)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
