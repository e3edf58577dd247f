package api

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"kbchat/app/agent"
	"kbchat/lead"
	"kbchat/store"
	"kbchat/textutil"
	"kbchat/types"
)

const (
	// Canned replies pause before answering so the widget feels attended by
	// a person rather than a script.
	defaultContactDelay = 1500 * time.Millisecond
	defaultSocialDelay  = 7 * time.Second

	leadNotifyTimeout = 30 * time.Second
)

type leadNotifier interface {
	NotifyLead(ctx context.Context, lead types.ConversationLead) error
}

type ChatHandler struct {
	store     store.DBStorer
	retriever *agent.Retriever
	agent     *agent.Agent
	notifier  leadNotifier
	logger    *slog.Logger

	contactDelay time.Duration
	socialDelay  time.Duration
}

func NewChatHandler(storer store.DBStorer, retriever *agent.Retriever, chatAgent *agent.Agent, notifier leadNotifier) *ChatHandler {
	return &ChatHandler{
		store:        storer,
		retriever:    retriever,
		agent:        chatAgent,
		notifier:     notifier,
		logger:       slog.Default(),
		contactDelay: defaultContactDelay,
		socialDelay:  defaultSocialDelay,
	}
}

// HandleChat runs one conversation turn: contact capture and social messages
// are answered without the model, everything else goes through retrieval and
// generation. Both sides of the exchange are persisted.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req types.ChatRequest
	if c.BodyParser(&req) != nil {
		return ErrBadRequest("")
	}
	if errors := types.Validate(&req); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	userMessage := strings.TrimSpace(req.Message)
	if userMessage == "" {
		return ErrBadRequest("El mensaje no puede estar vacio.")
	}
	normalizedMessage := textutil.NormalizeSocial(userMessage)
	courseIntent := agent.IsCourseRequest(normalizedMessage)

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	ctx := c.Context()
	h.logger.Info("chat turn started",
		"conversation", conversationID, "question", truncateForLog(userMessage))
	if err := h.store.EnsureConversation(ctx, conversationID); err != nil {
		h.logger.Error("failed to ensure conversation metadata",
			"conversation", conversationID, "err", err)
	}

	if lead.LooksLikeContact(userMessage) {
		h.logger.Info("contact info received", "conversation", conversationID)
		response := agent.AppendContactPrompt(agent.ContactAck)
		if err := h.pause(ctx, h.contactDelay); err != nil {
			return err
		}
		h.saveExchange(ctx, conversationID, userMessage, response, req.IP)
		return c.JSON(types.ChatResponse{Response: response, ConversationID: conversationID})
	}

	if social := agent.DetectSocialResponse(userMessage); social != "" {
		h.logger.Info("social short-circuit", "conversation", conversationID)
		if err := h.pause(ctx, h.socialDelay); err != nil {
			return err
		}
		response := social
		if !agent.IsGreeting(normalizedMessage) {
			response = agent.AppendContactPrompt(social)
		}
		h.saveExchange(ctx, conversationID, userMessage, response, req.IP)
		return c.JSON(types.ChatResponse{Response: response, ConversationID: conversationID})
	}

	history, err := h.store.RecentMessages(ctx, conversationID, 4)
	if err != nil {
		h.logger.Error("failed to load history", "conversation", conversationID, "err", err)
		history = nil
	}
	historyText, lastAssistantReply := agent.FormatHistory(history)
	previousAnswerBlock := agent.PreviousAnswerBlock(lastAssistantReply)

	keywords := agent.ExtractKeywords(userMessage)
	retrieval, err := h.retriever.Retrieve(ctx, userMessage, keywords, normalizedMessage, courseIntent)
	if err != nil {
		h.logger.Error("retrieval failed", "conversation", conversationID, "err", err)
		return ErrInternal("Lo siento, hubo un problema buscando en nuestra base de conocimiento. Intenta nuevamente.")
	}

	filters := "all"
	if len(retrieval.SourceFilters) > 0 {
		filters = strings.Join(retrieval.SourceFilters, ",")
	}
	h.logger.Info("retrieval done",
		"conversation", conversationID,
		"filters", filters,
		"retrieved", retrieval.SimilarChunks,
		"used", len(retrieval.ContextChunks),
		"keywords", retrieval.KeywordChunks,
		"best_similarity", retrieval.BestSimilarity)

	var answer string
	if len(retrieval.ContextChunks) == 0 {
		h.logger.Warn("no context available, skipping generation", "conversation", conversationID)
		answer = agent.FallbackResponse
	} else {
		answer, err = h.agent.Answer(ctx, previousAnswerBlock, historyText, retrieval.ContextChunks, userMessage, courseIntent)
		if err != nil {
			h.logger.Error("generation failed", "conversation", conversationID, "err", err)
			return ErrInternal("Hubo un problema al generar la respuesta. Por favor, intentalo de nuevo.")
		}
	}

	finalAnswer := agent.AppendContactPrompt(answer)
	h.saveExchange(ctx, conversationID, userMessage, finalAnswer, req.IP)
	h.logger.Info("chat turn completed",
		"conversation", conversationID, "context_used", len(retrieval.ContextChunks) > 0)
	return c.JSON(types.ChatResponse{Response: finalAnswer, ConversationID: conversationID})
}

// saveExchange persists the user message and the assistant reply. A storage
// failure is logged but does not fail the request; the user already has their
// answer.
func (h *ChatHandler) saveExchange(ctx context.Context, conversationID, userMessage, answer, ip string) {
	h.maybeRecordLead(conversationID, userMessage, ip)

	for _, msg := range []types.ChatMessage{
		{ConversationID: conversationID, Role: types.RoleUser, Content: userMessage, IP: ip},
		{ConversationID: conversationID, Role: types.RoleAssistant, Content: answer, IP: ip},
	} {
		if err := h.store.SaveMessage(ctx, msg); err != nil {
			h.logger.Error("failed to save message",
				"conversation", conversationID, "role", msg.Role, "err", err)
		}
	}
}

// maybeRecordLead stores any phone or email found in a user message and fires
// the notification email in the background.
func (h *ChatHandler) maybeRecordLead(conversationID, message, ip string) {
	contact := lead.Extract(message)
	if contact.Empty() {
		return
	}
	captured := types.ConversationLead{
		ConversationID: conversationID,
		Phone:          contact.Phone,
		Email:          contact.Email,
		IP:             ip,
		Timestamp:      time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), leadNotifyTimeout)
	go func() {
		defer cancel()
		if err := h.store.SaveConversationLead(ctx, captured); err != nil {
			h.logger.Error("failed to record lead",
				"conversation", conversationID, "err", err)
			return
		}
		if h.notifier == nil {
			return
		}
		if err := h.notifier.NotifyLead(ctx, captured); err != nil {
			h.logger.Error("failed to send lead notification",
				"conversation", conversationID, "err", err)
		}
	}()
}

func (h *ChatHandler) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncateForLog(message string) string {
	if len(message) > 100 {
		return message[:100]
	}
	return message
}
