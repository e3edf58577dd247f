package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"kbchat/store"
	"kbchat/types"
)

type MessagesHandler struct {
	store  store.DBStorer
	logger *slog.Logger
}

func NewMessagesHandler(storer store.DBStorer) *MessagesHandler {
	return &MessagesHandler{
		store:  storer,
		logger: slog.Default(),
	}
}

// HandleListMessages returns every message of a conversation, oldest first.
func (h *MessagesHandler) HandleListMessages(c *fiber.Ctx) error {
	conversationID := c.Query("conversation_id")
	if conversationID == "" {
		return ErrBadRequest("conversation_id query parameter is required")
	}

	messages, err := h.store.ListConversationMessages(c.Context(), conversationID)
	if err != nil {
		h.logger.Error("failed to list messages", "conversation", conversationID, "err", err)
		return ErrInternal("could not load the conversation")
	}
	if messages == nil {
		messages = []types.ChatMessage{}
	}
	return c.JSON(messages)
}

// HandleUpdateMessage patches the status and notes columns of a message.
func (h *MessagesHandler) HandleUpdateMessage(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return ErrInvalidID()
	}

	var update types.MessageMetadataUpdate
	if c.BodyParser(&update) != nil {
		return ErrBadRequest("")
	}
	if update.Status == nil && update.Notes == nil {
		return ErrBadRequest("nothing to update: provide status or notes")
	}

	message, err := h.store.UpdateMessageMetadata(c.Context(), int64(id), update)
	if err != nil {
		h.logger.Error("failed to update message", "id", id, "err", err)
		return ErrInternal("could not update the message")
	}
	if message == nil {
		return ErrNotFound(id, "message")
	}
	return c.JSON(message)
}
