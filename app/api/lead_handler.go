package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"kbchat/store"
	"kbchat/types"
)

type LeadHandler struct {
	store  store.DBStorer
	logger *slog.Logger
}

func NewLeadHandler(storer store.DBStorer) *LeadHandler {
	return &LeadHandler{
		store:  storer,
		logger: slog.Default(),
	}
}

// HandleCreateLead stores a contact form submission. At least one of email or
// phone is required.
func (h *LeadHandler) HandleCreateLead(c *fiber.Ctx) error {
	var req types.LeadCreate
	if c.BodyParser(&req) != nil {
		return ErrBadRequest("")
	}
	if errors := types.Validate(&req); len(errors) > 0 {
		return types.NewValidationError(errors)
	}
	if req.Email == "" && req.Phone == "" {
		return ErrBadRequest("At least an email or a phone number is required.")
	}

	id, err := h.store.CreateLead(c.Context(), types.Lead{
		Name:     req.Name,
		Company:  req.Company,
		Email:    req.Email,
		Phone:    req.Phone,
		Message:  req.Message,
		Source:   req.Source,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.logger.Error("failed to create lead", "name", req.Name, "err", err)
		return ErrInternal("We couldn't save your contact details. Please try again later.")
	}

	h.logger.Info("lead created", "id", id)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}
