package api

import (
	"github.com/gofiber/fiber/v2"

	"kbchat/model"
)

type CheckHandler struct {
	client *model.Client
}

func NewCheckHandler(client *model.Client) *CheckHandler {
	return &CheckHandler{client: client}
}

// HandleHealthy reports the API as up and probes the Ollama endpoints. The
// route answers 200 even when Ollama is down; the payload carries the detail.
func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	health := h.client.CheckHealth(c.Context())
	return c.JSON(fiber.Map{
		"status": "ok",
		"ollama": health,
	})
}
