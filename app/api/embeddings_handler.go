package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"kbchat/types"
)

type queryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

type EmbeddingsHandler struct {
	embedder queryEmbedder
	logger   *slog.Logger
}

func NewEmbeddingsHandler(embedder queryEmbedder) *EmbeddingsHandler {
	return &EmbeddingsHandler{
		embedder: embedder,
		logger:   slog.Default(),
	}
}

// HandleEmbeddings returns the normalized embedding for a text. Used by the
// ingestion smoke tests and for debugging retrieval.
func (h *EmbeddingsHandler) HandleEmbeddings(c *fiber.Ctx) error {
	var req types.EmbeddingsRequest
	if c.BodyParser(&req) != nil {
		return ErrBadRequest("")
	}
	if errors := types.Validate(&req); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	embedding, err := h.embedder.EmbedQuery(c.Context(), req.Text)
	if err != nil {
		h.logger.Error("failed to embed text", "err", err)
		return ErrInternal("could not compute the embedding")
	}
	return c.JSON(types.EmbeddingsResponse{
		Embedding: embedding,
		Model:     h.embedder.Model(),
		Dimension: h.embedder.Dimension(),
	})
}
