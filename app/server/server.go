package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"kbchat/app/agent"
	"kbchat/app/api"
	"kbchat/config"
	"kbchat/mailer"
	"kbchat/model"
	"kbchat/store"
)

type Server struct {
	cfg    *config.Config
	app    *fiber.App
	store  *store.PostgresStore
	logger *slog.Logger
}

func New(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// Run connects to the database, wires the handlers and serves until Stop is
// called.
func (s *Server) Run(ctx context.Context) error {
	pg, err := store.NewPostgresStore(ctx, s.cfg.DB, s.cfg.Embedding.Dimension)
	if err != nil {
		return err
	}
	if err := pg.Init(ctx); err != nil {
		pg.Close()
		return err
	}
	s.store = pg

	var (
		client    = model.NewClient(s.cfg.Ollama)
		embedder  = model.NewEmbedder(client, s.cfg.Embedding.Dimension)
		retriever = agent.NewRetriever(pg, embedder, s.cfg.Chat.MinSimilarity)
		chatAgent = agent.NewAgent(client)
		notifier  = mailer.New(s.cfg.SMTP)

		checkHandler      = api.NewCheckHandler(client)
		chatHandler       = api.NewChatHandler(pg, retriever, chatAgent, notifier)
		embeddingsHandler = api.NewEmbeddingsHandler(embedder)
		leadHandler       = api.NewLeadHandler(pg)
		messagesHandler   = api.NewMessagesHandler(pg)
	)

	s.app = fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
	})
	// Open CORS while the widget is served from multiple origins.
	s.app.Use(cors.New())

	apiGroup := s.app.Group("/api")
	s.app.Get("/health", checkHandler.HandleHealthy)
	apiGroup.Post("/chat", chatHandler.HandleChat)
	apiGroup.Post("/embeddings", embeddingsHandler.HandleEmbeddings)
	apiGroup.Post("/leads", leadHandler.HandleCreateLead)
	apiGroup.Get("/chat_messages", messagesHandler.HandleListMessages)
	apiGroup.Patch("/chat_messages/:id", messagesHandler.HandleUpdateMessage)

	s.logger.Info("server listening", "addr", s.cfg.ServerAddr)
	return s.app.Listen(s.cfg.ServerAddr)
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.Shutdown(); err != nil {
			s.logger.Error("error during shutdown", "err", err)
		}
	}
	if s.store != nil {
		s.store.Close()
	}
	s.logger.Info("server stopped")
}
