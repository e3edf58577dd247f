package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"kbchat/config"
	"kbchat/loader/internal"
	"kbchat/loader/service"
	"kbchat/model"
	"kbchat/store"
)

func main() {
	app := &cli.App{
		Name:  "kbchat-ingest",
		Usage: "ingest the Markdown knowledge base into the pgvector documents table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "optional YAML config file",
			},
			&cli.StringFlag{
				Name:  "kb-dir",
				Usage: "knowledge base directory (overrides KNOWLEDGE_BASE_DIR)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "number of concurrent ingestion workers",
			},
			&cli.Float64Flag{
				Name:  "rate",
				Usage: "embedding requests per second (0 for unlimited)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Missing .env is fine when the environment is set by the container.
	_ = godotenv.Load()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if dir := c.String("kb-dir"); dir != "" {
		cfg.Loader.KnowledgeBaseDir = dir
	}
	if workers := c.Int("workers"); workers > 0 {
		cfg.Loader.Workers = workers
	}
	if c.IsSet("rate") {
		cfg.Loader.EmbedRate = c.Float64("rate")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := store.NewPostgresStore(ctx, cfg.DB, cfg.Embedding.Dimension)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pg.Close()
	if err := pg.Init(ctx); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	embedder := model.NewEmbedder(model.NewClient(cfg.Ollama), cfg.Embedding.Dimension)
	svc, err := service.New(pg, embedder, cfg.Loader, cfg.Embedding.Version)
	if err != nil {
		return err
	}
	defer svc.Release()

	files, err := internal.ListMarkdownFiles(cfg.Loader.KnowledgeBaseDir)
	if err != nil {
		return err
	}
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionShowCount(),
	)
	svc.OnFileDone = func(result service.FileResult) {
		_ = bar.Add(1)
	}

	summary, err := svc.Run(ctx)
	fmt.Println()
	if err != nil {
		return err
	}

	color.Green("Ingested %d chunks from %d files", summary.Chunks, summary.Files)
	if summary.Skipped > 0 {
		color.Yellow("Skipped %d empty files", summary.Skipped)
	}
	if summary.Failed > 0 {
		color.Red("Failed to ingest %d files, see logs above", summary.Failed)
		return fmt.Errorf("%d files failed", summary.Failed)
	}
	return nil
}
