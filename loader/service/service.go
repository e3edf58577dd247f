package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"kbchat/config"
	"kbchat/loader/internal"
	"kbchat/model"
	"kbchat/store"
	"kbchat/textutil"
	"kbchat/types"
)

// Service ingests a Markdown knowledge base: each file is chunked, embedded
// through Ollama and written to the documents table, replacing whatever was
// stored for that file before.
type Service struct {
	store    store.DBStorer
	embedder *model.Embedder
	cfg      config.LoaderConfig
	version  string

	pool    *ants.Pool
	limiter *rate.Limiter
	logger  *slog.Logger

	// OnFileDone is invoked after each file finishes, successful or not.
	// Used by the CLI to drive its progress bar.
	OnFileDone func(result FileResult)
}

type FileResult struct {
	Filepath string
	Chunks   int
	Skipped  bool
	Err      error
}

type Summary struct {
	Files   int
	Chunks  int
	Skipped int
	Failed  int
}

func New(storer store.DBStorer, embedder *model.Embedder, cfg config.LoaderConfig, version string) (*Service, error) {
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	limit := rate.Inf
	if cfg.EmbedRate > 0 {
		limit = rate.Limit(cfg.EmbedRate)
	}

	return &Service{
		store:    storer,
		embedder: embedder,
		cfg:      cfg,
		version:  version,
		pool:     pool,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   slog.Default(),
	}, nil
}

// Release shuts down the worker pool. The service must not be used after.
func (s *Service) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Run ingests every Markdown file under the knowledge-base directory. Files
// are processed concurrently; a failing file is reported but does not abort
// the rest of the run.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	files, err := internal.ListMarkdownFiles(s.cfg.KnowledgeBaseDir)
	if err != nil {
		return Summary{}, err
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		summary Summary
	)
	summary.Files = len(files)

	for _, file := range files {
		file := file
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			result := s.ingestFile(ctx, file)

			mu.Lock()
			switch {
			case result.Err != nil:
				summary.Failed++
			case result.Skipped:
				summary.Skipped++
			default:
				summary.Chunks += result.Chunks
			}
			mu.Unlock()

			if result.Err != nil {
				s.logger.Error("failed to ingest file", "file", file, "err", result.Err)
			}
			if s.OnFileDone != nil {
				s.OnFileDone(result)
			}
		})
		if submitErr != nil {
			wg.Done()
			return summary, fmt.Errorf("submitting ingestion task: %w", submitErr)
		}
	}

	wg.Wait()
	s.logger.Info("ingestion finished",
		"files", summary.Files, "chunks", summary.Chunks,
		"skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

func (s *Service) ingestFile(ctx context.Context, path string) FileResult {
	relative, err := filepath.Rel(s.cfg.KnowledgeBaseDir, path)
	if err != nil {
		return FileResult{Filepath: path, Err: err}
	}
	result := FileResult{Filepath: relative}

	raw, err := internal.ReadMarkdown(path)
	if err != nil {
		result.Err = err
		return result
	}

	cleaned := textutil.Normalize(strings.ReplaceAll(raw, "\n", " "))
	if cleaned == "" {
		s.logger.Info("skipping empty document", "file", relative)
		result.Skipped = true
		return result
	}

	chunkSize := s.cfg.ChunkSize
	if internal.IsShortForm(relative) {
		chunkSize = internal.ShortFormChunkSize
	}
	chunker, err := internal.NewChunker(chunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		result.Err = err
		return result
	}

	source := strings.ReplaceAll(relative, "\\", "/")
	var chunks []types.Chunk
	for index, text := range chunker.Chunk(cleaned) {
		normalized := textutil.Normalize(text)
		if normalized == "" {
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			result.Err = err
			return result
		}
		embedding, norm, err := s.embedder.EmbedChunk(ctx, normalized)
		if err != nil {
			result.Err = fmt.Errorf("embedding chunk %d: %w", index, err)
			return result
		}

		chunks = append(chunks, types.Chunk{
			Filepath:         relative,
			ChunkIndex:       index,
			ChunkID:          uuid.NewString(),
			Text:             text,
			NormalizedText:   normalized,
			Source:           source,
			Embedding:        embedding,
			EmbeddingNorm:    norm,
			EmbeddingModel:   s.embedder.Model(),
			EmbeddingDim:     s.embedder.Dimension(),
			EmbeddingVersion: s.version,
		})
	}

	if err := s.store.ReplaceDocumentChunks(ctx, relative, chunks); err != nil {
		result.Err = err
		return result
	}
	result.Chunks = len(chunks)
	s.logger.Debug("ingested file", "file", relative, "chunks", len(chunks))
	return result
}
