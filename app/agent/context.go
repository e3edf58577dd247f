package agent

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"

	"kbchat/store"
	"kbchat/textutil"
	"kbchat/types"
)

const (
	maxContextChunks      = 8
	contextChunkSendLimit = 5
	keywordMatchChunks    = 2
	courseOverviewFile    = "overview_cursos.md"
)

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// questionWords are interrogatives that carry no retrieval signal.
var questionWords = map[string]struct{}{
	"quien": {}, "quienes": {}, "que": {}, "como": {}, "cuando": {},
	"donde": {}, "por": {}, "para": {}, "cual": {}, "cuales": {},
	"cuanto": {}, "cuantos": {}, "cuanta": {}, "cuantas": {}, "porque": {},
}

// sourceIntentKeywords map knowledge-base subdirectories to the words that
// signal the user is asking about that area. When a message matches, vector
// search is restricted to those sources.
var sourceIntentKeywords = map[string][]string{
	"faq/":       {"faq", "preguntas frecuentes", "pregunta frecuente"},
	"servicios/": {"servicio", "servicios", "contratar", "ofrecemos", "diseno", "proyecto"},
	"cursos/":    {"curso", "cursos", "capacitacion", "formacion", "taller", "educacion"},
	"software/":  {"software", "cype", "sap2000", "etabs", "modelacion", "cypeunext"},
}

var courseIntentKeywords = []string{
	"curso", "cursos", "capacitacion", "formacion", "taller",
	"instalaciones", "instalacion",
}

type embedQuerier interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever assembles the context block for a chat turn: vector search over
// the documents table, keyword rescue for terms the embedding may miss, and
// priority-aware chunk selection.
type Retriever struct {
	store         store.DBStorer
	embedder      embedQuerier
	minSimilarity float64
	logger        *slog.Logger
}

func NewRetriever(storer store.DBStorer, embedder embedQuerier, minSimilarity float64) *Retriever {
	return &Retriever{
		store:         storer,
		embedder:      embedder,
		minSimilarity: minSimilarity,
		logger:        slog.Default(),
	}
}

// RetrievalResult reports what went into the context block, for logging.
type RetrievalResult struct {
	QueryEmbedding []float32
	ContextChunks  []string
	SourceFilters  []string
	SimilarChunks  int
	KeywordChunks  int
	BestSimilarity float64
}

// ExtractKeywords pulls the retrieval-worthy tokens out of a message: words of
// five letters or more, or short all-caps terms like CYPE, minus plain
// question words. Order is preserved, duplicates dropped.
func ExtractKeywords(text string) []string {
	var keywords []string
	seen := make(map[string]struct{})
	for _, token := range tokenPattern.FindAllString(text, -1) {
		normalized := strings.ToLower(token)
		if _, skip := questionWords[normalized]; skip {
			continue
		}
		isUpper := token == strings.ToUpper(token) && token != strings.ToLower(token)
		if len(normalized) < 5 && !(isUpper && len(normalized) >= 3) {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		keywords = append(keywords, normalized)
	}
	return keywords
}

// InferSourceFilters returns the knowledge-base prefixes the normalized
// message shows intent for.
func InferSourceFilters(normalizedMessage string) []string {
	var matches []string
	for _, prefix := range []string{"faq/", "servicios/", "cursos/", "software/"} {
		for _, keyword := range sourceIntentKeywords[prefix] {
			if strings.Contains(normalizedMessage, keyword) {
				matches = append(matches, prefix)
				break
			}
		}
	}
	return matches
}

// IsCourseRequest reports whether the normalized message asks about courses.
func IsCourseRequest(normalizedMessage string) bool {
	for _, keyword := range courseIntentKeywords {
		if strings.Contains(normalizedMessage, keyword) {
			return true
		}
	}
	return false
}

// chunkPriority ranks sources: the routing table first, summaries and FAQ
// files second, everything else after.
func chunkPriority(source string) int {
	if source == "" {
		return 3
	}
	base := strings.ToLower(path.Base(strings.ReplaceAll(source, "\\", "/")))
	switch {
	case base == "routing.md":
		return 0
	case strings.HasSuffix(base, "_summary.md") || base == "faq.md":
		return 1
	case strings.HasPrefix(base, "faq_") && strings.HasSuffix(base, ".md"):
		return 1
	}
	return 2
}

// selectContextChunks orders candidates by priority then similarity and picks
// up to limit texts, keeping one chunk per source and skipping duplicates.
func selectContextChunks(chunks []types.Chunk, limit int) []string {
	candidates := make([]types.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) != "" {
			candidates = append(candidates, chunk)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := chunkPriority(candidates[i].Source), chunkPriority(candidates[j].Source)
		if pi != pj {
			return pi < pj
		}
		return candidates[i].Similarity > candidates[j].Similarity
	})

	var selected []string
	seenSources := make(map[string]struct{})
	seenTexts := make(map[string]struct{})
	for _, chunk := range candidates {
		if len(selected) >= limit {
			break
		}
		text := strings.TrimSpace(chunk.Text)
		normalized := strings.ToLower(textutil.Normalize(text))
		if _, dup := seenSources[chunk.Source]; dup {
			continue
		}
		if _, dup := seenTexts[normalized]; dup {
			continue
		}
		selected = append(selected, text)
		seenSources[chunk.Source] = struct{}{}
		seenTexts[normalized] = struct{}{}
	}
	return selected
}

// validateKeywordChunks runs the keyword rescue: texts that mention the query
// keywords are re-embedded and kept only when their dot product against the
// query embedding clears the similarity threshold.
func (r *Retriever) validateKeywordChunks(ctx context.Context, queryEmbedding []float32, keywords []string, existing map[string]struct{}) []string {
	if len(keywords) == 0 {
		return nil
	}
	candidates, err := r.store.TextsWithKeywords(ctx, keywords, keywordMatchChunks)
	if err != nil {
		r.logger.Error("keyword search failed", "err", err)
		return nil
	}

	var validated []string
	for _, candidate := range candidates {
		text := strings.TrimSpace(candidate)
		if text == "" {
			continue
		}
		normalized := strings.ToLower(textutil.Normalize(text))
		if normalized == "" {
			continue
		}
		if _, dup := existing[normalized]; dup {
			continue
		}
		embedding, err := r.embedder.EmbedQuery(ctx, text)
		if err != nil {
			r.logger.Error("failed to embed keyword chunk", "err", err)
			continue
		}
		if textutil.Dot(queryEmbedding, embedding) >= r.minSimilarity {
			validated = append(validated, text)
			existing[normalized] = struct{}{}
		}
	}
	return validated
}

// Retrieve builds the context chunks for a user message. When courseIntent is
// set the course overview document is injected ahead of the search results.
func (r *Retriever) Retrieve(ctx context.Context, message string, keywords []string, normalizedMessage string, courseIntent bool) (*RetrievalResult, error) {
	queryEmbedding, err := r.embedder.EmbedQuery(ctx, message)
	if err != nil {
		return nil, err
	}
	if normalizedMessage == "" {
		normalizedMessage = textutil.NormalizeSocial(message)
	}

	sourceFilters := InferSourceFilters(normalizedMessage)
	similar, err := r.store.SearchSimilar(ctx, queryEmbedding, maxContextChunks, sourceFilters)
	if err != nil {
		return nil, err
	}

	var (
		valid          []types.Chunk
		bestSimilarity float64
	)
	for _, chunk := range similar {
		if chunk.Similarity < r.minSimilarity {
			continue
		}
		valid = append(valid, chunk)
		if chunk.Similarity > bestSimilarity {
			bestSimilarity = chunk.Similarity
		}
	}

	result := &RetrievalResult{
		QueryEmbedding: queryEmbedding,
		SourceFilters:  sourceFilters,
		SimilarChunks:  len(valid),
		BestSimilarity: bestSimilarity,
	}
	dedup := make(map[string]struct{})

	if courseIntent {
		overview, err := r.store.ChunksByFilepaths(ctx, []string{courseOverviewFile})
		if err != nil {
			r.logger.Error("failed to load course overview", "err", err)
		}
		for _, chunk := range overview {
			text := strings.TrimSpace(chunk.Text)
			if text == "" {
				continue
			}
			normalized := strings.ToLower(textutil.Normalize(text))
			if _, dup := dedup[normalized]; dup {
				continue
			}
			result.ContextChunks = append(result.ContextChunks, text)
			dedup[normalized] = struct{}{}
			break
		}
	}

	for _, text := range selectContextChunks(valid, contextChunkSendLimit) {
		if len(result.ContextChunks) >= contextChunkSendLimit {
			break
		}
		normalized := strings.ToLower(textutil.Normalize(text))
		if normalized == "" {
			continue
		}
		if _, dup := dedup[normalized]; dup {
			continue
		}
		result.ContextChunks = append(result.ContextChunks, text)
		dedup[normalized] = struct{}{}
	}

	keywordChunks := r.validateKeywordChunks(ctx, queryEmbedding, keywords, dedup)
	result.KeywordChunks = len(keywordChunks)
	for _, text := range keywordChunks {
		if len(result.ContextChunks) >= contextChunkSendLimit {
			break
		}
		result.ContextChunks = append(result.ContextChunks, text)
	}

	return result, nil
}
