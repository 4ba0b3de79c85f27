// Package rag orchestrates the retrieval-augmented answering pipeline. It
// embeds a question, searches the vector index, joins hits back to chunk
// text in the metadata store, and either refuses with a fixed message or
// composes a grounded prompt for the chat model.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rishikeshs/trashbot/engine/domain"
	"github.com/rishikeshs/trashbot/engine/semantic"
	"github.com/rishikeshs/trashbot/pkg/metrics"
	"github.com/rishikeshs/trashbot/pkg/vecmath"
)

// IDKMessage is returned verbatim whenever retrieval is empty or too weak.
// Downstream consumers compare against it exactly; never reword it.
const IDKMessage = "I'm sorry, but I don't know the answer based on the company data I have."

const (
	// DefaultTopK is the number of chunks retrieved per query.
	DefaultTopK = 3
	// DefaultRefusalThreshold is the minimum top-hit inner-product score
	// (cosine, in [-1,1]) required before answering.
	DefaultRefusalThreshold = 0.35
)

// Embedder produces a fixed-dimension embedding for one text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher performs k-NN inner-product search over the slot-keyed index.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]semantic.Hit, error)
}

// MetaFetcher resolves vector slots to stored chunk text in one batch.
type MetaFetcher interface {
	TextsBySlots(ctx context.Context, slots []int64) (map[int64]string, error)
}

// ChatClient sends a single user-turn prompt and returns the reply text.
type ChatClient interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Options configures the pipeline behaviour.
type Options struct {
	TopK             int
	RefusalThreshold float32
	ChatTimeout      time.Duration
	// Drift counts index/metadata drift occurrences (slots the index
	// returned that the metadata store could not resolve). Optional.
	Drift *metrics.Counter
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TopK:             DefaultTopK,
		RefusalThreshold: DefaultRefusalThreshold,
		ChatTimeout:      60 * time.Second,
	}
}

// Service is the question-answering service. All dependencies are injected
// once at process start and treated as read-only afterwards.
type Service struct {
	embed  Embedder
	search Searcher
	meta   MetaFetcher
	chat   ChatClient
	opts   Options
	logger *slog.Logger
}

// New creates a Service.
func New(embed Embedder, search Searcher, meta MetaFetcher, chat ChatClient, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Service{
		embed:  embed,
		search: search,
		meta:   meta,
		chat:   chat,
		opts:   opts,
		logger: logger,
	}
}

// Retrieve returns the top-k chunks for a query with their scores, in the
// index's descending-score order. An empty or whitespace-only query returns
// nil without touching the embedder. Slots the metadata store cannot
// resolve, or resolves to blank text, are dropped silently.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if k <= 0 {
		k = s.opts.TopK
	}

	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	vecmath.NormalizeL2(vec)

	hits, err := s.search.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}

	// Negative slots are the index's "no match" sentinel.
	seen := make(map[int64]bool, len(hits))
	slots := make([]int64, 0, len(hits))
	for _, h := range hits {
		if h.Slot < 0 || seen[h.Slot] {
			continue
		}
		seen[h.Slot] = true
		slots = append(slots, h.Slot)
	}
	if len(slots) == 0 {
		return nil, nil
	}

	texts, err := s.meta.TextsBySlots(ctx, slots)
	if err != nil {
		return nil, fmt.Errorf("rag: fetch metadata: %w", err)
	}

	// Re-walk the ordered hit list rather than ranging over the map: map
	// iteration order would destroy the score ordering.
	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		if h.Slot < 0 {
			continue
		}
		txt := strings.TrimSpace(texts[h.Slot])
		if txt == "" {
			if s.opts.Drift != nil {
				s.opts.Drift.Inc()
			}
			s.logger.Warn("rag: metadata missing for slot", "slot", h.Slot)
			continue
		}
		results = append(results, domain.RetrievalResult{Text: txt, Score: h.Score})
	}
	return results, nil
}

// Answer runs the full pipeline for a question. It either refuses with
// IDKMessage or returns the chat model's reply verbatim. Only the top score
// is thresholded: one strong chunk is enough to proceed even when the rest
// of the retrieved set is weak.
func (s *Service) Answer(ctx context.Context, query string) (string, error) {
	results, err := s.Retrieve(ctx, query, s.opts.TopK)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		s.logger.Info("rag: refusing, nothing retrieved")
		return IDKMessage, nil
	}

	best := results[0].Score
	if best < s.opts.RefusalThreshold {
		s.logger.Info("rag: refusing, top score below threshold",
			"score", best, "threshold", s.opts.RefusalThreshold)
		return IDKMessage, nil
	}

	prompt := buildPrompt(query, results)

	chatCtx, cancel := context.WithTimeout(ctx, s.opts.ChatTimeout)
	defer cancel()

	reply, err := s.chat.Chat(chatCtx, prompt)
	if err != nil {
		return "", fmt.Errorf("rag: chat: %w", err)
	}
	return reply, nil
}

// buildPrompt concatenates the retrieved chunk texts in order, separated by
// blank lines, and wraps them in the grounding instructions.
func buildPrompt(question string, results []domain.RetrievalResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	ctxText := strings.Join(texts, "\n\n")

	var b strings.Builder
	b.WriteString("You are a friendly but precise company assistant. ")
	b.WriteString("You have access only to the CONTEXT below, which comes from internal databases and documents. ")
	b.WriteString("You MUST obey these rules:\n")
	b.WriteString("1) Use ONLY the information in the context to answer. Do NOT use outside knowledge.\n")
	b.WriteString("2) If the answer is not clearly supported by the context, or you are unsure, ")
	b.WriteString("you MUST reply exactly: '" + IDKMessage + "'\n")
	b.WriteString("3) When you do answer, be short, human, and easy to read. ")
	b.WriteString("Prefer 1-3 concise sentences or a VERY short bullet list.\n\n")
	fmt.Fprintf(&b, "CONTEXT:\n%s\n\n", ctxText)
	fmt.Fprintf(&b, "QUESTION: %s\n", question)
	b.WriteString("Now give your answer following the rules above.")
	return b.String()
}
