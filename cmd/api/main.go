// Package main implements the trashbot API server: retrieval-augmented
// question answering over indexed company data, plus the vehicle duty/scan
// report.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/rishikeshs/trashbot/engine/metastore"
	"github.com/rishikeshs/trashbot/engine/rag"
	"github.com/rishikeshs/trashbot/engine/report"
	"github.com/rishikeshs/trashbot/engine/semantic"
	"github.com/rishikeshs/trashbot/pkg/metrics"
	"github.com/rishikeshs/trashbot/pkg/mid"
	"github.com/rishikeshs/trashbot/pkg/ollama"
	"github.com/rishikeshs/trashbot/pkg/openai"
	"github.com/rishikeshs/trashbot/pkg/vehicle"
)

// Config holds all environment-based configuration.
type Config struct {
	Port string

	Provider   string // "ollama" or "openai"
	OllamaURL  string
	EmbedModel string
	ChatModel  string
	OpenAIKey  string
	OpenAIBase string

	QdrantURL  string
	Collection string

	MongoURI  string
	MongoDB   string
	MongoColl string

	DBServer string
	DBName   string
	DBUser   string
	DBPass   string

	RefusalThreshold float64
	TopK             int
	RateLimit        float64
	CORSOrigin       string
}

func loadConfig() Config {
	return Config{
		Port:             envOr("PORT", "8080"),
		Provider:         envOr("MODEL_PROVIDER", "ollama"),
		OllamaURL:        envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:       envOr("EMBED_MODEL", "all-minilm"),
		ChatModel:        envOr("OLLAMA_MODEL", "llama3"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBase:       os.Getenv("OPENAI_BASE_URL"),
		QdrantURL:        envOr("QDRANT_URL", "localhost:6334"),
		Collection:       envOr("QDRANT_COLLECTION", "chatbot_chunks"),
		MongoURI:         envOr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:          envOr("MONGO_DB", "vehicle_attendance"),
		MongoColl:        envOr("MONGO_COLLECTION", "chatbot_docs"),
		DBServer:         os.Getenv("DB_SERVER"),
		DBName:           os.Getenv("DB_NAME"),
		DBUser:           os.Getenv("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"),
		RefusalThreshold: envFloat("RAG_STRICT_THRESHOLD", rag.DefaultRefusalThreshold),
		TopK:             envInt("RAG_TOP_K", rag.DefaultTopK),
		RateLimit:        envFloat("RATE_LIMIT_RPS", 20),
		CORSOrigin:       envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Read-only retrieval resources, constructed once ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	metaStore, err := metastore.New(connectCtx, cfg.MongoURI, cfg.MongoDB, cfg.MongoColl)
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer metaStore.Close(context.Background())

	var (
		embedder rag.Embedder
		chat     rag.ChatClient
	)
	switch cfg.Provider {
	case "openai":
		client := openai.New(cfg.OpenAIKey, cfg.OpenAIBase, cfg.EmbedModel, cfg.ChatModel)
		embedder, chat = client, client
	default:
		embedder = ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel)
		chat = ollama.NewChatClient(cfg.OllamaURL, cfg.ChatModel)
	}

	// --- Metrics ---
	met := metrics.New()
	mQueries := met.Counter("trashbot_queries_total", "Questions received")
	mRefusals := met.Counter("trashbot_refusals_total", "Questions refused by policy")
	mReports := met.Counter("trashbot_report_requests_total", "Report requests received")
	mAnswerDur := met.Histogram("trashbot_answer_duration_seconds", "Full answer pipeline time", nil)
	mDrift := met.Counter("trashbot_rag_drift_total", "Index slots unresolved in the metadata store")

	opts := rag.DefaultOptions()
	opts.TopK = cfg.TopK
	opts.RefusalThreshold = float32(cfg.RefusalThreshold)
	opts.Drift = mDrift

	ragSvc := rag.New(embedder, vectorStore, metaStore, chat, opts, logger)

	reportCfg := report.Config{
		Server:   cfg.DBServer,
		Database: cfg.DBName,
		User:     cfg.DBUser,
		Password: cfg.DBPass,
	}

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", met.Handler())
	mux.HandleFunc("POST /api/ask", handleAsk(ragSvc, logger, mQueries, mRefusals, mAnswerDur))
	mux.HandleFunc("GET /api/report", handleReport(reportCfg, logger, mReports))
	mux.HandleFunc("GET /api/report/facts", handleReportFacts(reportCfg, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("trashbot-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "provider", cfg.Provider)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// AskRequest is the JSON body for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the JSON response for POST /api/ask.
type AskResponse struct {
	Answer string `json:"answer"`
}

func handleAsk(svc *rag.Service, logger *slog.Logger, queries, refusals *metrics.Counter, dur *metrics.Histogram) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Question == "" {
			http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
			return
		}

		queries.Inc()
		if v := vehicle.Extract(req.Question); v != "" {
			logger.Info("question mentions vehicle", "vehicle", v)
		}

		start := time.Now()
		answer, err := svc.Answer(r.Context(), req.Question)
		dur.Since(start)
		if err != nil {
			logger.Error("answer failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if answer == rag.IDKMessage {
			refusals.Inc()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AskResponse{Answer: answer})
	}
}

func reportParams(r *http.Request) report.Params {
	q := r.URL.Query()
	from := q.Get("from")
	to := q.Get("to")
	if from == "" {
		from = time.Now().AddDate(0, 0, -7).Format("2006-01-02")
	}
	if to == "" {
		to = time.Now().Format("2006-01-02")
	}
	zone, _ := strconv.Atoi(q.Get("zone"))
	panel, _ := strconv.Atoi(q.Get("panel"))
	return report.Params{
		Vehicle: q.Get("vehicle"),
		From:    from,
		To:      to,
		ZoneID:  zone,
		PanelID: panel,
	}
}

func writeReportError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, report.ErrVehicleRequired), errors.Is(err, report.ErrInvalidDate):
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
	case errors.Is(err, report.ErrMissingConfig):
		logger.Error("report not configured", "err", err)
		http.Error(w, `{"error":"report database not configured"}`, http.StatusInternalServerError)
	default:
		logger.Error("report query failed", "err", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
	}
}

func handleReport(cfg report.Config, logger *slog.Logger, reports *metrics.Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports.Inc()
		stats, err := report.DailyStats(r.Context(), cfg, reportParams(r))
		if err != nil {
			writeReportError(w, logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func handleReportFacts(cfg report.Config, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := report.DailyStats(r.Context(), cfg, reportParams(r))
		if err != nil {
			writeReportError(w, logger, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, report.FactLines(stats))
	}
}
