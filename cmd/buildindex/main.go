// Command buildindex constructs the retrieval index from a CSV export or a
// SQL query: chunks the source text, embeds every chunk, and writes vectors
// and metadata in lockstep. Rebuilds are full: both stores are cleared
// first so vector slots never collide with a previous build.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/rishikeshs/trashbot/engine/domain"
	"github.com/rishikeshs/trashbot/engine/ingest"
	"github.com/rishikeshs/trashbot/engine/metastore"
	"github.com/rishikeshs/trashbot/engine/semantic"
	"github.com/rishikeshs/trashbot/pkg/ollama"
)

func main() {
	_ = godotenv.Load()

	var (
		csvPath    = flag.String("csv", "", "path to a CSV source file")
		textColumn = flag.String("text-column", "text", "text column name in the CSV")
		sqlQuery   = flag.String("sql", "", "SQL query returning id and text columns")
		connString = flag.String("conn", "", "SQL Server connection string for -sql")
		idColumn   = flag.String("id-column", "id", "id column name for -sql")
		chunkSize  = flag.Int("chunk-size", ingest.DefaultChunkSize, "max chunk length in characters")

		ollamaURL  = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		embedModel = flag.String("model", envOr("EMBED_MODEL", "all-minilm"), "embedding model name")

		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "chatbot_chunks"), "Qdrant collection name")
		mongoURI   = flag.String("mongo", envOr("MONGO_URI", "mongodb://localhost:27017"), "MongoDB URI")
		mongoDB    = flag.String("mongo-db", envOr("MONGO_DB", "vehicle_attendance"), "MongoDB database name")
		mongoColl  = flag.String("mongo-collection", envOr("MONGO_COLLECTION", "chatbot_docs"), "MongoDB collection name")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if *csvPath == "" && (*sqlQuery == "" || *connString == "") {
		fmt.Fprintln(os.Stderr, "provide -csv or both -sql and -conn")
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	var (
		records []domain.Record
		err     error
	)
	if *csvPath != "" {
		records, err = ingest.LoadCSV(*csvPath, *textColumn)
	} else {
		records, err = ingest.LoadSQL(ctx, *connString, *sqlQuery, *idColumn, *textColumn)
	}
	if err != nil {
		log.Error("load source failed", "error", err)
		os.Exit(1)
	}
	log.Info("source loaded", "records", len(records))

	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()

	ms, err := metastore.New(ctx, *mongoURI, *mongoDB, *mongoColl)
	if err != nil {
		log.Error("mongo connect failed", "error", err)
		os.Exit(1)
	}
	defer ms.Close(context.Background())

	// Full rebuild: clear both stores together so slots stay in lockstep.
	if err := vs.DeleteCollection(ctx); err != nil {
		log.Warn("delete collection", "error", err)
	}
	if err := vs.EnsureCollection(ctx, semantic.Dims); err != nil {
		log.Error("ensure collection failed", "error", err)
		os.Exit(1)
	}
	if err := ms.Drop(ctx); err != nil {
		log.Error("drop metadata failed", "error", err)
		os.Exit(1)
	}

	deps := ingest.Deps{
		Embedder: ollama.NewEmbedClient(*ollamaURL, *embedModel),
		Vectors:  vs,
		Meta:     ms,
		Logger:   log,
	}

	start := time.Now()
	count, err := ingest.Build(ctx, deps, records, *chunkSize)
	if err != nil {
		log.Error("index build failed", "error", err)
		os.Exit(1)
	}
	log.Info("index built", "chunks", count, "collection", *collection, "duration", time.Since(start))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
