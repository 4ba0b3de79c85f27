// Package ingest builds the retrieval index: it chunks source records,
// embeds and L2-normalizes every chunk, and writes vectors and metadata in
// lockstep, with the vector's append-order slot as the join key between the
// two stores.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rishikeshs/trashbot/engine/domain"
	"github.com/rishikeshs/trashbot/engine/metastore"
	"github.com/rishikeshs/trashbot/engine/semantic"
	"github.com/rishikeshs/trashbot/pkg/fn"
	"github.com/rishikeshs/trashbot/pkg/vecmath"
)

// Embedder produces a fixed-dimension embedding for one text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorWriter appends slot-keyed vectors to the index.
type VectorWriter interface {
	Upsert(ctx context.Context, vectors []semantic.SlotVector) error
}

// MetaWriter stores chunk metadata documents.
type MetaWriter interface {
	Insert(ctx context.Context, docs []metastore.ChunkDoc) error
}

// Deps holds the external dependencies for the index build.
type Deps struct {
	Embedder Embedder
	Vectors  VectorWriter
	Meta     MetaWriter
	Logger   *slog.Logger
}

// embeddedChunks pairs chunks with their normalized vectors, in order.
type embeddedChunks struct {
	chunks  []domain.Chunk
	vectors [][]float32
}

// newEmbedStage embeds every chunk and normalizes in place. Any failure
// aborts the whole build: the index is never written partially.
func newEmbedStage(embedder Embedder) fn.Stage[[]domain.Chunk, embeddedChunks] {
	return func(ctx context.Context, chunks []domain.Chunk) fn.Result[embeddedChunks] {
		vectors := make([][]float32, len(chunks))
		for i, c := range chunks {
			vec, err := embedder.Embed(ctx, c.Text)
			if err != nil {
				return fn.Err[embeddedChunks](fmt.Errorf("ingest: embed chunk %s: %w", c.ID, err))
			}
			vecmath.NormalizeL2(vec)
			vectors[i] = vec
		}
		return fn.Ok(embeddedChunks{chunks: chunks, vectors: vectors})
	}
}

// newStoreStage writes vectors and metadata. The slot is the chunk's
// position in the embedded sequence; both stores record it so the
// correspondence is exact and stable.
func newStoreStage(vectors VectorWriter, meta MetaWriter) fn.Stage[embeddedChunks, int] {
	return func(ctx context.Context, ec embeddedChunks) fn.Result[int] {
		slotVectors := make([]semantic.SlotVector, len(ec.chunks))
		docs := make([]metastore.ChunkDoc, len(ec.chunks))
		for i, c := range ec.chunks {
			slot := int64(i)
			slotVectors[i] = semantic.SlotVector{Slot: slot, Values: ec.vectors[i]}
			docs[i] = metastore.ChunkDoc{VectorSlot: slot, ChunkID: c.ID, Text: c.Text}
		}
		if err := vectors.Upsert(ctx, slotVectors); err != nil {
			return fn.Err[int](fmt.Errorf("ingest: vector upsert: %w", err))
		}
		if err := meta.Insert(ctx, docs); err != nil {
			return fn.Err[int](fmt.Errorf("ingest: metadata insert: %w", err))
		}
		return fn.Ok(len(ec.chunks))
	}
}

// loggedTap returns a stage that logs entry with timing on exit.
func loggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline composes chunk → embed → store. The pipeline returns the
// number of chunks indexed; zero for empty input is a valid, empty index.
func NewPipeline(deps Deps, chunkSize int) fn.Stage[[]domain.Record, int] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	chunk := fn.MapStage(func(records []domain.Record) []domain.Chunk {
		return ChunkRecords(records, chunkSize)
	})
	embed := fn.TracedStage("ingest.embed", newEmbedStage(deps.Embedder))
	store := fn.TracedStage("ingest.store", newStoreStage(deps.Vectors, deps.Meta))

	chunked := fn.Then(loggedTap[[]domain.Record]("chunk", log), chunk)
	embedded := fn.Then(chunked, fn.Then(loggedTap[[]domain.Chunk]("embed", log), embed))
	return fn.Then(embedded, fn.Then(loggedTap[embeddedChunks]("store", log), store))
}

// Build runs the full pipeline over the given records.
func Build(ctx context.Context, deps Deps, records []domain.Record, chunkSize int) (int, error) {
	return NewPipeline(deps, chunkSize)(ctx, records).Unwrap()
}
