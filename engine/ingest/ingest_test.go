package ingest

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rishikeshs/trashbot/engine/domain"
	"github.com/rishikeshs/trashbot/engine/metastore"
	"github.com/rishikeshs/trashbot/engine/semantic"
)

type mockEmbedder struct {
	failOn string // chunk text that triggers an error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return nil, fmt.Errorf("boom")
	}
	// Non-unit vector so normalization is observable.
	return []float32{3, 4}, nil
}

type mockVectorWriter struct {
	upserts [][]semantic.SlotVector
	err     error
}

func (m *mockVectorWriter) Upsert(_ context.Context, vs []semantic.SlotVector) error {
	if m.err != nil {
		return m.err
	}
	m.upserts = append(m.upserts, vs)
	return nil
}

type mockMetaWriter struct {
	inserts [][]metastore.ChunkDoc
}

func (m *mockMetaWriter) Insert(_ context.Context, docs []metastore.ChunkDoc) error {
	m.inserts = append(m.inserts, docs)
	return nil
}

func testDeps(e *mockEmbedder, v *mockVectorWriter, mw *mockMetaWriter) Deps {
	return Deps{Embedder: e, Vectors: v, Meta: mw}
}

func TestBuild_SlotsFollowAppendOrder(t *testing.T) {
	v := &mockVectorWriter{}
	mw := &mockMetaWriter{}
	records := []domain.Record{
		{ID: "r1", Text: strings.Repeat("a", 8)},
		{ID: "r2", Text: "bbb"},
	}

	count, err := Build(context.Background(), testDeps(&mockEmbedder{}, v, mw), records, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 chunks, got %d", count)
	}

	if len(v.upserts) != 1 || len(mw.inserts) != 1 {
		t.Fatalf("expected one batch per store, got %d vector, %d meta", len(v.upserts), len(mw.inserts))
	}
	docs := mw.inserts[0]
	wantIDs := []string{"r1-0", "r1-1", "r2-0"}
	for i, d := range docs {
		if d.VectorSlot != int64(i) {
			t.Errorf("doc %d slot = %d, want %d", i, d.VectorSlot, i)
		}
		if d.ChunkID != wantIDs[i] {
			t.Errorf("doc %d chunk id = %q, want %q", i, d.ChunkID, wantIDs[i])
		}
	}
	for i, sv := range v.upserts[0] {
		if sv.Slot != int64(i) {
			t.Errorf("vector %d slot = %d, want %d", i, sv.Slot, i)
		}
	}
}

func TestBuild_VectorsNormalized(t *testing.T) {
	v := &mockVectorWriter{}
	mw := &mockMetaWriter{}
	records := []domain.Record{{ID: "r1", Text: "hello"}}

	if _, err := Build(context.Background(), testDeps(&mockEmbedder{}, v, mw), records, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vec := v.upserts[0][0].Values
	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if math.Abs(norm-1) > 1e-6 {
		t.Errorf("expected unit vector, norm = %v", norm)
	}
}

func TestBuild_EmbedFailureWritesNothing(t *testing.T) {
	v := &mockVectorWriter{}
	mw := &mockMetaWriter{}
	records := []domain.Record{
		{ID: "r1", Text: "fine"},
		{ID: "r2", Text: "poison"},
	}

	_, err := Build(context.Background(), testDeps(&mockEmbedder{failOn: "poison"}, v, mw), records, 500)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "ingest: embed chunk r2-0") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(v.upserts) != 0 {
		t.Error("vectors were written after an embed failure")
	}
	if len(mw.inserts) != 0 {
		t.Error("metadata was written after an embed failure")
	}
}

func TestBuild_VectorWriteFailureSkipsMetadata(t *testing.T) {
	v := &mockVectorWriter{err: fmt.Errorf("qdrant down")}
	mw := &mockMetaWriter{}
	records := []domain.Record{{ID: "r1", Text: "x"}}

	_, err := Build(context.Background(), testDeps(&mockEmbedder{}, v, mw), records, 500)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(mw.inserts) != 0 {
		t.Error("metadata must not be written when the vector upsert fails")
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	e := &mockEmbedder{}
	count, err := Build(context.Background(), testDeps(e, &mockVectorWriter{}, &mockMetaWriter{}), nil, 500)
	if err != nil {
		t.Fatalf("empty input must be valid: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 chunks, got %d", count)
	}
	if e.calls != 0 {
		t.Errorf("embedder called %d times for empty input", e.calls)
	}
}
