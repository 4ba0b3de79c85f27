package ingest

import (
	"strings"
	"testing"

	"github.com/rishikeshs/trashbot/engine/domain"
)

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	chunks := SplitText("  hello world  ", 500)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "hello world" {
		t.Errorf("expected trimmed input back, got %q", chunks[0])
	}
}

func TestSplitText_EmptyAndWhitespace(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t"} {
		if got := SplitText(in, 500); got != nil {
			t.Errorf("SplitText(%q) = %v, want nil", in, got)
		}
	}
}

func TestSplitText_ExactBoundaries(t *testing.T) {
	const maxLen = 100
	text := strings.Repeat("a", 3*maxLen-10)

	chunks := SplitText(text, maxLen)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantLens := []int{maxLen, maxLen, maxLen - 10}
	for i, c := range chunks {
		if len([]rune(c)) != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, len([]rune(c)), wantLens[i])
		}
	}
	if strings.Join(chunks, "") != text {
		t.Error("chunks do not reassemble to the input")
	}
}

func TestSplitText_CountsRunesNotBytes(t *testing.T) {
	// 10 multibyte runes, maxLen 4 runes.
	text := strings.Repeat("ай", 5)
	chunks := SplitText(text, 4)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	if got := len([]rune(chunks[0])); got != 4 {
		t.Errorf("first chunk rune length = %d, want 4", got)
	}
	if got := len([]rune(chunks[2])); got != 2 {
		t.Errorf("last chunk rune length = %d, want 2", got)
	}
}

func TestSplitText_AtLimitIsOneChunk(t *testing.T) {
	text := strings.Repeat("x", 500)
	chunks := SplitText(text, 500)
	if len(chunks) != 1 || chunks[0] != text {
		t.Fatalf("text at the limit must stay one chunk, got %d", len(chunks))
	}
}

func TestChunkRecords_IDs(t *testing.T) {
	records := []domain.Record{
		{ID: "7", Text: strings.Repeat("a", 12)},
		{ID: "8", Text: "short"},
		{ID: "9", Text: "   "},
	}

	chunks := ChunkRecords(records, 5)
	wantIDs := []string{"7-0", "7-1", "7-2", "8-0"}
	if len(chunks) != len(wantIDs) {
		t.Fatalf("expected %d chunks, got %d", len(wantIDs), len(chunks))
	}
	for i, want := range wantIDs {
		if chunks[i].ID != want {
			t.Errorf("chunk %d ID = %q, want %q", i, chunks[i].ID, want)
		}
	}
}
