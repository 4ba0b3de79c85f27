package ingest

import (
	"fmt"
	"strings"

	"github.com/rishikeshs/trashbot/engine/domain"
)

// DefaultChunkSize is the maximum chunk length in runes.
const DefaultChunkSize = 500

// SplitText splits free text into consecutive non-overlapping maxLen-rune
// slices; the final slice may be shorter. Splitting is purely positional and
// can sever words mid-token — a deliberate simplicity tradeoff. Empty or
// whitespace-only text yields nil; text at or under maxLen yields a single
// chunk equal to the trimmed input.
func SplitText(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxLen <= 0 {
		maxLen = DefaultChunkSize
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	chunks := make([]string, 0, (len(runes)+maxLen-1)/maxLen)
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// ChunkRecords expands records into chunks. Chunk IDs are
// "<record_id>-<chunk_index>" with a zero-based index per record. Records
// with empty text yield no chunks.
func ChunkRecords(records []domain.Record, maxLen int) []domain.Chunk {
	var out []domain.Chunk
	for _, rec := range records {
		for i, text := range SplitText(rec.Text, maxLen) {
			out = append(out, domain.Chunk{
				ID:   fmt.Sprintf("%s-%d", rec.ID, i),
				Text: text,
			})
		}
	}
	return out
}
