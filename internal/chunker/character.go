package chunker

import (
	"strconv"
	"strings"

	"ragqa/internal/domain"
)

// CharacterChunker splits text into fixed-size character windows with
// overlap, preferring to break at whitespace near the window boundary.
type CharacterChunker struct {
	chunkSize    int
	chunkOverlap int
}

func NewCharacterChunker(chunkSize, chunkOverlap int) *CharacterChunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &CharacterChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

func (c *CharacterChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	runes := []rune(strings.TrimSpace(document.Content))
	if len(runes) == 0 {
		return nil, nil
	}
	var chunks []domain.Chunk
	idx := 0
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = backUpToWhitespace(runes, start, end)
		}
		text := strings.TrimSpace(string(runes[start:end]))
		if text != "" {
			chunks = append(chunks, domain.Chunk{
				DocumentID: document.ID,
				ChunkID:    document.ID + ":" + strconv.Itoa(idx),
				Source:     document.Path,
				Text:       text,
				Index:      idx,
			})
			idx++
		}
		if end == len(runes) {
			break
		}
		// The whitespace backoff can shrink the window below the overlap;
		// never let the next window start at or before the current one.
		next := end - c.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks, nil
}

// backUpToWhitespace moves the window end left to the nearest whitespace so
// words are not cut mid-run, scanning at most a quarter of the window.
func backUpToWhitespace(runes []rune, start, end int) int {
	limit := end - (end-start)/4
	for i := end; i > limit; i-- {
		if isSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
