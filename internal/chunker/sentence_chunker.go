// Package chunker splits documents into retrieval-sized chunks.
package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"ragqa/internal/domain"
)

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// SentenceChunker groups consecutive sentences into chunks, with a fixed
// number of sentences carried over between neighbors for context.
type SentenceChunker struct {
	perChunk int
	overlap  int
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	// Overlap must leave at least one new sentence per chunk or the window
	// never advances.
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{perChunk: sentencesPerChunk, overlap: overlapSentences}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	sentences := splitSentences(document.Content)
	if len(sentences) == 0 {
		return nil, nil
	}
	var chunks []domain.Chunk
	for start, idx := 0, 0; start < len(sentences); idx++ {
		end := start + c.perChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Source:     document.Path,
			Text:       strings.Join(sentences[start:end], " "),
			Index:      idx,
		})
		if end == len(sentences) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks, nil
}

// splitSentences breaks text on terminal punctuation. Text with none of it
// comes back as a single trimmed sentence.
func splitSentences(text string) []string {
	sentences := sentenceSplitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	return sentences
}
