// Package summarizer produces the corpus summary shown after ingestion.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// FrequencySummarizer extracts the highest-signal sentences by normalized
// token frequency, length-penalized so long sentences do not win by default.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: stopwordSet()}
}

// Summarize returns up to maxSentences sentences of text, in their original
// order. Text with no sentence punctuation comes back trimmed and whole.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	freq := s.tokenFrequencies(sentences)

	type ranked struct {
		idx   int
		score float64
	}
	scores := make([]ranked, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
		}
		if n := float64(len(toks)); n > 0 {
			score /= math.Sqrt(n)
		}
		scores[i] = ranked{i, score}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, strings.TrimSpace(sentences[idx]))
	}
	return strings.Join(out, " "), nil
}

// tokenFrequencies counts non-stopword tokens across all sentences and
// normalizes by the most frequent one.
func (s *FrequencySummarizer) tokenFrequencies(sentences []string) map[string]float64 {
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k := range freq {
			freq[k] /= maxF
		}
	}
	return freq
}

func (s *FrequencySummarizer) tokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := s.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// stopwordSet mirrors the embedder's list: English plus Brazilian Portuguese.
func stopwordSet() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are",
		"was", "were", "be", "been", "being", "it", "this", "that", "these",
		"those", "from", "not", "no", "so", "such", "into", "about", "than",
		"too", "very", "can", "will", "just", "should", "now",
		"o", "os", "um", "uma", "uns", "umas", "de", "do", "da", "dos",
		"das", "em", "no", "na", "nos", "nas", "por", "para", "com", "sem",
		"que", "e", "ou", "mas", "se", "ao", "aos", "à", "às", "é", "são",
		"foi", "ser", "está", "estão", "como", "mais", "menos", "muito",
		"já", "também", "não", "sim", "sua", "seu", "suas", "seus", "ele",
		"ela", "eles", "elas", "isso", "isto", "aquilo",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
