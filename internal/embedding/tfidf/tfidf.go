// Package tfidf provides a dependency-free embedder for corpora where no
// external embedding model is configured. Vectors are L2-normalized TF-IDF
// weights over a vocabulary built at ingestion time.
package tfidf

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// Embedder vectorizes text against a corpus vocabulary. Prepare must run
// before Embed; the vocabulary and IDF table are fixed after that.
type Embedder struct {
	termIndex map[string]int
	idf       []float64
	stopwords map[string]struct{}
	prepared  bool
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{
		termIndex: map[string]int{},
		stopwords: stopwordSet(),
	}
}

func (e *Embedder) Name() string { return "tfidf" }

// Dimension is the vocabulary size, zero before Prepare.
func (e *Embedder) Dimension() int { return len(e.idf) }

// Prepare builds the vocabulary and smoothed IDF table from the corpus.
// Term order is lexicographic so the same corpus always yields the same
// vector layout.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("tfidf: empty corpus")
	}
	docFreq := map[string]int{}
	for _, text := range corpus {
		for term := range e.termSet(text) {
			docFreq[term]++
		}
	}
	if len(docFreq) == 0 {
		return errors.New("tfidf: corpus produced no tokens")
	}
	terms := make([]string, 0, len(docFreq))
	for term := range docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	e.termIndex = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		e.termIndex[term] = i
		e.idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	e.prepared = true
	return nil
}

// Embed computes the normalized TF-IDF vector for text. Text made entirely
// of unknown or stop words embeds to the zero vector; callers treat that as
// "no signal", not as an error.
func (e *Embedder) Embed(text string) ([]float64, error) {
	if !e.prepared {
		return nil, errors.New("tfidf: embedder not prepared")
	}
	vec := make([]float64, len(e.idf))
	counts := map[int]int{}
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.termIndex[tok]; ok {
			counts[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range counts {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	normalize(vec)
	return vec, nil
}

func (e *Embedder) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := e.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (e *Embedder) termSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, t := range e.tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}

func normalize(vec []float64) {
	sum := 0.0
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] /= norm
	}
}

// stopwordSet covers English and Brazilian Portuguese, the languages the
// bundled corpora are written in.
func stopwordSet() map[string]struct{} {
	words := []string{
		// English
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are",
		"was", "were", "be", "been", "being", "it", "this", "that", "these",
		"those", "from", "not", "no", "so", "such", "into", "about", "than",
		"too", "very", "can", "will", "just", "should", "now",
		// Portuguese
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
