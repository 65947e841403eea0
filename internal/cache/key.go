package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultKeyPrefix namespaces answer keys on backends shared with other data.
const DefaultKeyPrefix = "rag:answer:"

// KeySnapshot captures the configuration fields that affect an answer.
// Changing any of them must change the derived key, since a cached answer
// produced under a different model or retrieval setting is stale.
type KeySnapshot struct {
	EmbeddingModel      string
	GenerationModel     string
	TopK                int
	SimilarityThreshold float64
}

// KeyDeriver turns a query plus a config snapshot into a stable cache key.
// Queries that normalize to the same string share a key on purpose: a false
// hit returns an answer already given for the same question, while a false
// miss only costs a pipeline run.
type KeyDeriver struct {
	prefix string
}

// NewKeyDeriver creates a deriver with the given namespace prefix.
// An empty prefix falls back to DefaultKeyPrefix.
func NewKeyDeriver(prefix string) *KeyDeriver {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &KeyDeriver{prefix: prefix}
}

// Derive returns the cache key for a query under the given snapshot.
// The key is deterministic: identical inputs always produce identical keys.
func (d *KeyDeriver) Derive(query string, snap KeySnapshot) string {
	var b strings.Builder
	b.WriteString(normalizeQuery(query))
	b.WriteString("|emb=")
	b.WriteString(snap.EmbeddingModel)
	b.WriteString("|gen=")
	b.WriteString(snap.GenerationModel)
	b.WriteString("|k=")
	b.WriteString(strconv.Itoa(snap.TopK))
	b.WriteString("|threshold=")
	b.WriteString(strconv.FormatFloat(snap.SimilarityThreshold, 'g', -1, 64))
	sum := xxhash.Sum64String(b.String())
	return d.prefix + strconv.FormatUint(sum, 16)
}

// normalizeQuery removes the cosmetic differences that would otherwise split
// near-duplicate questions into distinct keys: surrounding whitespace, case,
// and runs of internal whitespace.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
