// Package similarity scores textual similarity between insight statements,
// semantic-first with a lexical fallback. It is the one shared tool behind
// extraction-time reuse, the duplicate review queue, and auto-merge; only
// the thresholds differ per caller.
package similarity

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/brandkit/insightgraph/llm"
)

// Matcher computes similarity scores in [0, 1] between two texts.
// When an embedding provider is configured, it uses cosine similarity of
// cached embeddings; when the provider is missing, fails, or returns
// nothing, it degrades to Jaccard word overlap. Similarity never fails.
type Matcher struct {
	embed llm.Provider // nil = lexical only
	cache *embeddingCache
}

// New creates a Matcher. embed may be nil to force lexical matching;
// cacheCapacity <= 0 selects the default capacity.
func New(embed llm.Provider, cacheCapacity int) *Matcher {
	return &Matcher{
		embed: embed,
		cache: newEmbeddingCache(cacheCapacity),
	}
}

// Similarity scores two texts. Returns 0 when either input is empty.
func (m *Matcher) Similarity(ctx context.Context, a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}

	va := m.Embedding(ctx, a)
	vb := m.Embedding(ctx, b)
	if va != nil && vb != nil {
		return cosine(va, vb)
	}

	return Jaccard(a, b)
}

// Embedding returns the embedding for a text, consulting the bounded
// cache first. Returns nil when no provider is configured or the call
// fails; callers treat nil as "use the lexical path".
func (m *Matcher) Embedding(ctx context.Context, text string) []float32 {
	if m.embed == nil {
		return nil
	}

	key := cacheKey(text)
	if vec, ok := m.cache.get(key); ok {
		return vec
	}

	vecs, err := m.embed.Embed(ctx, []string{text})
	if err != nil {
		slog.Debug("similarity: embedding unavailable, using lexical fallback", "error", err)
		return nil
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil
	}

	m.cache.put(key, vecs[0])
	return vecs[0]
}

// cosine computes cosine similarity clamped to [0, 1].
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	score := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Jaccard computes word-set overlap between two texts, lowercased and
// whitespace-tokenized. Exported so the keyword fallback path can be
// exercised directly in tests.
func Jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
