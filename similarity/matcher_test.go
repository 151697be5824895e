package similarity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/brandkit/insightgraph/llm"
)

// stubEmbedder returns deterministic embeddings keyed by text, or an
// error when failing is set.
type stubEmbedder struct {
	vectors map[string][]float32
	failing bool
	calls   int
}

func (s *stubEmbedder) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.failing {
		return nil, errors.New("embedding service down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, ok := s.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = vec
	}
	return out, nil
}

func TestSimilarityEmptyInputs(t *testing.T) {
	m := New(nil, 0)
	if got := m.Similarity(context.Background(), "", "anything"); got != 0 {
		t.Errorf("Similarity with empty a = %v, want 0", got)
	}
	if got := m.Similarity(context.Background(), "anything", "   "); got != 0 {
		t.Errorf("Similarity with blank b = %v, want 0", got)
	}
}

func TestSimilarityLexicalFallback(t *testing.T) {
	m := New(nil, 0)

	got := m.Similarity(context.Background(), "patients fear needle pain", "patients fear needle pain")
	if got != 1.0 {
		t.Errorf("identical texts = %v, want 1.0", got)
	}

	got = m.Similarity(context.Background(), "alpha beta gamma", "delta epsilon zeta")
	if got != 0 {
		t.Errorf("disjoint texts = %v, want 0", got)
	}

	// "patients fear needles" vs "patients fear injections": 2 shared of 4 total.
	got = m.Similarity(context.Background(), "patients fear needles", "patients fear injections")
	if got != 0.5 {
		t.Errorf("partial overlap = %v, want 0.5", got)
	}
}

func TestJaccardCaseInsensitive(t *testing.T) {
	if got := Jaccard("Needle Anxiety", "needle anxiety"); got != 1.0 {
		t.Errorf("case-folded identical = %v, want 1.0", got)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite clamped to zero", []float32{1, 0}, []float32{-1, 0}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosine(tt.a, tt.b); got != tt.want {
				t.Errorf("cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmbeddingCacheTruncatesKey(t *testing.T) {
	long := strings.Repeat("x", 500)
	key := cacheKey(long)
	if len(key) != cacheKeyLen {
		t.Errorf("key length = %d, want %d", len(key), cacheKeyLen)
	}

	c := newEmbeddingCache(8)
	c.put(key, []float32{1, 2, 3})
	if _, ok := c.get(cacheKey(long)); !ok {
		t.Error("expected hit for truncated key of same long text")
	}
}

func TestSimilaritySemanticPath(t *testing.T) {
	stub := &stubEmbedder{vectors: map[string][]float32{
		"needle anxiety": {1, 0, 0},
		"fear of shots":  {1, 0, 0},
	}}
	m := New(stub, 16)

	got := m.Similarity(context.Background(), "needle anxiety", "fear of shots")
	if got != 1.0 {
		t.Errorf("semantic similarity = %v, want 1.0", got)
	}

	// Second call for the same pair hits the cache, no extra provider calls.
	calls := stub.calls
	m.Similarity(context.Background(), "needle anxiety", "fear of shots")
	if stub.calls != calls {
		t.Errorf("provider calls = %d, want %d (cached)", stub.calls, calls)
	}
}

func TestSimilarityFallsBackWhenProviderFails(t *testing.T) {
	stub := &stubEmbedder{failing: true}
	m := New(stub, 16)

	got := m.Similarity(context.Background(), "patients fear needles", "patients fear needles")
	if got != 1.0 {
		t.Errorf("lexical fallback on failure = %v, want 1.0", got)
	}
}

func TestEmbeddingNilWithoutProvider(t *testing.T) {
	m := New(nil, 0)
	if vec := m.Embedding(context.Background(), "anything"); vec != nil {
		t.Errorf("Embedding without provider = %v, want nil", vec)
	}
}

func TestEmbeddingCacheEviction(t *testing.T) {
	c := newEmbeddingCache(2)
	c.put("a", []float32{1})
	c.put("b", []float32{2})

	// Touch "a" so "b" is the eviction candidate.
	c.get("a")
	c.put("c", []float32{3})

	if c.len() != 2 {
		t.Fatalf("cache len = %d, want 2", c.len())
	}
	if _, ok := c.get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.get("a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if _, ok := c.get("c"); !ok {
		t.Error("expected c to be present")
	}
}
