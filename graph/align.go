package graph

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/brandkit/insightgraph/store"
)

// Alignment scoring constants. Generated text rarely echoes node ids,
// so matching is tiered: an explicit bracketed short-id is certain, a
// verbatim key phrase is near-certain, scattered keyword co-occurrence
// degrades with fewer hits.
const (
	citationFloor     = 0.6
	phraseScore       = 0.9
	shortIDScore      = 1.0
	maxCitations      = 10
	keyPhraseWords    = 5
	scatterWords      = 8
	scatterMinMatches = 3
)

// Citation attributes a span of generated text to a graph node.
type Citation struct {
	NodeID   string  `json:"node_id"`
	NodeType string  `json:"node_type"`
	Text     string  `json:"text"`
	Segment  string  `json:"segment,omitempty"`
	Score    float64 `json:"score"`
}

// AlignmentResult is the outcome of matching generated text against a
// brand's graph. AlignmentScore is nil when the brand has no relevant
// nodes to compare against.
type AlignmentResult struct {
	Citations      []Citation `json:"citations"`
	AlignmentScore *int       `json:"alignment_score"`
}

// Aligner matches free-form generated text against graph nodes.
type Aligner struct {
	store *store.Store
}

func NewAligner(s *store.Store) *Aligner {
	return &Aligner{store: s}
}

// Match scores every node of the brand against the generated text and
// returns the citations at or above the floor, best first, capped.
// The alignment score measures how much of the documented research
// (key messages and patient tensions) the text visibly reflects.
func (a *Aligner) Match(ctx context.Context, brandID, generatedText string) (*AlignmentResult, error) {
	nodes, err := a.store.ListNodes(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}

	lowerText := strings.ToLower(generatedText)

	var citations []Citation
	relevant := 0
	for _, n := range nodes {
		if n.NodeType == NodeKeyMessage || n.NodeType == NodePatientTension {
			relevant++
		}
		score := matchNode(lowerText, generatedText, n)
		if score < citationFloor {
			continue
		}
		citations = append(citations, Citation{
			NodeID:   n.ID,
			NodeType: n.NodeType,
			Text:     n.Text,
			Segment:  n.Segment,
			Score:    score,
		})
	}

	sort.SliceStable(citations, func(i, j int) bool {
		return citations[i].Score > citations[j].Score
	})
	if len(citations) > maxCitations {
		citations = citations[:maxCitations]
	}

	result := &AlignmentResult{Citations: citations}
	if relevant > 0 {
		expected := math.Max(2, 0.3*float64(relevant))
		score := int(math.Round(math.Min(1.0, float64(len(citations))/expected) * 100))
		result.AlignmentScore = &score
	}
	return result, nil
}

// matchNode evaluates the three tiers against one node and returns the
// best score, zero when nothing matched.
func matchNode(lowerText, rawText string, n store.Node) float64 {
	best := 0.0

	// Explicit bracketed short-id, 8-char or 6-char truncation.
	for _, length := range []int{8, 6} {
		if len(n.ID) >= length && strings.Contains(rawText, "["+n.ID[:length]+"]") {
			return shortIDScore
		}
	}

	words := significantWords(n.Text)

	// Verbatim key phrase.
	if len(words) > 0 {
		phrase := strings.Join(firstN(words, keyPhraseWords), " ")
		if strings.Contains(lowerText, phrase) {
			best = phraseScore
		}
	}

	// Scattered keyword co-occurrence.
	matched := 0
	for _, w := range firstN(words, scatterWords) {
		if strings.Contains(lowerText, w) {
			matched++
		}
	}
	if matched >= scatterMinMatches {
		score := 0.6 + 0.1*math.Min(float64(matched-scatterMinMatches), 3)
		if score > best {
			best = score
		}
	}

	return best
}

// significantWords returns the node's lowercase words longer than three
// characters, in order.
func significantWords(text string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

func firstN(words []string, n int) []string {
	if len(words) > n {
		return words[:n]
	}
	return words
}
