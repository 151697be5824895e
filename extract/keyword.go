package extract

import (
	"context"
	"strings"

	"github.com/brandkit/insightgraph/graph"
)

// keywordRule maps trigger keywords to the node type a sentence most
// likely belongs to. First matching rule wins, so more specific
// vocabularies come before broader ones.
type keywordRule struct {
	nodeType string
	keywords []string
}

var keywordRules = []keywordRule{
	{graph.NodePatientTension, []string{"fear", "afraid", "worry", "worried", "anxiety", "anxious", "barrier", "hesitant", "reluctant"}},
	{graph.NodeUnmetNeed, []string{"unmet need", "no option", "lack of", "gap in", "still need", "underserved"}},
	{graph.NodeProofPoint, []string{"study", "trial", "%", "percent", "demonstrated", "showed", "evidence", "data show"}},
	{graph.NodeEpidemiology, []string{"prevalence", "incidence", "diagnosed", "affects", "population", "patients worldwide"}},
	{graph.NodeClinicalConcern, []string{"safety", "adverse", "side effect", "interaction", "contraindication", "tolerability"}},
	{graph.NodeMarketBarrier, []string{"coverage", "reimbursement", "prior authorization", "formulary", "cost", "access"}},
	{graph.NodeCompetitorPosition, []string{"competitor", "rival", "market leader", "versus", "compared to"}},
	{graph.NodePrescribingDriver, []string{"prescribe", "prescribing", "clinician", "physician preference", "hcp"}},
	{graph.NodePatientMotivation, []string{"motivat", "goal", "wants to", "hopes to", "desire"}},
	{graph.NodePatientBelief, []string{"believe", "belief", "perceive", "perception", "thinks that"}},
	{graph.NodeJourneyInsight, []string{"journey", "diagnosis path", "referral", "onboarding", "first visit"}},
	{graph.NodeDifferentiator, []string{"only", "unique", "first-in-class", "unlike", "differentiat"}},
	{graph.NodeKeyMessage, []string{"message", "communicate", "positioning", "promise"}},
}

// keywordConfidence marks heuristic extractions as low confidence so
// they are visibly distinct from LLM output in review.
const keywordConfidence = 0.4

// KeywordExtractor is the deterministic fallback used when the chat
// provider is unavailable. It scans sentences for type-indicative
// keywords; quality is rough but extraction never hard-fails.
type KeywordExtractor struct{}

func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{}
}

func (e *KeywordExtractor) Extract(ctx context.Context, text, docType string) ([]CandidateNode, error) {
	var out []CandidateNode
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, rule := range keywordRules {
			if !matchesAny(lower, rule.keywords) {
				continue
			}
			c := CandidateNode{
				NodeType:    rule.nodeType,
				Text:        sentence,
				SourceQuote: sentence,
				Confidence:  keywordConfidence,
			}
			if err := c.Validate(); err == nil {
				out = append(out, c)
			}
			break
		}
	}
	return out, nil
}

func matchesAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// splitSentences breaks text on sentence-ending punctuation and
// newlines, dropping fragments too short to be an insight.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})

	var sentences []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) < 20 {
			continue
		}
		sentences = append(sentences, p)
	}
	return sentences
}
