// Package extract turns raw document text into candidate insight nodes
// and proposed relations. The LLM path is primary; a keyword heuristic
// covers provider outages. Output of this package is untrusted until it
// passes the graph package's dedup and validation.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brandkit/insightgraph/graph"
)

// maxSummaryLen caps node summaries.
const maxSummaryLen = 200

// CandidateNode is one proposed insight from extraction. Text and
// NodeType are required; everything else is optional.
type CandidateNode struct {
	NodeType    string  `json:"node_type"`
	Text        string  `json:"text"`
	Summary     string  `json:"summary,omitempty"`
	Segment     string  `json:"segment,omitempty"`
	SourceQuote string  `json:"source_quote,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// UnmarshalJSON decodes a candidate with confidence defaulting to 0.5
// when the field is absent. An explicit 0 survives, so the lowest-
// confidence insights stay visible in review instead of being silently
// boosted.
func (c *CandidateNode) UnmarshalJSON(data []byte) error {
	type plain CandidateNode
	p := plain{Confidence: 0.5}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = CandidateNode(p)
	return nil
}

// Validate rejects structurally invalid candidates and normalizes the
// rest: confidence clamped to [0,1], summary truncated to the storage
// cap.
func (c *CandidateNode) Validate() error {
	c.Text = strings.TrimSpace(c.Text)
	if c.Text == "" {
		return errors.New("candidate node: empty text")
	}
	c.NodeType = strings.TrimSpace(strings.ToLower(c.NodeType))
	if !graph.ValidNodeType(c.NodeType) {
		return fmt.Errorf("candidate node: unknown node type %q", c.NodeType)
	}
	c.Confidence = graph.Clamp01(c.Confidence)
	if len(c.Summary) > maxSummaryLen {
		c.Summary = c.Summary[:maxSummaryLen]
	}
	return nil
}

// CandidateRelation is one proposed edge between two node ids. The ids
// may reference existing or newly-inserted nodes; existence is checked
// later by the relation validator, not here.
type CandidateRelation struct {
	FromNodeID          string  `json:"from_node_id"`
	ToNodeID            string  `json:"to_node_id"`
	RelationType        string  `json:"relation_type"`
	Strength            float64 `json:"strength"`
	Context             string  `json:"context,omitempty"`
	RecommendedApproach string  `json:"recommended_approach,omitempty"`
}

// Validate rejects structurally invalid proposals: missing endpoints,
// unknown relation type. Strength is clamped to [0,1].
func (c *CandidateRelation) Validate() error {
	c.FromNodeID = strings.TrimSpace(c.FromNodeID)
	c.ToNodeID = strings.TrimSpace(c.ToNodeID)
	if c.FromNodeID == "" || c.ToNodeID == "" {
		return errors.New("candidate relation: missing endpoint id")
	}
	c.RelationType = strings.TrimSpace(strings.ToLower(c.RelationType))
	if !graph.ValidRelationType(c.RelationType) {
		return fmt.Errorf("candidate relation: unknown relation type %q", c.RelationType)
	}
	c.Strength = graph.Clamp01(c.Strength)
	return nil
}
