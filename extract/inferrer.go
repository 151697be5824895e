package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/brandkit/insightgraph/llm"
	"github.com/brandkit/insightgraph/store"
)

// relationInferencePrompt asks the LLM to connect newly-extracted
// insights to the brand's existing graph. The node sets are fixed, so
// the model only has to find edges.
const relationInferencePrompt = `You are a relationship inference engine for a pharmaceutical brand knowledge graph.
Given the brand's existing insights and a batch of newly-added insights, propose relationships between them.

EXISTING INSIGHTS:
%s

NEW INSIGHTS:
%s

RELATION TYPES (use exactly these values):
- addresses      : source message or claim addresses target need or tension
- supports       : source evidence supports target claim
- contradicts    : source conflicts with target
- triggers       : source causes or prompts target
- influences     : source shapes or affects target
- resonates_with : source aligns emotionally with target

Return a JSON object with exactly one key:
  "relationships" : array of {"from_node_id": string, "to_node_id": string, "relation_type": string, "strength": number, "context": string, "recommended_approach": string}

Rules:
- from_node_id and to_node_id must be ids from the insight lists above.
- At least one endpoint of each relationship must be a NEW insight.
- Strength is a float between 0.0 and 1.0 indicating confidence.
- "context" briefly explains the connection.
- "recommended_approach" applies only to contradicts, and must be one of: educate_with_evidence, validate_then_redirect, counter_with_testimonials, build_credibility_first. Leave empty otherwise.
- Only include relationships clearly supported by the insight texts.
- If there are none, return an empty array.
- Do NOT include any text outside the JSON object.`

// Inferrer proposes candidate relations between nodes.
type Inferrer interface {
	Infer(ctx context.Context, existing, added []store.Node) ([]CandidateRelation, error)
}

// LLMInferrer infers relations with a chat model. Like the extractor,
// malformed output degrades to an empty proposal list.
type LLMInferrer struct {
	chat llm.Provider
}

func NewLLMInferrer(chat llm.Provider) *LLMInferrer {
	return &LLMInferrer{chat: chat}
}

// nodeDigest is the compact node shape shown to the model.
type nodeDigest struct {
	ID       string `json:"id"`
	NodeType string `json:"node_type"`
	Text     string `json:"text"`
	Segment  string `json:"segment,omitempty"`
}

func digests(nodes []store.Node) []nodeDigest {
	out := make([]nodeDigest, len(nodes))
	for i, n := range nodes {
		out[i] = nodeDigest{ID: n.ID, NodeType: n.NodeType, Text: n.Text, Segment: n.Segment}
	}
	return out
}

type relationResult struct {
	Relationships []CandidateRelation `json:"relationships"`
}

func (r *LLMInferrer) Infer(ctx context.Context, existing, added []store.Node) ([]CandidateRelation, error) {
	if len(added) == 0 || len(existing)+len(added) < 2 {
		return nil, nil
	}

	existingJSON, _ := json.Marshal(digests(existing))
	addedJSON, _ := json.Marshal(digests(added))
	prompt := fmt.Sprintf(relationInferencePrompt, string(existingJSON), string(addedJSON))

	resp, err := r.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
		Temperature:    0.0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, fmt.Errorf("relation inference llm chat: %w", err)
	}

	jsonStr, err := extractJSON(resp.Content)
	if err != nil {
		slog.Warn("relation inference returned no parsable JSON, treating as empty", "error", err)
		return nil, nil
	}

	var result relationResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		slog.Warn("relation inference JSON did not match expected shape, treating as empty", "error", err)
		return nil, nil
	}

	out := make([]CandidateRelation, 0, len(result.Relationships))
	for _, c := range result.Relationships {
		if err := c.Validate(); err != nil {
			slog.Debug("dropping invalid relation proposal", "error", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
