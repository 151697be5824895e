package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/brandkit/insightgraph/llm"
)

// insightExtractionPrompt asks the LLM to pull typed insight statements
// out of a brand or clinical document. Kept to a single atomic task so
// smaller models stay reliable; relation inference is a separate call.
const insightExtractionPrompt = `You are an insight extraction engine for pharmaceutical brand and clinical documents.
Given the following document text, extract short, self-contained insight statements.

NODE TYPES (use exactly these values):
- key_message        : a core message the brand wants to communicate
- value_proposition  : the overall value the product offers
- differentiator     : what sets the product apart from alternatives
- proof_point        : a supporting fact, study result, or statistic
- epidemiology       : disease prevalence or population data
- symptom_burden     : impact of symptoms on patients' lives
- treatment_landscape: current treatment options and their gaps
- unmet_need         : a need existing treatments do not address
- patient_motivation : what drives patients to seek or stay on treatment
- patient_belief     : something patients believe, true or not
- patient_tension    : a fear, worry, or barrier patients experience
- journey_insight    : an observation about the patient journey
- prescribing_driver : what makes clinicians choose this product
- clinical_concern   : a clinician worry about the product or class
- practice_constraint: a workflow or system limit on prescribing
- competitor_position: how a competitor is positioned
- market_barrier     : an access, cost, or coverage obstacle

Return a JSON object with exactly one key:
  "insights" : array of {"node_type": string, "text": string, "summary": string, "segment": string, "source_quote": string, "confidence": number}

Rules:
- "text" is one complete insight statement in plain language.
- "summary" is optional, at most 200 characters.
- "segment" names the audience the insight applies to (e.g. "HCP", "newly diagnosed patients"); leave empty when it applies to everyone.
- "source_quote" is the verbatim passage the insight came from.
- "confidence" is a float between 0.0 and 1.0.
- Only include insights clearly supported by the text.
- If there are none, return an empty array.
- Do NOT include any text outside the JSON object.

EXAMPLE:

Input: "In our survey, 68%% of patients delayed starting therapy due to fear of self-injection. The autoinjector requires no needle handling."
Output:
{"insights": [{"node_type": "patient_tension", "text": "Fear of self-injection causes patients to delay starting therapy", "summary": "Injection fear delays therapy start", "segment": "", "source_quote": "68%% of patients delayed starting therapy due to fear of self-injection", "confidence": 0.9}, {"node_type": "differentiator", "text": "The autoinjector requires no needle handling", "summary": "", "segment": "", "source_quote": "The autoinjector requires no needle handling", "confidence": 0.85}]}

DOCUMENT TYPE: %s

TEXT:
%s`

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSON finds a JSON object in an LLM response, tolerating
// markdown code fences and prose before or after the object.
func extractJSON(raw string) (string, error) {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}

	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], nil
	}
	return "", fmt.Errorf("no JSON object found in response")
}

// Extractor produces candidate insight nodes from document text.
type Extractor interface {
	Extract(ctx context.Context, text, docType string) ([]CandidateNode, error)
}

// LLMExtractor extracts insights with a chat model. Malformed model
// output degrades to an empty result; only transport-level failures are
// returned as errors so the caller can switch to the keyword fallback.
type LLMExtractor struct {
	chat llm.Provider
}

func NewLLMExtractor(chat llm.Provider) *LLMExtractor {
	return &LLMExtractor{chat: chat}
}

type insightResult struct {
	Insights []CandidateNode `json:"insights"`
}

func (e *LLMExtractor) Extract(ctx context.Context, text, docType string) ([]CandidateNode, error) {
	if docType == "" {
		docType = "brand document"
	}
	prompt := fmt.Sprintf(insightExtractionPrompt, docType, text)

	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
		Temperature:    0.0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, fmt.Errorf("insight extraction llm chat: %w", err)
	}

	jsonStr, err := extractJSON(resp.Content)
	if err != nil {
		slog.Warn("insight extraction returned no parsable JSON, treating as empty", "error", err)
		return nil, nil
	}

	var result insightResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		slog.Warn("insight extraction JSON did not match expected shape, treating as empty", "error", err)
		return nil, nil
	}

	return validCandidates(result.Insights), nil
}

// validCandidates drops structurally invalid entries, keeping the rest.
func validCandidates(raw []CandidateNode) []CandidateNode {
	out := make([]CandidateNode, 0, len(raw))
	for _, c := range raw {
		if err := c.Validate(); err != nil {
			slog.Debug("dropping invalid extraction candidate", "error", err)
			continue
		}
		out = append(out, c)
	}
	return out
}
