package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/brandkit/insightgraph/llm"
	"github.com/brandkit/insightgraph/store"
)

// scriptedChat returns a fixed chat response, or an error.
type scriptedChat struct {
	content string
	err     error
}

func (s *scriptedChat) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: s.content}, nil
}

func (s *scriptedChat) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain object", `{"insights": []}`, `{"insights": []}`, false},
		{"code fence", "```json\n{\"insights\": []}\n```", `{"insights": []}`, false},
		{"prose around object", `Here you go: {"insights": []} hope that helps`, `{"insights": []}`, false},
		{"no object", "I could not find any insights.", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractJSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCandidateNodeValidate(t *testing.T) {
	tests := []struct {
		name    string
		node    CandidateNode
		wantErr bool
	}{
		{"valid", CandidateNode{NodeType: "patient_tension", Text: "Patients fear needles", Confidence: 0.8}, false},
		{"empty text", CandidateNode{NodeType: "patient_tension", Text: "   "}, true},
		{"unknown type", CandidateNode{NodeType: "vibe", Text: "something"}, true},
		{"uppercase type normalized", CandidateNode{NodeType: "Key_Message", Text: "Fast onset"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.node.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCandidateNodeValidateNormalizes(t *testing.T) {
	c := CandidateNode{
		NodeType:   "proof_point",
		Text:       "Study X showed 40% reduction",
		Summary:    strings.Repeat("s", 300),
		Confidence: 1.7,
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", c.Confidence)
	}
	if len(c.Summary) != maxSummaryLen {
		t.Errorf("summary length = %d, want %d", len(c.Summary), maxSummaryLen)
	}
}

func TestCandidateNodeConfidenceDecoding(t *testing.T) {
	// Absent confidence defaults to 0.5.
	var absent CandidateNode
	if err := json.Unmarshal([]byte(`{"node_type": "proof_point", "text": "x y z insight"}`), &absent); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := absent.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if absent.Confidence != 0.5 {
		t.Errorf("default confidence = %v, want 0.5", absent.Confidence)
	}

	// An explicit 0 is a real signal and must not be boosted.
	var zero CandidateNode
	if err := json.Unmarshal([]byte(`{"node_type": "proof_point", "text": "x y z insight", "confidence": 0}`), &zero); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := zero.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if zero.Confidence != 0 {
		t.Errorf("explicit zero confidence = %v, want 0", zero.Confidence)
	}
}

func TestCandidateRelationValidate(t *testing.T) {
	tests := []struct {
		name    string
		rel     CandidateRelation
		wantErr bool
	}{
		{"valid", CandidateRelation{FromNodeID: "a", ToNodeID: "b", RelationType: "supports", Strength: 0.9}, false},
		{"missing endpoint", CandidateRelation{FromNodeID: "a", RelationType: "supports"}, true},
		{"unknown type", CandidateRelation{FromNodeID: "a", ToNodeID: "b", RelationType: "adjacent_to"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rel.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLLMExtractor(t *testing.T) {
	chat := &scriptedChat{content: `{"insights": [
		{"node_type": "patient_tension", "text": "Patients fear self-injection pain", "confidence": 0.9},
		{"node_type": "made_up_type", "text": "should be dropped"},
		{"node_type": "proof_point", "text": ""}
	]}`}
	e := NewLLMExtractor(chat)

	nodes, err := e.Extract(context.Background(), "doc text", "strategy deck")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("nodes = %d, want 1 (invalid entries dropped)", len(nodes))
	}
	if nodes[0].NodeType != "patient_tension" {
		t.Errorf("node type = %q", nodes[0].NodeType)
	}
}

func TestLLMExtractorMalformedOutput(t *testing.T) {
	e := NewLLMExtractor(&scriptedChat{content: "sorry, I cannot help with that"})
	nodes, err := e.Extract(context.Background(), "doc text", "")
	if err != nil {
		t.Fatalf("malformed output should not error, got %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("nodes = %d, want 0", len(nodes))
	}
}

func TestLLMExtractorProviderError(t *testing.T) {
	e := NewLLMExtractor(&scriptedChat{err: errors.New("connection refused")})
	if _, err := e.Extract(context.Background(), "doc text", ""); err == nil {
		t.Fatal("expected transport error to propagate")
	}
}

func TestLLMInferrer(t *testing.T) {
	chat := &scriptedChat{content: `{"relationships": [
		{"from_node_id": "n1", "to_node_id": "n2", "relation_type": "addresses", "strength": 0.8, "context": "message speaks to the fear"},
		{"from_node_id": "n1", "to_node_id": "", "relation_type": "supports", "strength": 0.9}
	]}`}
	inf := NewLLMInferrer(chat)

	existing := []store.Node{{ID: "n2", NodeType: "patient_tension", Text: "Patients fear needles"}}
	added := []store.Node{{ID: "n1", NodeType: "key_message", Text: "No needle handling required"}}

	rels, err := inf.Infer(context.Background(), existing, added)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("relations = %d, want 1 (invalid proposal dropped)", len(rels))
	}
	if rels[0].RelationType != "addresses" {
		t.Errorf("relation type = %q", rels[0].RelationType)
	}
}

func TestLLMInferrerNothingToConnect(t *testing.T) {
	inf := NewLLMInferrer(&scriptedChat{err: errors.New("should not be called")})
	rels, err := inf.Infer(context.Background(), nil, nil)
	if err != nil || rels != nil {
		t.Errorf("empty input should short-circuit, got %v, %v", rels, err)
	}
}

func TestKeywordExtractor(t *testing.T) {
	text := `Patients report a persistent fear of self-injection pain. ` +
		`A recent study demonstrated a 40 percent reduction in flare-ups. ` +
		`Ok.`

	nodes, err := NewKeywordExtractor().Extract(context.Background(), text, "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("nodes = %d, want 2 (short fragment dropped)", len(nodes))
	}
	if nodes[0].NodeType != "patient_tension" {
		t.Errorf("first node type = %q, want patient_tension", nodes[0].NodeType)
	}
	if nodes[1].NodeType != "proof_point" {
		t.Errorf("second node type = %q, want proof_point", nodes[1].NodeType)
	}
	for _, n := range nodes {
		if n.Confidence != keywordConfidence {
			t.Errorf("confidence = %v, want %v", n.Confidence, keywordConfidence)
		}
		if n.SourceQuote == "" {
			t.Error("source quote should carry the matched sentence")
		}
	}
}
