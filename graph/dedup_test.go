//go:build cgo

package graph

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/brandkit/insightgraph/llm"
	"github.com/brandkit/insightgraph/similarity"
	"github.com/brandkit/insightgraph/store"
)

// stubEmbed serves fixed vectors keyed by text, keeping the semantic
// dedup path deterministic.
type stubEmbed struct {
	vectors map[string][]float32
}

func (s *stubEmbed) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("chat not supported")
}

func (s *stubEmbed) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := s.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", text)
		}
		out[i] = vec
	}
	return out, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), 3)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertNode(t *testing.T, s *store.Store, brandID, nodeType, text string) store.Node {
	t.Helper()
	n := store.Node{
		ID:         uuid.NewString(),
		BrandID:    brandID,
		NodeType:   nodeType,
		Text:       text,
		Confidence: 0.8,
	}
	rowID, err := s.InsertNode(context.Background(), n)
	if err != nil {
		t.Fatalf("inserting node: %v", err)
	}
	n.RowID = rowID
	return n
}

func insertRelation(t *testing.T, s *store.Store, brandID, fromID, toID, relType string) store.Relation {
	t.Helper()
	r := store.Relation{
		ID:           uuid.NewString(),
		BrandID:      brandID,
		FromNodeID:   fromID,
		ToNodeID:     toID,
		RelationType: relType,
		Strength:     0.9,
		InferredBy:   InferredByLLM,
	}
	if err := s.InsertRelation(context.Background(), r); err != nil {
		t.Fatalf("inserting relation: %v", err)
	}
	return r
}

// Lexical-only matcher keeps these tests deterministic.
func newTestDedup(s *store.Store) *Deduplicator {
	return NewDeduplicator(s, similarity.New(nil, 0))
}

func TestFindSimilarNodeReusesExisting(t *testing.T) {
	s := newTestStore(t)
	d := newTestDedup(s)
	ctx := context.Background()

	existing := insertNode(t, s, "brand-x", NodePatientTension, "Patients fear self-injection pain")

	match, score, err := d.FindSimilarNode(ctx, "brand-x", NodePatientTension, "Patients fear self-injection pain")
	if err != nil {
		t.Fatalf("FindSimilarNode: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match for identical text")
	}
	if match.ID != existing.ID {
		t.Errorf("matched id = %s, want %s", match.ID, existing.ID)
	}
	if score != 1.0 {
		t.Errorf("score = %v, want 1.0", score)
	}
}

func TestFindSimilarNodeScopedByTypeAndBrand(t *testing.T) {
	s := newTestStore(t)
	d := newTestDedup(s)
	ctx := context.Background()

	insertNode(t, s, "brand-x", NodePatientTension, "Patients fear self-injection pain")

	match, _, err := d.FindSimilarNode(ctx, "brand-x", NodeKeyMessage, "Patients fear self-injection pain")
	if err != nil {
		t.Fatalf("FindSimilarNode: %v", err)
	}
	if match != nil {
		t.Error("node of a different type must not be reused")
	}

	match, _, err = d.FindSimilarNode(ctx, "brand-y", NodePatientTension, "Patients fear self-injection pain")
	if err != nil {
		t.Fatalf("FindSimilarNode: %v", err)
	}
	if match != nil {
		t.Error("node of a different brand must not be reused")
	}
}

func TestFindSimilarNodeBelowThreshold(t *testing.T) {
	s := newTestStore(t)
	d := newTestDedup(s)

	insertNode(t, s, "brand-x", NodePatientTension, "Patients fear self-injection pain")

	match, _, err := d.FindSimilarNode(context.Background(), "brand-x", NodePatientTension,
		"Clinicians worry about formulary coverage")
	if err != nil {
		t.Fatalf("FindSimilarNode: %v", err)
	}
	if match != nil {
		t.Error("dissimilar text must not be reused")
	}
}

func TestFindSimilarNodeSeesUnindexedNodes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Stored during an embedding outage: the node has no vector row.
	existing := insertNode(t, s, "brand-x", NodePatientTension, "Patients fear self-injection pain")

	embed := &stubEmbed{vectors: map[string][]float32{
		"Patients fear self-injection pain": {1, 0, 0},
	}}
	d := NewDeduplicator(s, similarity.New(embed, 0))

	match, score, err := d.FindSimilarNode(ctx, "brand-x", NodePatientTension, "Patients fear self-injection pain")
	if err != nil {
		t.Fatalf("FindSimilarNode: %v", err)
	}
	if match == nil {
		t.Fatal("node without a vector row must still be found once the provider is healthy")
	}
	if match.ID != existing.ID {
		t.Errorf("matched id = %s, want %s", match.ID, existing.ID)
	}
	if score < ReuseThreshold {
		t.Errorf("score = %v, want >= %v", score, ReuseThreshold)
	}
}

func TestFindSimilarNodeNotCrowdedOutByOtherBrands(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	query := "Patients fear self-injection pain"
	embed := &stubEmbed{vectors: map[string][]float32{query: {1, 0, 0}}}

	// Foreign-brand vectors sit closer to the query than brand-x's node.
	for i := 0; i < knnLimit*2; i++ {
		n := insertNode(t, s, "brand-other", NodePatientTension, fmt.Sprintf("foreign insight %d", i))
		if err := s.InsertNodeEmbedding(ctx, n.RowID, []float32{1, 0, 0}); err != nil {
			t.Fatalf("InsertNodeEmbedding: %v", err)
		}
	}
	existing := insertNode(t, s, "brand-x", NodePatientTension, query)
	if err := s.InsertNodeEmbedding(ctx, existing.RowID, []float32{0.9, 0.1, 0}); err != nil {
		t.Fatalf("InsertNodeEmbedding: %v", err)
	}

	d := NewDeduplicator(s, similarity.New(embed, 0))
	match, _, err := d.FindSimilarNode(ctx, "brand-x", NodePatientTension, query)
	if err != nil {
		t.Fatalf("FindSimilarNode: %v", err)
	}
	if match == nil {
		t.Fatal("brand-x node must be found despite nearer foreign-brand vectors")
	}
	if match.ID != existing.ID {
		t.Errorf("matched id = %s, want %s", match.ID, existing.ID)
	}
}

func TestFindDuplicateCandidates(t *testing.T) {
	s := newTestStore(t)
	d := newTestDedup(s)
	ctx := context.Background()

	a := insertNode(t, s, "brand-x", NodePatientTension, "patients fear self-injection pain daily")
	b := insertNode(t, s, "brand-x", NodePatientTension, "patients fear self-injection pain daily")
	insertNode(t, s, "brand-x", NodePatientTension, "coverage denials delay treatment starts badly")

	candidates, err := d.FindDuplicateCandidates(ctx, "brand-x", 0)
	if err != nil {
		t.Fatalf("FindDuplicateCandidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}

	c := candidates[0]
	if c.Similarity != 1.0 {
		t.Errorf("similarity = %v, want 1.0", c.Similarity)
	}
	if c.Recommendation != "auto_merge" {
		t.Errorf("recommendation = %q, want auto_merge", c.Recommendation)
	}
	got := map[string]bool{c.Primary.ID: true, c.Secondary.ID: true}
	if !got[a.ID] || !got[b.ID] {
		t.Errorf("candidate pair = (%s, %s), want (%s, %s)", c.Primary.ID, c.Secondary.ID, a.ID, b.ID)
	}
}

func TestMergeNodesRedirectsAndDeduplicates(t *testing.T) {
	s := newTestStore(t)
	d := newTestDedup(s)
	ctx := context.Background()

	a := insertNode(t, s, "brand-x", NodeKeyMessage, "No needle handling required")
	b := insertNode(t, s, "brand-x", NodeKeyMessage, "No needle handling needed")
	c := insertNode(t, s, "brand-x", NodePatientTension, "Patients fear needles")
	dNode := insertNode(t, s, "brand-x", NodeUnmetNeed, "Simpler administration is needed")

	// A→C and B→C share a triple after redirect; B→D is redirected cleanly.
	insertRelation(t, s, "brand-x", a.ID, c.ID, RelAddresses)
	insertRelation(t, s, "brand-x", b.ID, c.ID, RelAddresses)
	insertRelation(t, s, "brand-x", b.ID, dNode.ID, RelAddresses)

	result, err := d.MergeNodes(ctx, a.ID, []string{b.ID})
	if err != nil {
		t.Fatalf("MergeNodes: %v", err)
	}
	if result.NodesMerged != 1 {
		t.Errorf("nodes merged = %d, want 1", result.NodesMerged)
	}
	if result.RelationsRedirected != 1 {
		t.Errorf("relations redirected = %d, want 1", result.RelationsRedirected)
	}

	rels, err := s.ListRelations(ctx, "brand-x")
	if err != nil {
		t.Fatalf("ListRelations: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("relations after merge = %d, want 2", len(rels))
	}
	for _, r := range rels {
		if r.FromNodeID == b.ID || r.ToNodeID == b.ID {
			t.Errorf("relation %s still references merged node", r.ID)
		}
	}

	if _, err := s.GetNode(ctx, b.ID); err == nil {
		t.Error("secondary node should be deleted after merge")
	}
}

func TestMergeNodesMissingPrimary(t *testing.T) {
	s := newTestStore(t)
	d := newTestDedup(s)

	_, err := d.MergeNodes(context.Background(), "no-such-id", []string{"whatever"})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("error = %v, want ErrNodeNotFound", err)
	}
}

func TestMergeNodesIdempotent(t *testing.T) {
	s := newTestStore(t)
	d := newTestDedup(s)
	ctx := context.Background()

	a := insertNode(t, s, "brand-x", NodeKeyMessage, "No needle handling required")
	b := insertNode(t, s, "brand-x", NodeKeyMessage, "No needle handling needed")

	if _, err := d.MergeNodes(ctx, a.ID, []string{b.ID}); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	// Second call is a no-op: secondary no longer exists.
	result, err := d.MergeNodes(ctx, a.ID, []string{b.ID})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if result.NodesMerged != 0 {
		t.Errorf("second merge nodes merged = %d, want 0", result.NodesMerged)
	}
}

func TestAutoMergeDuplicates(t *testing.T) {
	s := newTestStore(t)
	d := newTestDedup(s)
	ctx := context.Background()

	insertNode(t, s, "brand-x", NodePatientTension, "patients fear self-injection pain daily")
	insertNode(t, s, "brand-x", NodePatientTension, "patients fear self-injection pain daily")
	insertNode(t, s, "brand-x", NodePatientTension, "patients fear self-injection pain daily")
	insertNode(t, s, "brand-x", NodeUnmetNeed, "simpler administration remains an unmet need")

	result, err := d.AutoMergeDuplicates(ctx, "brand-x")
	if err != nil {
		t.Fatalf("AutoMergeDuplicates: %v", err)
	}
	if result.NodesMerged != 2 {
		t.Errorf("nodes merged = %d, want 2", result.NodesMerged)
	}

	nodes, err := s.ListNodesByType(ctx, "brand-x", NodePatientTension)
	if err != nil {
		t.Fatalf("ListNodesByType: %v", err)
	}
	if len(nodes) != 1 {
		t.Errorf("tension nodes after auto-merge = %d, want 1", len(nodes))
	}
}
