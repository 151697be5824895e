package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/brandkit/insightgraph/similarity"
	"github.com/brandkit/insightgraph/store"
)

// ErrNodeNotFound is returned when an operation references a node id
// that does not exist (deleted, merged away, or never created).
var ErrNodeNotFound = errors.New("graph: node not found")

// Similarity thresholds. Reuse guards extraction-time idempotence,
// candidate is the review-queue floor, autoMerge is the bar for
// merging without a human in the loop.
const (
	ReuseThreshold     = 0.75
	CandidateThreshold = 0.60
	AutoMergeThreshold = 0.85
)

// knnLimit caps how many vector-index neighbours are verified per
// extraction-time lookup.
const knnLimit = 8

// Deduplicator prevents duplicate insight nodes at extraction time and
// merges near-duplicates after the fact.
type Deduplicator struct {
	store   *store.Store
	matcher *similarity.Matcher
}

func NewDeduplicator(s *store.Store, m *similarity.Matcher) *Deduplicator {
	return &Deduplicator{store: s, matcher: m}
}

// FindSimilarNode scans existing nodes of the same brand and type and
// returns the best match scoring at or above the reuse threshold, with
// its score. Returns (nil, 0, nil) when no node qualifies. When an
// embedding is available the vector index narrows the scan, plus a
// direct pass over nodes the index cannot see (stored during an
// embedding outage); each candidate is still verified with the matcher
// before reuse.
func (d *Deduplicator) FindSimilarNode(ctx context.Context, brandID, nodeType, text string) (*store.Node, float64, error) {
	var candidates []store.Node

	if vec := d.matcher.Embedding(ctx, text); vec != nil {
		matches, err := d.store.NearestNodes(ctx, brandID, nodeType, vec, knnLimit)
		if err != nil {
			return nil, 0, fmt.Errorf("vector lookup: %w", err)
		}
		for _, m := range matches {
			candidates = append(candidates, m.Node)
		}
		unindexed, err := d.store.ListNodesWithoutEmbedding(ctx, brandID, nodeType)
		if err != nil {
			return nil, 0, fmt.Errorf("listing unindexed nodes: %w", err)
		}
		candidates = append(candidates, unindexed...)
	} else {
		all, err := d.store.ListNodesByType(ctx, brandID, nodeType)
		if err != nil {
			return nil, 0, fmt.Errorf("listing nodes: %w", err)
		}
		candidates = all
	}

	var best *store.Node
	var bestScore float64
	for i := range candidates {
		score := d.matcher.Similarity(ctx, text, candidates[i].Text)
		if score >= ReuseThreshold && score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	return best, bestScore, nil
}

// DuplicateCandidate is a same-type node pair suspected to be the same
// insight. Recommendation is "auto_merge" at or above the auto-merge
// threshold, "review" otherwise.
type DuplicateCandidate struct {
	Primary        store.Node `json:"primary"`
	Secondary      store.Node `json:"secondary"`
	Similarity     float64    `json:"similarity"`
	Recommendation string     `json:"recommendation"`
}

// FindDuplicateCandidates compares all same-type node pairs within a
// brand and returns pairs scoring at or above threshold, sorted by
// similarity descending. threshold <= 0 selects the default floor.
// Pairwise comparison is O(n²) per type; callers should treat this as
// a batch operation once a brand grows past a few hundred nodes.
func (d *Deduplicator) FindDuplicateCandidates(ctx context.Context, brandID string, threshold float64) ([]DuplicateCandidate, error) {
	if threshold <= 0 {
		threshold = CandidateThreshold
	}

	nodes, err := d.store.ListNodes(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}

	byType := make(map[string][]store.Node)
	for _, n := range nodes {
		byType[n.NodeType] = append(byType[n.NodeType], n)
	}

	var candidates []DuplicateCandidate
	for _, group := range byType {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				score := d.matcher.Similarity(ctx, group[i].Text, group[j].Text)
				if score < threshold {
					continue
				}
				rec := "review"
				if score >= AutoMergeThreshold {
					rec = "auto_merge"
				}
				candidates = append(candidates, DuplicateCandidate{
					Primary:        group[i],
					Secondary:      group[j],
					Similarity:     score,
					Recommendation: rec,
				})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	return candidates, nil
}

// MergeResult reports what a merge touched.
type MergeResult struct {
	NodesMerged         int `json:"nodes_merged"`
	RelationsRedirected int `json:"relations_redirected"`
}

// MergeNodes absorbs each secondary into the primary: relations are
// redirected (duplicate triples and self-loops discarded) and the
// secondary deleted. A nonexistent primary returns ErrNodeNotFound;
// already-deleted secondaries are skipped, which makes repeated merges
// of the same pair a no-op.
func (d *Deduplicator) MergeNodes(ctx context.Context, primaryID string, secondaryIDs []string) (MergeResult, error) {
	var result MergeResult

	if _, err := d.store.GetNode(ctx, primaryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, fmt.Errorf("%w: primary %s", ErrNodeNotFound, primaryID)
		}
		return result, fmt.Errorf("loading primary node: %w", err)
	}

	for _, secondaryID := range secondaryIDs {
		if secondaryID == primaryID {
			continue
		}
		redirected, err := d.store.MergeNode(ctx, primaryID, secondaryID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				slog.Debug("merge secondary already gone, skipping", "secondary_id", secondaryID)
				continue
			}
			return result, fmt.Errorf("merging %s into %s: %w", secondaryID, primaryID, err)
		}
		result.NodesMerged++
		result.RelationsRedirected += redirected
	}
	return result, nil
}

// AutoMergeDuplicates merges every candidate pair at or above the
// auto-merge threshold in one similarity-descending pass. A consumed
// set guarantees no node is absorbed as a secondary twice in a batch;
// a pair is skipped when either side was already consumed. The single
// pass can under-merge dense duplicate clusters, but repeated batch
// runs converge, so no in-pass re-scoring is done.
func (d *Deduplicator) AutoMergeDuplicates(ctx context.Context, brandID string) (MergeResult, error) {
	var result MergeResult

	candidates, err := d.FindDuplicateCandidates(ctx, brandID, AutoMergeThreshold)
	if err != nil {
		return result, err
	}

	consumed := make(map[string]bool)
	for _, c := range candidates {
		if consumed[c.Primary.ID] || consumed[c.Secondary.ID] {
			continue
		}
		merged, err := d.MergeNodes(ctx, c.Primary.ID, []string{c.Secondary.ID})
		if err != nil {
			if errors.Is(err, ErrNodeNotFound) {
				continue
			}
			return result, err
		}
		consumed[c.Secondary.ID] = true
		result.NodesMerged += merged.NodesMerged
		result.RelationsRedirected += merged.RelationsRedirected
	}
	return result, nil
}
