package graph

import (
	"context"
	"fmt"

	"github.com/brandkit/insightgraph/store"
)

// Issue severity thresholds.
const (
	orphanRatioLimit   = 0.30
	verifiedRatioFloor = 0.20
)

// Issue is one finding in a coherence report.
type Issue struct {
	Severity   string `json:"severity"` // "high", "medium", "low"
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// CoherenceReport is a brand-level health summary of the graph.
type CoherenceReport struct {
	BrandID        string         `json:"brand_id"`
	IsCoherent     bool           `json:"is_coherent"`
	TotalNodes     int            `json:"total_nodes"`
	TotalRelations int            `json:"total_relations"`
	Contradictions int            `json:"contradictions"`
	VerifiedNodes  int            `json:"verified_nodes"`
	OrphanNodes    int            `json:"orphan_nodes"`
	NodesByType    map[string]int `json:"nodes_by_type"`
	Issues         []Issue        `json:"issues"`
}

// Auditor produces on-demand coherence reports.
type Auditor struct {
	store *store.Store
}

func NewAuditor(s *store.Store) *Auditor {
	return &Auditor{store: s}
}

// Audit reads the brand's graph and reports contradictions, orphan
// nodes, and verification coverage. A graph is coherent iff it has no
// high-severity issues; today only contradictions are high severity.
func (a *Auditor) Audit(ctx context.Context, brandID string) (*CoherenceReport, error) {
	nodes, err := a.store.ListNodes(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	relations, err := a.store.ListRelations(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("listing relations: %w", err)
	}

	report := &CoherenceReport{
		BrandID:        brandID,
		TotalNodes:     len(nodes),
		TotalRelations: len(relations),
		NodesByType:    make(map[string]int),
		Issues:         []Issue{},
	}

	connected := make(map[string]bool, len(nodes))
	for _, r := range relations {
		connected[r.FromNodeID] = true
		connected[r.ToNodeID] = true
		if r.RelationType == RelContradicts {
			report.Contradictions++
		}
	}

	for _, n := range nodes {
		report.NodesByType[n.NodeType]++
		if n.VerifiedByUser {
			report.VerifiedNodes++
		}
		if !connected[n.ID] {
			report.OrphanNodes++
		}
	}

	if report.Contradictions > 0 {
		report.Issues = append(report.Issues, Issue{
			Severity: "high",
			Message:  fmt.Sprintf("%d contradiction(s) present in the graph", report.Contradictions),
			Suggestion: "Review each contradicts relation and resolve it with the recommended " +
				"approach embedded in its context",
		})
	}

	if report.TotalNodes > 0 {
		orphanRatio := float64(report.OrphanNodes) / float64(report.TotalNodes)
		if orphanRatio > orphanRatioLimit {
			report.Issues = append(report.Issues, Issue{
				Severity:   "medium",
				Message:    fmt.Sprintf("%.0f%% of nodes have no relations", orphanRatio*100),
				Suggestion: "Re-run relationship inference to connect orphan insights",
			})
		}

		verifiedRatio := float64(report.VerifiedNodes) / float64(report.TotalNodes)
		if verifiedRatio < verifiedRatioFloor {
			report.Issues = append(report.Issues, Issue{
				Severity:   "low",
				Message:    fmt.Sprintf("only %.0f%% of nodes are verified", verifiedRatio*100),
				Suggestion: "Review and verify extracted insights to raise graph trust",
			})
		}
	}

	report.IsCoherent = report.Contradictions == 0
	return report, nil
}
