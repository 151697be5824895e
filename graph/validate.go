package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/brandkit/insightgraph/store"
)

// minRelationStrength drops proposals the model itself is unsure of.
const minRelationStrength = 0.5

// RelationProposal is an edge proposal headed for validation. The
// optional recommended approach applies to contradicts relations only.
type RelationProposal struct {
	FromNodeID          string
	ToNodeID            string
	RelationType        string
	Strength            float64
	Context             string
	RecommendedApproach string
	InferredBy          string
}

// recommendedApproaches are the playbook responses a contradicts
// relation may carry. Anything else is dropped from the proposal but
// the relation itself is kept.
var recommendedApproaches = map[string]bool{
	"educate_with_evidence":     true,
	"validate_then_redirect":    true,
	"counter_with_testimonials": true,
	"build_credibility_first":   true,
}

// plausiblePairs is the advisory allow-list of (from type, to type)
// pairs per relation type. Pairs outside the list are persisted anyway
// with a warning; model judgment may legitimately find cross-type
// relationships the list never anticipated.
var plausiblePairs = map[string]map[[2]string]bool{
	RelAddresses: pairSet(
		[]string{NodeKeyMessage, NodeValueProposition, NodeDifferentiator},
		[]string{NodePatientTension, NodeUnmetNeed, NodePatientBelief, NodeClinicalConcern, NodeMarketBarrier},
	),
	RelSupports: pairSet(
		[]string{NodeProofPoint, NodeEpidemiology},
		[]string{NodeKeyMessage, NodeValueProposition, NodeDifferentiator, NodePrescribingDriver},
	),
	RelContradicts: pairSet(
		[]string{NodePatientBelief, NodeCompetitorPosition, NodeClinicalConcern},
		[]string{NodeKeyMessage, NodeValueProposition, NodeDifferentiator, NodeProofPoint},
	),
	RelTriggers: pairSet(
		[]string{NodeSymptomBurden, NodeJourneyInsight, NodeTreatmentLandscape},
		[]string{NodePatientTension, NodePatientMotivation, NodeUnmetNeed},
	),
	RelInfluences: pairSet(
		[]string{NodePatientBelief, NodePatientMotivation, NodePracticeConstraint, NodeMarketBarrier},
		[]string{NodePrescribingDriver, NodeJourneyInsight, NodePatientTension},
	),
	RelResonatesWith: pairSet(
		[]string{NodeKeyMessage, NodeValueProposition},
		[]string{NodePatientMotivation, NodePatientBelief, NodeJourneyInsight},
	),
}

func pairSet(fromTypes, toTypes []string) map[[2]string]bool {
	set := make(map[[2]string]bool, len(fromTypes)*len(toTypes))
	for _, f := range fromTypes {
		for _, t := range toTypes {
			set[[2]string{f, t}] = true
		}
	}
	return set
}

// RelationValidator sanitizes proposed relations before they enter the
// store. Integrity violations are dropped with a debug log; the caller
// gets back the relations actually created.
type RelationValidator struct {
	store *store.Store
}

func NewRelationValidator(s *store.Store) *RelationValidator {
	return &RelationValidator{store: s}
}

// ValidateAndPersist applies the validation rules to each proposal
// independently, in order: unknown endpoint, self-loop, weak strength,
// duplicate triple. Survivors are persisted and returned. known must
// hold every node the proposals may reference (existing plus
// newly-inserted).
func (v *RelationValidator) ValidateAndPersist(ctx context.Context, brandID string, known []store.Node, proposals []RelationProposal) ([]store.Relation, error) {
	nodeByID := make(map[string]store.Node, len(known))
	for _, n := range known {
		nodeByID[n.ID] = n
	}

	created := make([]store.Relation, 0, len(proposals))
	for _, p := range proposals {
		from, fromOK := nodeByID[p.FromNodeID]
		to, toOK := nodeByID[p.ToNodeID]
		if !fromOK || !toOK {
			slog.Debug("dropping relation with unknown endpoint",
				"from", p.FromNodeID, "to", p.ToNodeID)
			continue
		}
		if p.FromNodeID == p.ToNodeID {
			slog.Debug("dropping self-loop relation", "node", p.FromNodeID)
			continue
		}
		if p.Strength < minRelationStrength {
			slog.Debug("dropping weak relation",
				"from", p.FromNodeID, "to", p.ToNodeID, "strength", p.Strength)
			continue
		}

		exists, err := v.store.RelationExists(ctx, brandID, p.FromNodeID, p.ToNodeID, p.RelationType)
		if err != nil {
			return created, fmt.Errorf("checking relation existence: %w", err)
		}
		if exists {
			slog.Debug("dropping duplicate relation triple",
				"from", p.FromNodeID, "to", p.ToNodeID, "type", p.RelationType)
			continue
		}

		if allowed := plausiblePairs[p.RelationType]; allowed != nil {
			if !allowed[[2]string{from.NodeType, to.NodeType}] {
				slog.Warn("relation outside plausibility allow-list, persisting anyway",
					"type", p.RelationType,
					"from_type", from.NodeType, "to_type", to.NodeType)
			}
		}

		relContext := p.Context
		if p.RelationType == RelContradicts && p.RecommendedApproach != "" {
			if recommendedApproaches[p.RecommendedApproach] {
				relContext = fmt.Sprintf("%s | Recommended: %s", relContext, p.RecommendedApproach)
			} else {
				slog.Debug("dropping unknown recommended approach", "approach", p.RecommendedApproach)
			}
		}

		inferredBy := p.InferredBy
		if !ValidInferredBy(inferredBy) {
			inferredBy = InferredByLLM
		}

		rel := store.Relation{
			ID:           uuid.NewString(),
			BrandID:      brandID,
			FromNodeID:   p.FromNodeID,
			ToNodeID:     p.ToNodeID,
			RelationType: p.RelationType,
			Strength:     Clamp01(p.Strength),
			Context:      relContext,
			InferredBy:   inferredBy,
		}
		if err := v.store.InsertRelation(ctx, rel); err != nil {
			return created, fmt.Errorf("inserting relation: %w", err)
		}
		created = append(created, rel)
	}
	return created, nil
}
