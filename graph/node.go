// Package graph keeps the brand knowledge graph well-formed: it
// deduplicates extracted insight nodes, sanitizes proposed relations,
// audits coherence, and matches generated text back to graph nodes.
package graph

// Node types cover the three lenses brand research is filed under:
// brand strategy, disease/market context, and audience insight.
const (
	NodeKeyMessage         = "key_message"
	NodeValueProposition   = "value_proposition"
	NodeDifferentiator     = "differentiator"
	NodeProofPoint         = "proof_point"
	NodeEpidemiology       = "epidemiology"
	NodeSymptomBurden      = "symptom_burden"
	NodeTreatmentLandscape = "treatment_landscape"
	NodeUnmetNeed          = "unmet_need"
	NodePatientMotivation  = "patient_motivation"
	NodePatientBelief      = "patient_belief"
	NodePatientTension     = "patient_tension"
	NodeJourneyInsight     = "journey_insight"
	NodePrescribingDriver  = "prescribing_driver"
	NodeClinicalConcern    = "clinical_concern"
	NodePracticeConstraint = "practice_constraint"
	NodeCompetitorPosition = "competitor_position"
	NodeMarketBarrier      = "market_barrier"
)

// Relation types.
const (
	RelAddresses     = "addresses"
	RelSupports      = "supports"
	RelContradicts   = "contradicts"
	RelTriggers      = "triggers"
	RelInfluences    = "influences"
	RelResonatesWith = "resonates_with"
)

// Provenance values for relations.
const (
	InferredByLLM  = "llm"
	InferredByUser = "user"
	InferredByDemo = "demo_script"
)

// NodeTypes lists every valid node type in display order.
var NodeTypes = []string{
	NodeKeyMessage,
	NodeValueProposition,
	NodeDifferentiator,
	NodeProofPoint,
	NodeEpidemiology,
	NodeSymptomBurden,
	NodeTreatmentLandscape,
	NodeUnmetNeed,
	NodePatientMotivation,
	NodePatientBelief,
	NodePatientTension,
	NodeJourneyInsight,
	NodePrescribingDriver,
	NodeClinicalConcern,
	NodePracticeConstraint,
	NodeCompetitorPosition,
	NodeMarketBarrier,
}

// RelationTypes lists every valid relation type.
var RelationTypes = []string{
	RelAddresses,
	RelSupports,
	RelContradicts,
	RelTriggers,
	RelInfluences,
	RelResonatesWith,
}

var nodeTypeSet = toSet(NodeTypes)
var relationTypeSet = toSet(RelationTypes)
var inferredBySet = toSet([]string{InferredByLLM, InferredByUser, InferredByDemo})

// ValidNodeType reports whether t is a known node type.
func ValidNodeType(t string) bool { return nodeTypeSet[t] }

// ValidRelationType reports whether t is a known relation type.
func ValidRelationType(t string) bool { return relationTypeSet[t] }

// ValidInferredBy reports whether v is a known provenance value.
func ValidInferredBy(v string) bool { return inferredBySet[v] }

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// Clamp01 clamps a score into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
