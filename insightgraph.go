// Package insightgraph maintains a typed knowledge graph of brand and
// clinical insights extracted from unstructured documents. Extraction
// is LLM-driven and noisy; the engine's job is keeping the graph
// well-formed anyway: idempotent re-ingestion, deduplication, relation
// validation, coherence auditing, and citation matching for generated
// text.
package insightgraph

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/brandkit/insightgraph/extract"
	"github.com/brandkit/insightgraph/graph"
	"github.com/brandkit/insightgraph/llm"
	"github.com/brandkit/insightgraph/parser"
	"github.com/brandkit/insightgraph/similarity"
	"github.com/brandkit/insightgraph/store"
)

// Engine is the main entry point for the insight graph. Methods are
// safe for concurrent use, but a brand's graph assumes one logical
// writer: concurrent ingests into the same brand may create duplicate
// nodes that a later AutoMerge has to clean up.
type Engine interface {
	// IngestText extracts insights from raw text and folds them into the
	// brand's graph. Re-ingesting unchanged content is a no-op.
	IngestText(ctx context.Context, brandID, name, docType, text string) (*SyncResult, error)

	// IngestFile parses a document file (txt, md, pdf, xlsx) and ingests it.
	IngestFile(ctx context.Context, brandID, path string) (*SyncResult, error)

	// SyncDocument re-checks a document. With force it cascade-deletes the
	// document's nodes and relations and re-runs extraction.
	SyncDocument(ctx context.Context, documentID string, force bool) (*SyncResult, error)

	// GraphView returns a brand's nodes and edges, optionally filtered by
	// node type and audience segment, shaped for visualization.
	GraphView(ctx context.Context, brandID, nodeType, segment string) (*View, error)

	// Audit produces a coherence report for a brand's graph.
	Audit(ctx context.Context, brandID string) (*graph.CoherenceReport, error)

	// DuplicateCandidates lists suspected duplicate node pairs for review.
	// threshold <= 0 selects the default floor.
	DuplicateCandidates(ctx context.Context, brandID string, threshold float64) ([]graph.DuplicateCandidate, error)

	// Merge absorbs the secondary nodes into the primary.
	Merge(ctx context.Context, primaryID string, secondaryIDs []string) (graph.MergeResult, error)

	// AutoMerge merges every duplicate pair above the auto-merge threshold.
	AutoMerge(ctx context.Context, brandID string) (graph.MergeResult, error)

	// Citations matches generated text against the brand's graph and
	// scores how much of the documented research it reflects.
	Citations(ctx context.Context, brandID, text string) (*graph.AlignmentResult, error)

	// VerifyNode toggles a node's verified flag.
	VerifyNode(ctx context.Context, nodeID string, verified bool) error

	// DeleteNode removes a node and every relation touching it.
	DeleteNode(ctx context.Context, nodeID string) error

	// ListDocuments returns the brand's ingested documents.
	ListDocuments(ctx context.Context, brandID string) ([]store.Document, error)

	// PendingEnrichmentPersonas lists personas that have never been
	// enriched from the graph, for catch-up scheduling after graph changes.
	PendingEnrichmentPersonas(ctx context.Context, brandID string) ([]store.Persona, error)

	// Stats returns object counts for a brand's graph.
	Stats(ctx context.Context, brandID string) (*store.GraphStats, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// SyncResult reports what an ingest or sync actually did.
type SyncResult struct {
	DocumentID       string `json:"document_id"`
	Action           string `json:"action"` // "created", "updated", "rebuilt", "skipped"
	NodesCreated     int    `json:"nodes_created"`
	NodesReused      int    `json:"nodes_reused"`
	NodesDeleted     int    `json:"nodes_deleted,omitempty"`
	RelationsCreated int    `json:"relations_created"`
	RelationsDeleted int    `json:"relations_deleted,omitempty"`
	ExistingNodes    int    `json:"existing_nodes,omitempty"`
}

// View is a brand's graph shaped for visualization.
type View struct {
	Nodes     []store.Node     `json:"nodes"`
	Relations []store.Relation `json:"relations"`
}

// Option configures the engine beyond what Config covers; used mainly
// to inject fake providers in tests.
type Option func(*engine)

// WithChatProvider overrides the chat provider built from config.
func WithChatProvider(p llm.Provider) Option {
	return func(e *engine) { e.chat = p }
}

// WithEmbeddingProvider overrides the embedding provider built from config.
func WithEmbeddingProvider(p llm.Provider) Option {
	return func(e *engine) { e.embed = p }
}

type engine struct {
	cfg   Config
	store *store.Store
	chat  llm.Provider
	embed llm.Provider

	matcher   *similarity.Matcher
	dedup     *graph.Deduplicator
	validator *graph.RelationValidator
	auditor   *graph.Auditor
	aligner   *graph.Aligner

	llmExtract *extract.LLMExtractor
	kwExtract  *extract.KeywordExtractor
	inferrer   *extract.LLMInferrer
	parsers    *parser.Registry
}

// New creates the engine. Providers left unconfigured degrade
// gracefully: keyword extraction and lexical similarity keep the
// engine functional without model access.
func New(cfg Config, opts ...Option) (Engine, error) {
	dim := cfg.EmbeddingDim
	if dim <= 0 {
		dim = 768
	}

	s, err := store.New(cfg.resolveDBPath(), dim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	e := &engine{cfg: cfg, store: s}
	for _, opt := range opts {
		opt(e)
	}

	if e.chat == nil && cfg.Chat.Provider != "" {
		e.chat, err = llm.NewProvider(llm.Config(cfg.Chat))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if e.embed == nil && cfg.Embedding.Provider != "" {
		e.embed, err = llm.NewProvider(llm.Config(cfg.Embedding))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	e.matcher = similarity.New(e.embed, cfg.EmbedCacheSize)
	e.dedup = graph.NewDeduplicator(s, e.matcher)
	e.validator = graph.NewRelationValidator(s)
	e.auditor = graph.NewAuditor(s)
	e.aligner = graph.NewAligner(s)
	e.kwExtract = extract.NewKeywordExtractor()
	e.parsers = parser.NewRegistry()
	if e.chat != nil {
		e.llmExtract = extract.NewLLMExtractor(e.chat)
		e.inferrer = extract.NewLLMInferrer(e.chat)
	}

	slog.Info("insightgraph engine ready",
		"db", cfg.resolveDBPath(),
		"chat_provider", cfg.Chat.Provider,
		"embedding_provider", cfg.Embedding.Provider)
	return e, nil
}

func (e *engine) IngestText(ctx context.Context, brandID, name, docType, text string) (*SyncResult, error) {
	if brandID == "" {
		return nil, ErrBrandRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyDocument
	}

	hash := contentHash(text)

	prior, err := e.store.GetDocumentByName(ctx, brandID, name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up document: %w", err)
	}

	if prior != nil && prior.ContentHash == hash {
		count, err := e.store.CountNodesByDocument(ctx, prior.ID)
		if err != nil {
			return nil, fmt.Errorf("counting nodes: %w", err)
		}
		if count > 0 {
			slog.Info("document unchanged, skipping extraction",
				"brand_id", brandID, "document_id", prior.ID)
			return &SyncResult{DocumentID: prior.ID, Action: "skipped", ExistingNodes: count}, nil
		}
	}

	doc := store.Document{
		ID:          uuid.NewString(),
		BrandID:     brandID,
		Name:        name,
		DocType:     docType,
		Content:     text,
		ContentHash: hash,
		Status:      "processing",
	}
	docID, err := e.store.UpsertDocument(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("upserting document: %w", err)
	}
	doc.ID = docID

	result := &SyncResult{DocumentID: docID, Action: "created"}
	if prior != nil {
		// Content changed: drop this document's slice of the graph
		// before re-extracting.
		nodesGone, relsGone, err := e.store.DeleteDocumentGraph(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("clearing stale graph: %w", err)
		}
		result.Action = "updated"
		result.NodesDeleted = nodesGone
		result.RelationsDeleted = relsGone
	}

	if err := e.extractAndStore(ctx, &doc, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *engine) IngestFile(ctx context.Context, brandID, path string) (*SyncResult, error) {
	parsed, err := e.parsers.ParseFile(ctx, path)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
		}
		return nil, err
	}

	text := parsed.Text()
	if text == "" {
		return nil, ErrEmptyDocument
	}

	docType := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return e.IngestText(ctx, brandID, filepath.Base(path), docType, text)
}

func (e *engine) SyncDocument(ctx context.Context, documentID string, force bool) (*SyncResult, error) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
		}
		return nil, fmt.Errorf("loading document: %w", err)
	}

	count, err := e.store.CountNodesByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("counting nodes: %w", err)
	}

	if count > 0 && !force {
		// Re-extraction is expensive and the graph already represents
		// this document.
		return &SyncResult{DocumentID: documentID, Action: "skipped", ExistingNodes: count}, nil
	}

	result := &SyncResult{DocumentID: documentID, Action: "created"}
	if force && count > 0 {
		nodesGone, relsGone, err := e.store.DeleteDocumentGraph(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("clearing graph for rebuild: %w", err)
		}
		result.Action = "rebuilt"
		result.NodesDeleted = nodesGone
		result.RelationsDeleted = relsGone
	}

	if strings.TrimSpace(doc.Content) == "" {
		return nil, ErrEmptyDocument
	}
	if err := e.extractAndStore(ctx, doc, result); err != nil {
		return nil, err
	}
	return result, nil
}

// extractAndStore runs the full ingestion path for one document:
// extraction, dedup-aware insertion, then relation inference and
// validation. Collaborator failures degrade; the operation itself only
// fails on storage errors.
func (e *engine) extractAndStore(ctx context.Context, doc *store.Document, result *SyncResult) error {
	candidates := e.extractCandidates(ctx, doc.Content, doc.DocType)

	existing, err := e.store.ListNodes(ctx, doc.BrandID)
	if err != nil {
		return fmt.Errorf("listing existing nodes: %w", err)
	}

	var added []store.Node
	for _, c := range candidates {
		match, score, err := e.dedup.FindSimilarNode(ctx, doc.BrandID, c.NodeType, c.Text)
		if err != nil {
			return fmt.Errorf("dedup lookup: %w", err)
		}
		if match != nil {
			slog.Debug("reusing existing node",
				"node_id", match.ID, "similarity", score)
			result.NodesReused++
			continue
		}

		node := store.Node{
			ID:               uuid.NewString(),
			BrandID:          doc.BrandID,
			NodeType:         c.NodeType,
			Text:             c.Text,
			Summary:          c.Summary,
			Segment:          c.Segment,
			SourceDocumentID: doc.ID,
			SourceQuote:      c.SourceQuote,
			Confidence:       c.Confidence,
		}
		rowID, err := e.store.InsertNode(ctx, node)
		if err != nil {
			return fmt.Errorf("inserting node: %w", err)
		}
		node.RowID = rowID

		if vec := e.matcher.Embedding(ctx, node.Text); vec != nil {
			if err := e.store.InsertNodeEmbedding(ctx, rowID, vec); err != nil {
				slog.Warn("storing node embedding failed", "node_id", node.ID, "error", err)
			}
		}

		added = append(added, node)
		result.NodesCreated++
	}

	created, err := e.inferRelations(ctx, doc.BrandID, existing, added)
	if err != nil {
		return err
	}
	result.RelationsCreated = len(created)

	if err := e.store.UpdateDocumentStatus(ctx, doc.ID, "completed"); err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}

	slog.Info("document ingested",
		"brand_id", doc.BrandID,
		"document_id", doc.ID,
		"action", result.Action,
		"nodes_created", result.NodesCreated,
		"nodes_reused", result.NodesReused,
		"relations_created", result.RelationsCreated)
	return nil
}

// extractCandidates runs the LLM extractor when available, falling back
// to keyword heuristics on outage. Extraction never hard-fails.
func (e *engine) extractCandidates(ctx context.Context, text, docType string) []extract.CandidateNode {
	if e.llmExtract != nil {
		candidates, err := e.llmExtract.Extract(ctx, text, docType)
		if err == nil {
			return candidates
		}
		slog.Warn("llm extraction unavailable, using keyword fallback", "error", err)
	}

	candidates, _ := e.kwExtract.Extract(ctx, text, docType)
	return candidates
}

// inferRelations proposes and validates relations for newly added
// nodes. Inference failures degrade to no relations.
func (e *engine) inferRelations(ctx context.Context, brandID string, existing, added []store.Node) ([]store.Relation, error) {
	if e.inferrer == nil || e.cfg.SkipRelationInference || len(added) == 0 {
		return nil, nil
	}

	proposals, err := e.inferrer.Infer(ctx, existing, added)
	if err != nil {
		slog.Warn("relation inference unavailable, skipping", "error", err)
		return nil, nil
	}
	if len(proposals) == 0 {
		return nil, nil
	}

	known := make([]store.Node, 0, len(existing)+len(added))
	known = append(known, existing...)
	known = append(known, added...)

	graphProposals := make([]graph.RelationProposal, len(proposals))
	for i, p := range proposals {
		graphProposals[i] = graph.RelationProposal{
			FromNodeID:          p.FromNodeID,
			ToNodeID:            p.ToNodeID,
			RelationType:        p.RelationType,
			Strength:            p.Strength,
			Context:             p.Context,
			RecommendedApproach: p.RecommendedApproach,
			InferredBy:          graph.InferredByLLM,
		}
	}

	created, err := e.validator.ValidateAndPersist(ctx, brandID, known, graphProposals)
	if err != nil {
		return created, fmt.Errorf("persisting relations: %w", err)
	}
	return created, nil
}

func (e *engine) GraphView(ctx context.Context, brandID, nodeType, segment string) (*View, error) {
	if brandID == "" {
		return nil, ErrBrandRequired
	}

	nodes, err := e.store.ListNodes(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	relations, err := e.store.ListRelations(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("listing relations: %w", err)
	}

	view := &View{Nodes: []store.Node{}, Relations: []store.Relation{}}
	kept := make(map[string]bool)
	for _, n := range nodes {
		if nodeType != "" && n.NodeType != nodeType {
			continue
		}
		// Segment-less nodes apply to every audience.
		if segment != "" && n.Segment != "" && n.Segment != segment {
			continue
		}
		view.Nodes = append(view.Nodes, n)
		kept[n.ID] = true
	}
	for _, r := range relations {
		if kept[r.FromNodeID] && kept[r.ToNodeID] {
			view.Relations = append(view.Relations, r)
		}
	}
	return view, nil
}

func (e *engine) Audit(ctx context.Context, brandID string) (*graph.CoherenceReport, error) {
	if brandID == "" {
		return nil, ErrBrandRequired
	}
	return e.auditor.Audit(ctx, brandID)
}

func (e *engine) DuplicateCandidates(ctx context.Context, brandID string, threshold float64) ([]graph.DuplicateCandidate, error) {
	if brandID == "" {
		return nil, ErrBrandRequired
	}
	return e.dedup.FindDuplicateCandidates(ctx, brandID, threshold)
}

func (e *engine) Merge(ctx context.Context, primaryID string, secondaryIDs []string) (graph.MergeResult, error) {
	return e.dedup.MergeNodes(ctx, primaryID, secondaryIDs)
}

func (e *engine) AutoMerge(ctx context.Context, brandID string) (graph.MergeResult, error) {
	if brandID == "" {
		return graph.MergeResult{}, ErrBrandRequired
	}
	return e.dedup.AutoMergeDuplicates(ctx, brandID)
}

func (e *engine) Citations(ctx context.Context, brandID, text string) (*graph.AlignmentResult, error) {
	if brandID == "" {
		return nil, ErrBrandRequired
	}
	return e.aligner.Match(ctx, brandID, text)
}

func (e *engine) VerifyNode(ctx context.Context, nodeID string, verified bool) error {
	if err := e.store.UpdateNodeVerified(ctx, nodeID, verified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
		}
		return err
	}
	return nil
}

func (e *engine) DeleteNode(ctx context.Context, nodeID string) error {
	if err := e.store.DeleteNode(ctx, nodeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
		}
		return err
	}
	return nil
}

func (e *engine) ListDocuments(ctx context.Context, brandID string) ([]store.Document, error) {
	if brandID == "" {
		return nil, ErrBrandRequired
	}
	return e.store.ListDocuments(ctx, brandID)
}

func (e *engine) PendingEnrichmentPersonas(ctx context.Context, brandID string) ([]store.Persona, error) {
	if brandID == "" {
		return nil, ErrBrandRequired
	}

	personas, err := e.store.ListPersonas(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("listing personas: %w", err)
	}

	var pending []store.Persona
	for _, p := range personas {
		if !personaEnriched(p.Payload) {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// personaEnriched reads the graph_enriched marker out of a persona's
// payload JSON. Malformed payloads count as not enriched.
func personaEnriched(payload string) bool {
	if payload == "" {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return false
	}
	enriched, _ := fields["graph_enriched"].(bool)
	return enriched
}

func (e *engine) Stats(ctx context.Context, brandID string) (*store.GraphStats, error) {
	if brandID == "" {
		return nil, ErrBrandRequired
	}
	return e.store.Stats(ctx, brandID)
}

func (e *engine) Store() *store.Store {
	return e.store
}

func (e *engine) Close() error {
	return e.store.Close()
}

// contentHash fingerprints document text for change detection.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
