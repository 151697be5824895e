package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Source document registry with hash-based change detection. The raw
-- extracted text is kept so a forced re-sync can re-run extraction
-- without the original file.
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    brand_id TEXT NOT NULL,
    name TEXT NOT NULL,
    doc_type TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    status TEXT DEFAULT 'pending',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(brand_id, name)
);

-- Knowledge nodes: one extracted insight statement per row.
-- The INTEGER PRIMARY KEY keys the vec_nodes virtual table; the opaque
-- TEXT id is what every public API uses.
CREATE TABLE IF NOT EXISTS nodes (
    row_id INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    brand_id TEXT NOT NULL,
    node_type TEXT NOT NULL,
    text TEXT NOT NULL,
    summary TEXT,
    segment TEXT,
    source_document_id TEXT,
    source_quote TEXT,
    confidence REAL DEFAULT 0.5,
    verified_by_user INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Typed, directed, weighted edges between nodes. The unique index is the
-- storage-level guarantee behind the no-duplicate-edge invariant; deleting
-- a node cascades to every edge touching it.
CREATE TABLE IF NOT EXISTS relations (
    id TEXT NOT NULL UNIQUE,
    brand_id TEXT NOT NULL,
    from_node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    to_node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    relation_type TEXT NOT NULL,
    strength REAL DEFAULT 0.5,
    context TEXT,
    inferred_by TEXT DEFAULT 'llm',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(brand_id, from_node_id, to_node_id, relation_type)
);

-- Node-text embeddings via sqlite-vec, keyed by the node row_id.
CREATE VIRTUAL TABLE IF NOT EXISTS vec_nodes USING vec0(
    node_rowid INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Personas are owned by another part of the application; this table is a
-- read-only cross-reference for enrichment scheduling. The payload JSON
-- carries the graph_enriched marker.
CREATE TABLE IF NOT EXISTS personas (
    id TEXT PRIMARY KEY,
    brand_id TEXT NOT NULL,
    name TEXT NOT NULL,
    payload JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_nodes_brand ON nodes(brand_id);
CREATE INDEX IF NOT EXISTS idx_nodes_brand_type ON nodes(brand_id, node_type);
CREATE INDEX IF NOT EXISTS idx_nodes_document ON nodes(source_document_id);
CREATE INDEX IF NOT EXISTS idx_relations_brand ON relations(brand_id);
CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_node_id);
CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_node_id);
CREATE INDEX IF NOT EXISTS idx_documents_brand ON documents(brand_id);
CREATE INDEX IF NOT EXISTS idx_personas_brand ON personas(brand_id);
`, embeddingDim)
}
