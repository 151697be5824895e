package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Node represents a row in the nodes table: one extracted insight
// statement, scoped to a brand.
type Node struct {
	RowID            int64   `json:"-"`
	ID               string  `json:"id"`
	BrandID          string  `json:"brand_id"`
	NodeType         string  `json:"node_type"`
	Text             string  `json:"text"`
	Summary          string  `json:"summary,omitempty"`
	Segment          string  `json:"segment,omitempty"` // empty = applies to all audiences
	SourceDocumentID string  `json:"source_document_id,omitempty"`
	SourceQuote      string  `json:"source_quote,omitempty"`
	Confidence       float64 `json:"confidence"`
	VerifiedByUser   bool    `json:"verified_by_user"`
	CreatedAt        string  `json:"created_at"`
}

// Relation represents a row in the relations table: a typed, directed,
// weighted edge between two nodes of the same brand.
type Relation struct {
	ID           string  `json:"id"`
	BrandID      string  `json:"brand_id"`
	FromNodeID   string  `json:"from_node_id"`
	ToNodeID     string  `json:"to_node_id"`
	RelationType string  `json:"relation_type"`
	Strength     float64 `json:"strength"`
	Context      string  `json:"context,omitempty"`
	InferredBy   string  `json:"inferred_by"`
	CreatedAt    string  `json:"created_at"`
}

// Document represents a row in the documents table. Content holds the
// extracted plain text so a forced re-sync can re-run extraction
// without the original file.
type Document struct {
	ID          string `json:"id"`
	BrandID     string `json:"brand_id"`
	Name        string `json:"name"`
	DocType     string `json:"doc_type"`
	Content     string `json:"-"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Persona represents a row in the personas table. Persona generation lives
// elsewhere in the application; the store only mirrors enough to answer
// "which personas have never been enriched from this graph".
type Persona struct {
	ID        string `json:"id"`
	BrandID   string `json:"brand_id"`
	Name      string `json:"name"`
	Payload   string `json:"payload,omitempty"`
	CreatedAt string `json:"created_at"`
}

// NodeMatch is a node paired with its vector distance from a query embedding.
type NodeMatch struct {
	Node     Node    `json:"node"`
	Distance float64 `json:"distance"`
}

// Store wraps the SQLite database for all insightgraph persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Node operations ---

const nodeColumns = `row_id, id, brand_id, node_type, text, summary, segment,
	source_document_id, source_quote, confidence, verified_by_user, created_at`

func scanNode(scanner interface{ Scan(...any) error }) (Node, error) {
	var n Node
	var summary, segment, docID, quote sql.NullString
	err := scanner.Scan(&n.RowID, &n.ID, &n.BrandID, &n.NodeType, &n.Text,
		&summary, &segment, &docID, &quote,
		&n.Confidence, &n.VerifiedByUser, &n.CreatedAt)
	if err != nil {
		return Node{}, err
	}
	n.Summary = summary.String
	n.Segment = segment.String
	n.SourceDocumentID = docID.String
	n.SourceQuote = quote.String
	return n, nil
}

// InsertNode inserts a node row and returns its internal row id
// (used to key the vec_nodes table).
func (s *Store) InsertNode(ctx context.Context, n Node) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, brand_id, node_type, text, summary, segment,
			source_document_id, source_quote, confidence, verified_by_user)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.BrandID, n.NodeType, n.Text,
		nullable(n.Summary), nullable(n.Segment),
		nullable(n.SourceDocumentID), nullable(n.SourceQuote),
		n.Confidence, n.VerifiedByUser)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetNode retrieves a node by its opaque id. Returns sql.ErrNoRows when
// the id does not exist.
func (s *Store) GetNode(ctx context.Context, id string) (*Node, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
	n, err := scanNode(row)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// nodeQuery runs a SELECT over the nodes table and scans all rows.
func (s *Store) nodeQuery(ctx context.Context, query string, args ...any) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ListNodes returns all nodes for a brand ordered by creation time.
func (s *Store) ListNodes(ctx context.Context, brandID string) ([]Node, error) {
	return s.nodeQuery(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE brand_id = ? ORDER BY created_at, row_id",
		brandID)
}

// ListNodesByType returns a brand's nodes of a single node type.
func (s *Store) ListNodesByType(ctx context.Context, brandID, nodeType string) ([]Node, error) {
	return s.nodeQuery(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE brand_id = ? AND node_type = ? ORDER BY created_at, row_id",
		brandID, nodeType)
}

// ListNodesWithoutEmbedding returns a brand's nodes of one type that
// have no row in the vector index. Nodes inserted during an embedding
// outage land here; similarity checks must compare them directly since
// KNN search cannot see them.
func (s *Store) ListNodesWithoutEmbedding(ctx context.Context, brandID, nodeType string) ([]Node, error) {
	return s.nodeQuery(ctx,
		"SELECT "+nodeColumns+` FROM nodes
		WHERE brand_id = ? AND node_type = ?
		AND row_id NOT IN (SELECT node_rowid FROM vec_nodes)
		ORDER BY created_at, row_id`,
		brandID, nodeType)
}

// ListNodesByDocument returns all nodes sourced from a document.
func (s *Store) ListNodesByDocument(ctx context.Context, documentID string) ([]Node, error) {
	return s.nodeQuery(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE source_document_id = ? ORDER BY created_at, row_id",
		documentID)
}

// CountNodesByDocument returns how many nodes were sourced from a document.
func (s *Store) CountNodesByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM nodes WHERE source_document_id = ?", documentID).Scan(&count)
	return count, err
}

// UpdateNodeVerified toggles the verified_by_user flag. Returns
// sql.ErrNoRows when the node does not exist.
func (s *Store) UpdateNodeVerified(ctx context.Context, id string, verified bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE nodes SET verified_by_user = ? WHERE id = ?", verified, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteNode removes a node, its embedding, and (via FK cascade) every
// relation referencing it. Returns sql.ErrNoRows when the node does not
// exist.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_nodes WHERE node_rowid IN (
				SELECT row_id FROM nodes WHERE id = ?
			)`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE id = ?", id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// --- Relation operations ---

const relationColumns = `id, brand_id, from_node_id, to_node_id,
	relation_type, strength, context, inferred_by, created_at`

func scanRelation(scanner interface{ Scan(...any) error }) (Relation, error) {
	var r Relation
	var rctx sql.NullString
	err := scanner.Scan(&r.ID, &r.BrandID, &r.FromNodeID, &r.ToNodeID,
		&r.RelationType, &r.Strength, &rctx, &r.InferredBy, &r.CreatedAt)
	if err != nil {
		return Relation{}, err
	}
	r.Context = rctx.String
	return r, nil
}

// InsertRelation creates a relation row. The UNIQUE index on
// (brand, from, to, type) rejects duplicate triples at the storage level.
func (s *Store) InsertRelation(ctx context.Context, r Relation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relations (id, brand_id, from_node_id, to_node_id,
			relation_type, strength, context, inferred_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.BrandID, r.FromNodeID, r.ToNodeID,
		r.RelationType, r.Strength, nullable(r.Context), r.InferredBy)
	return err
}

// ListRelations returns all relations for a brand.
func (s *Store) ListRelations(ctx context.Context, brandID string) ([]Relation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+relationColumns+" FROM relations WHERE brand_id = ? ORDER BY created_at",
		brandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// RelationExists reports whether a (from, to, type) triple already exists
// for the brand.
func (s *Store) RelationExists(ctx context.Context, brandID, fromID, toID, relationType string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM relations
		WHERE brand_id = ? AND from_node_id = ? AND to_node_id = ? AND relation_type = ?
	`, brandID, fromID, toID, relationType).Scan(&count)
	return count > 0, err
}

// DeleteRelation removes a single relation by id.
func (s *Store) DeleteRelation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM relations WHERE id = ?", id)
	return err
}

// --- Merge ---

// MergeNode absorbs the secondary node into the primary: every relation
// touching the secondary is redirected to the primary, redirected edges
// that would duplicate an existing (from, to, type) triple or form a
// self-loop are discarded, and the secondary node row and its embedding
// are deleted. The whole operation is one transaction. Returns the number
// of relations actually redirected.
func (s *Store) MergeNode(ctx context.Context, primaryID, secondaryID string) (int, error) {
	var redirected int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, brand_id, from_node_id, to_node_id, relation_type
			FROM relations WHERE from_node_id = ? OR to_node_id = ?
		`, secondaryID, secondaryID)
		if err != nil {
			return err
		}

		type edge struct {
			id, brand, from, to, relType string
		}
		var edges []edge
		for rows.Next() {
			var e edge
			if err := rows.Scan(&e.id, &e.brand, &e.from, &e.to, &e.relType); err != nil {
				rows.Close()
				return err
			}
			edges = append(edges, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, e := range edges {
			newFrom, newTo := e.from, e.to
			if newFrom == secondaryID {
				newFrom = primaryID
			}
			if newTo == secondaryID {
				newTo = primaryID
			}

			// A secondary<->primary edge collapses to a self-loop; discard.
			if newFrom == newTo {
				if _, err := tx.ExecContext(ctx,
					"DELETE FROM relations WHERE id = ?", e.id); err != nil {
					return err
				}
				continue
			}

			var dup int
			if err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM relations
				WHERE brand_id = ? AND from_node_id = ? AND to_node_id = ?
				  AND relation_type = ? AND id != ?
			`, e.brand, newFrom, newTo, e.relType, e.id).Scan(&dup); err != nil {
				return err
			}
			if dup > 0 {
				if _, err := tx.ExecContext(ctx,
					"DELETE FROM relations WHERE id = ?", e.id); err != nil {
					return err
				}
				continue
			}

			if _, err := tx.ExecContext(ctx,
				"UPDATE relations SET from_node_id = ?, to_node_id = ? WHERE id = ?",
				newFrom, newTo, e.id); err != nil {
				return err
			}
			redirected++
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_nodes WHERE node_rowid IN (
				SELECT row_id FROM nodes WHERE id = ?
			)`, secondaryID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE id = ?", secondaryID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	return redirected, err
}

// --- Embedding operations ---

// InsertNodeEmbedding stores a vector embedding for a node row.
func (s *Store) InsertNodeEmbedding(ctx context.Context, nodeRowID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_nodes (node_rowid, embedding) VALUES (?, ?)",
		nodeRowID, serializeFloat32(embedding))
	return err
}

// knnOverfetch widens the raw vector window ahead of the brand and
// type filter. The vec index is global, so without over-fetching a
// brand's true neighbour can be crowded out of a small window by
// nearer vectors belonging to other brands.
const knnOverfetch = 16

// NearestNodes returns up to k nodes of one brand and node type,
// nearest first. The raw KNN window is over-fetched before filtering;
// past knnOverfetch*k foreign vectors between the query and a brand's
// node, that node can still be missed, so callers needing completeness
// must combine this with a direct scan.
func (s *Store) NearestNodes(ctx context.Context, brandID, nodeType string, embedding []float32, k int) ([]NodeMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.row_id, n.id, n.brand_id, n.node_type, n.text, n.summary, n.segment,
			n.source_document_id, n.source_quote, n.confidence, n.verified_by_user,
			n.created_at, v.distance
		FROM (SELECT node_rowid, distance FROM vec_nodes WHERE embedding MATCH ? AND k = ?) v
		JOIN nodes n ON n.row_id = v.node_rowid
		WHERE n.brand_id = ? AND n.node_type = ?
		ORDER BY v.distance
		LIMIT ?
	`, serializeFloat32(embedding), k*knnOverfetch, brandID, nodeType, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []NodeMatch
	for rows.Next() {
		var m NodeMatch
		var summary, segment, docID, quote sql.NullString
		if err := rows.Scan(&m.Node.RowID, &m.Node.ID, &m.Node.BrandID,
			&m.Node.NodeType, &m.Node.Text, &summary, &segment, &docID, &quote,
			&m.Node.Confidence, &m.Node.VerifiedByUser, &m.Node.CreatedAt,
			&m.Distance); err != nil {
			return nil, err
		}
		m.Node.Summary = summary.String
		m.Node.Segment = segment.String
		m.Node.SourceDocumentID = docID.String
		m.Node.SourceQuote = quote.String
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// --- Document operations ---

// UpsertDocument inserts or updates a document record keyed by
// (brand_id, name). The stored id survives updates so node provenance
// stays stable across re-ingests.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (string, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, brand_id, name, doc_type, content, content_hash, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(brand_id, name) DO UPDATE SET
			doc_type = excluded.doc_type,
			content = excluded.content,
			content_hash = excluded.content_hash,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`, doc.ID, doc.BrandID, doc.Name, doc.DocType, doc.Content, doc.ContentHash, doc.Status)
	if err != nil {
		return "", err
	}

	var id string
	row := s.db.QueryRowContext(ctx,
		"SELECT id FROM documents WHERE brand_id = ? AND name = ?",
		doc.BrandID, doc.Name)
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// GetDocument retrieves a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	doc := &Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, brand_id, name, doc_type, content, content_hash, status, created_at, updated_at
		FROM documents WHERE id = ?
	`, id).Scan(&doc.ID, &doc.BrandID, &doc.Name, &doc.DocType,
		&doc.Content, &doc.ContentHash, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocumentByName retrieves a document by its (brand, name) key.
func (s *Store) GetDocumentByName(ctx context.Context, brandID, name string) (*Document, error) {
	doc := &Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, brand_id, name, doc_type, content, content_hash, status, created_at, updated_at
		FROM documents WHERE brand_id = ? AND name = ?
	`, brandID, name).Scan(&doc.ID, &doc.BrandID, &doc.Name, &doc.DocType,
		&doc.Content, &doc.ContentHash, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all documents for a brand. Content is omitted;
// use GetDocument when the raw text is needed.
func (s *Store) ListDocuments(ctx context.Context, brandID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brand_id, name, doc_type, content_hash, status, created_at, updated_at
		FROM documents WHERE brand_id = ? ORDER BY created_at DESC
	`, brandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.BrandID, &d.Name, &d.DocType,
			&d.ContentHash, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus updates just the status field.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	return err
}

// DeleteDocumentGraph removes every node sourced from the document along
// with its embeddings; relations touching those nodes go with them via FK
// cascade. The document record itself is kept so a forced re-sync keeps
// its identity. Returns the node and relation counts removed.
func (s *Store) DeleteDocumentGraph(ctx context.Context, documentID string) (nodes, relations int, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM relations
			WHERE from_node_id IN (SELECT id FROM nodes WHERE source_document_id = ?)
			   OR to_node_id IN (SELECT id FROM nodes WHERE source_document_id = ?)
		`, documentID, documentID).Scan(&relations); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_nodes WHERE node_rowid IN (
				SELECT row_id FROM nodes WHERE source_document_id = ?
			)`, documentID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"DELETE FROM nodes WHERE source_document_id = ?", documentID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		nodes = int(n)
		return nil
	})
	return nodes, relations, err
}

// --- Persona operations ---

// UpsertPersona inserts or replaces a persona mirror row.
func (s *Store) UpsertPersona(ctx context.Context, p Persona) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO personas (id, brand_id, name, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			payload = excluded.payload
	`, p.ID, p.BrandID, p.Name, nullable(p.Payload))
	return err
}

// ListPersonas returns all personas for a brand.
func (s *Store) ListPersonas(ctx context.Context, brandID string) ([]Persona, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brand_id, name, payload, created_at
		FROM personas WHERE brand_id = ? ORDER BY created_at
	`, brandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var personas []Persona
	for rows.Next() {
		var p Persona
		var payload sql.NullString
		if err := rows.Scan(&p.ID, &p.BrandID, &p.Name, &payload, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Payload = payload.String
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

// --- Stats ---

// GraphStats holds counts of key objects in one brand's graph.
type GraphStats struct {
	Nodes      int `json:"nodes"`
	Relations  int `json:"relations"`
	Embeddings int `json:"embeddings"`
	Documents  int `json:"documents"`
	Personas   int `json:"personas"`
}

// Stats returns object counts for a brand's graph.
func (s *Store) Stats(ctx context.Context, brandID string) (*GraphStats, error) {
	stats := &GraphStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM nodes WHERE brand_id = ?", &stats.Nodes},
		{"SELECT COUNT(*) FROM relations WHERE brand_id = ?", &stats.Relations},
		{"SELECT COUNT(*) FROM vec_nodes WHERE node_rowid IN (SELECT row_id FROM nodes WHERE brand_id = ?)", &stats.Embeddings},
		{"SELECT COUNT(*) FROM documents WHERE brand_id = ?", &stats.Documents},
		{"SELECT COUNT(*) FROM personas WHERE brand_id = ?", &stats.Personas},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, brandID).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// nullable maps "" to NULL so optional text columns stay NULL in storage.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
