package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brandkit/insightgraph"
	"github.com/brandkit/insightgraph/graph"
)

// ingestTimeout caps one document's extraction, including LLM calls.
const ingestTimeout = 10 * time.Minute

type handler struct {
	engine insightgraph.Engine
}

func newHandler(e insightgraph.Engine) *handler {
	return &handler{engine: e}
}

// POST /brands/{brand}/documents
// Accepts multipart file upload or JSON with name/doc_type/text.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	brandID := r.PathValue("brand")
	ctx, cancel := context.WithTimeout(r.Context(), ingestTimeout)
	defer cancel()

	// Try multipart upload first.
	if err := r.ParseMultipartForm(50 << 20); err == nil { // 50MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			tmpPath, cleanup, err := saveUpload(file, header.Filename)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return
			}
			defer cleanup()

			result, err := h.engine.IngestFile(ctx, brandID, tmpPath)
			if err != nil {
				writeIngestError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
			return
		}
	}

	var req struct {
		Name    string `json:"name"`
		DocType string `json:"doc_type"`
		Text    string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'name' and 'text'")
		return
	}
	if req.Name == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "name and text are required")
		return
	}

	result, err := h.engine.IngestText(ctx, brandID, req.Name, req.DocType, req.Text)
	if err != nil {
		writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// saveUpload writes an uploaded file into its own temp directory so
// concurrent uploads sharing a filename cannot collide, while the base
// name survives (it becomes the document's identity downstream). The
// base of the client-supplied name also blocks path traversal.
func saveUpload(src io.Reader, filename string) (path string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", "insightgraph-upload-")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { os.RemoveAll(dir) }

	path = filepath.Join(dir, filepath.Base(filename))
	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		cleanup()
		return "", nil, err
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, insightgraph.ErrBrandRequired),
		errors.Is(err, insightgraph.ErrEmptyDocument),
		errors.Is(err, insightgraph.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		slog.Error("ingest error", "error", err)
	}
}

// POST /documents/{id}/sync
func (h *handler) handleSync(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	var req struct {
		Force bool `json:"force"`
	}
	if r.Body != nil {
		// Body is optional; force defaults to false.
		json.NewDecoder(r.Body).Decode(&req)
	}

	ctx, cancel := context.WithTimeout(r.Context(), ingestTimeout)
	defer cancel()

	result, err := h.engine.SyncDocument(ctx, documentID, req.Force)
	if err != nil {
		if errors.Is(err, insightgraph.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "sync failed")
		slog.Error("sync error", "document_id", documentID, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /brands/{brand}/graph?node_type=&segment=
func (h *handler) handleGraphView(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GraphView(r.Context(), r.PathValue("brand"),
		r.URL.Query().Get("node_type"), r.URL.Query().Get("segment"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load graph")
		slog.Error("graph view error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /brands/{brand}/audit
func (h *handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Audit(r.Context(), r.PathValue("brand"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit failed")
		slog.Error("audit error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET /brands/{brand}/duplicates?threshold=0.6
func (h *handler) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	var threshold float64
	if v := r.URL.Query().Get("threshold"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			writeError(w, http.StatusBadRequest, "threshold must be a number in [0, 1]")
			return
		}
		threshold = parsed
	}

	candidates, err := h.engine.DuplicateCandidates(r.Context(), r.PathValue("brand"), threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "duplicate scan failed")
		slog.Error("duplicates error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

// POST /nodes/merge
func (h *handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PrimaryID    string   `json:"primary_id"`
		SecondaryIDs []string `json:"secondary_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PrimaryID == "" || len(req.SecondaryIDs) == 0 {
		writeError(w, http.StatusBadRequest, "primary_id and secondary_ids are required")
		return
	}

	result, err := h.engine.Merge(r.Context(), req.PrimaryID, req.SecondaryIDs)
	if err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "merge failed")
		slog.Error("merge error", "primary_id", req.PrimaryID, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /brands/{brand}/auto-merge
func (h *handler) handleAutoMerge(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.AutoMerge(r.Context(), r.PathValue("brand"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "auto-merge failed")
		slog.Error("auto-merge error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /brands/{brand}/citations
func (h *handler) handleCitations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := h.engine.Citations(r.Context(), r.PathValue("brand"), req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "citation matching failed")
		slog.Error("citations error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /nodes/{id}/verify
func (h *handler) handleVerifyNode(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("id")

	req := struct {
		Verified bool `json:"verified"`
	}{Verified: true}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.engine.VerifyNode(r.Context(), nodeID, req.Verified); err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			writeError(w, http.StatusNotFound, "node not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "verify failed")
		slog.Error("verify error", "node_id", nodeID, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"node_id": nodeID, "verified": req.Verified})
}

// DELETE /nodes/{id}
func (h *handler) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("id")

	if err := h.engine.DeleteNode(r.Context(), nodeID); err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			writeError(w, http.StatusNotFound, "node not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete node error", "node_id", nodeID, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /brands/{brand}/documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context(), r.PathValue("brand"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		slog.Error("list documents error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// GET /brands/{brand}/personas/pending
func (h *handler) handlePendingPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := h.engine.PendingEnrichmentPersonas(r.Context(), r.PathValue("brand"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending personas")
		slog.Error("pending personas error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"personas": personas})
}

// GET /brands/{brand}/stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context(), r.PathValue("brand"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		slog.Error("stats error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
