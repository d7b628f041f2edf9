package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const (
	documentsPrefix = "opinions/documents"
	byHashPrefix    = "opinions/by_hash"
)

// handleListDocuments lists published opinions.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ps := s.orchestrator.PathstoreClient()
	if ps == nil {
		jsonError(w, "document store not configured", http.StatusServiceUnavailable)
		return
	}

	children, err := ps.ListChildren(r.Context(), documentsPrefix, 200)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusBadGateway)
		return
	}

	docs := make([]map[string]any, 0, len(children))
	for _, child := range children {
		docs = append(docs, map[string]any{
			"key":   child.Key,
			"value": child.Value,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleDeleteDocument removes a published opinion and its hash index entry.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ps := s.orchestrator.PathstoreClient()
	if ps == nil {
		jsonError(w, "document store not configured", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	metaKey := documentsPrefix + "/" + chi.URLParam(r, "docID")
	meta, err := ps.GetNode(ctx, metaKey)
	if err != nil {
		jsonError(w, "failed to read document: "+err.Error(), http.StatusBadGateway)
		return
	}
	if meta == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}

	var m struct {
		ContentHash string `json:"content_hash"`
	}
	hashDeleted := false
	if err := json.Unmarshal(meta.Value, &m); err == nil && m.ContentHash != "" {
		if err := ps.DeleteNode(ctx, byHashPrefix+"/"+m.ContentHash, false); err != nil {
			s.log.Warn("hash index delete failed", "hash", m.ContentHash, "error", err)
		} else {
			hashDeleted = true
		}
	}

	if err := ps.DeleteNode(ctx, metaKey, false); err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":      true,
		"hash_deleted": hashDeleted,
	})
}
