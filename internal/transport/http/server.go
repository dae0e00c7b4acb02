// Package http exposes the ingestion and search operations over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/indexer"
	"github.com/voyago/tripdex/internal/search"
)

// Ingester is the pipeline surface the API writes through.
type Ingester interface {
	Upsert(ctx context.Context, raw indexer.RawDocument) (domain.DocState, error)
	UpsertBatch(ctx context.Context, docs []indexer.RawDocument) map[string]domain.DocState
	Delete(id string) bool
}

// Searcher is the retrieval surface the API reads through.
type Searcher interface {
	Search(ctx context.Context, query string, mode domain.Mode, limit int) (*search.Response, error)
}

// Handler serves the document and search endpoints.
type Handler struct {
	ingester Ingester
	searcher Searcher
	logger   *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(ingester Ingester, searcher Searcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ingester: ingester, searcher: searcher, logger: logger}
}

// Routes mounts the API endpoints on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Put("/documents/{docID}", h.upsertDocument)
	r.Post("/documents", h.upsertBatch)
	r.Delete("/documents/{docID}", h.deleteDocument)
	r.Post("/search", h.search)
	r.Get("/healthz", h.healthz)
}

type upsertRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type upsertResponse struct {
	DocID string `json:"doc_id"`
	State string `json:"state"`
}

func (h *Handler) upsertDocument(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	raw := indexer.RawDocument{
		ID:    chi.URLParam(r, "docID"),
		Title: req.Title,
		Body:  req.Body,
	}
	state, err := h.ingester.Upsert(r.Context(), raw)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, upsertResponse{DocID: raw.ID, State: string(state)})
}

type batchRequest struct {
	Documents []indexer.RawDocument `json:"documents"`
}

type batchResponse struct {
	States map[string]string `json:"states"`
}

func (h *Handler) upsertBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents must not be empty")
		return
	}

	states := h.ingester.UpsertBatch(r.Context(), req.Documents)
	resp := batchResponse{States: make(map[string]string, len(states))}
	for id, s := range states {
		resp.States[id] = string(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "docID")
	if !h.ingester.Delete(id) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
	Limit int    `json:"limit"`
}

type searchHit struct {
	DocID   string   `json:"doc_id"`
	Score   float64  `json:"score"`
	Sources []string `json:"sources"`
}

type searchFilter struct {
	City       string   `json:"city,omitempty"`
	Country    string   `json:"country,omitempty"`
	Activities []string `json:"activities,omitempty"`
}

type searchResponse struct {
	Results         []searchHit  `json:"results"`
	Filter          searchFilter `json:"filter"`
	Partial         bool         `json:"partial"`
	RewriteDegraded bool         `json:"rewrite_degraded"`
	LexicalCount    int          `json:"lexical_count"`
	VectorCount     int          `json:"vector_count"`
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	result, err := h.searcher.Search(r.Context(), req.Query, mode, req.Limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := searchResponse{
		Results: make([]searchHit, 0, len(result.Results)),
		Filter: searchFilter{
			City:       result.Filter.City,
			Country:    result.Filter.Country,
			Activities: result.Filter.Activities,
		},
		Partial:         result.Partial,
		RewriteDegraded: result.RewriteDegraded,
		LexicalCount:    result.LexicalCount,
		VectorCount:     result.VectorCount,
	}
	for _, hit := range result.Results {
		sources := make([]string, len(hit.Sources))
		for i, s := range hit.Sources {
			sources[i] = string(s)
		}
		resp.Results = append(resp.Results, searchHit{
			DocID:   hit.DocID,
			Score:   hit.FusedScore,
			Sources: sources,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformedDocument), errors.Is(err, domain.ErrUnsupportedMode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrTotalRetrievalFailure), errors.Is(err, domain.ErrProviderUnavailable):
		h.logger.Error("upstream failure", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
