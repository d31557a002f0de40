package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/compliance"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/verify"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo         domain.Repository
	cache        domain.Cache
	bus          domain.EventBus
	orchestrator *verify.Orchestrator
	checks       *compliance.Runner
	version      string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, orchestrator *verify.Orchestrator, checks *compliance.Runner, version string) *Handler {
	return &Handler{
		repo:         repo,
		cache:        cache,
		bus:          bus,
		orchestrator: orchestrator,
		checks:       checks,
		version:      version,
	}
}

// SubmitRequest is the request body for POST /requests.
type SubmitRequest struct {
	CustomerID   string            `json:"customerId"`
	AccountType  string            `json:"accountType"`
	DeclaredData map[string]string `json:"declaredData"`
}

// SubmitVerification handles POST /requests.
func (h *Handler) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.CustomerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customerId is required",
		})
		return
	}
	if req.AccountType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "accountType is required",
		})
		return
	}

	created, err := h.orchestrator.Submit(r.Context(), req.CustomerID, req.AccountType, req.DeclaredData)
	if err != nil {
		slog.Error("failed to submit verification request", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to submit request",
		})
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// AttachDocumentRequest is the request body for POST /requests/{id}/documents.
type AttachDocumentRequest struct {
	Type    string `json:"type"`
	FileRef string `json:"fileRef"`
}

// AttachDocument handles POST /requests/{id}/documents.
func (h *Handler) AttachDocument(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	var req AttachDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Type == "" || req.FileRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "type and fileRef are required",
		})
		return
	}

	doc, err := h.orchestrator.AttachDocument(r.Context(), requestID, domain.DocumentType(req.Type), req.FileRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "request not found",
			})
			return
		}
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// ProcessVerification handles POST /requests/{id}/process. Runs the
// pipeline synchronously and returns the outcome.
func (h *Handler) ProcessVerification(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	outcome, err := h.orchestrator.Process(r.Context(), requestID)
	if err != nil {
		h.writeProcessError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// ReprocessVerification handles POST /requests/{id}/reprocess. Returns a
// terminal request to pending and runs the pipeline again.
func (h *Handler) ReprocessVerification(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	outcome, err := h.orchestrator.Reprocess(r.Context(), requestID)
	if err != nil {
		h.writeProcessError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) writeProcessError(w http.ResponseWriter, requestID string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "request not found",
		})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
	default:
		slog.Error("verification processing failed", "request_id", requestID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "verification processing failed",
		})
	}
}

// GetRequest handles GET /requests/{id}.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	req, err := h.repo.GetRequest(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "request not found",
			})
			return
		}
		slog.Error("failed to get request", "id", requestID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get request",
		})
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// ListResults handles GET /requests/{id}/results: the per-check audit trail.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	entries, err := h.repo.ListAuditEntries(r.Context(), requestID)
	if err != nil {
		slog.Error("failed to list audit entries", "id", requestID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list results",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": entries,
		"count":   len(entries),
	})
}

// ListDiscrepancies handles GET /requests/{id}/discrepancies.
func (h *Handler) ListDiscrepancies(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	discrepancies, err := h.repo.ListDiscrepancies(r.Context(), requestID)
	if err != nil {
		slog.Error("failed to list discrepancies", "id", requestID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list discrepancies",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"discrepancies": discrepancies,
		"count":         len(discrepancies),
	})
}

// ResolveDiscrepancyRequest is the request body for PUT /discrepancies/{id}/resolution.
type ResolveDiscrepancyRequest struct {
	Status     string `json:"status"`
	ResolvedBy string `json:"resolvedBy"`
	Note       string `json:"note,omitempty"`
}

// ResolveDiscrepancy handles PUT /discrepancies/{id}/resolution.
func (h *Handler) ResolveDiscrepancy(w http.ResponseWriter, r *http.Request) {
	discrepancyID := chi.URLParam(r, "id")

	var req ResolveDiscrepancyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.ResolvedBy == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "resolvedBy is required",
		})
		return
	}

	err := h.repo.ResolveDiscrepancy(r.Context(), discrepancyID, domain.DiscrepancyResolution{
		Status:     domain.ResolutionStatus(req.Status),
		ResolvedBy: req.ResolvedBy,
		Note:       req.Note,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "resolved",
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "discrepancy not found",
		})
	case errors.Is(err, domain.ErrAlreadyResolved):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "discrepancy already resolved",
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}
}

// ListRules handles GET /rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.repo.ListRuleDefinitions(r.Context())
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateRule handles POST /rules: validates and persists a rule definition.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.RuleDefinition
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.Weight == 0 {
		rule.Weight = 1.0
	}

	if err := h.checks.ValidateRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SaveRuleDefinition(r.Context(), &rule); err != nil {
		slog.Error("failed to save rule definition", "code", rule.Code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("rule created", "id", rule.ID, "code", rule.Code)
	writeJSON(w, http.StatusCreated, rule)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
