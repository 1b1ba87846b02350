package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/auth"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
	"github.com/foresee-health/outbreaklens-engine/pkg/services"
)

// DiagnosesHandler handles diagnosis record HTTP requests. Creation goes
// through the predict endpoints; this handler covers retrieval, partial
// updates, deletion, and stats.
type DiagnosesHandler struct {
	diagnosisService services.DiagnosisService
	userService      services.UserService
	logger           *zap.Logger
}

// NewDiagnosesHandler creates a new diagnoses handler.
func NewDiagnosesHandler(diagnosisService services.DiagnosisService, userService services.UserService, logger *zap.Logger) *DiagnosesHandler {
	return &DiagnosesHandler{
		diagnosisService: diagnosisService,
		userService:      userService,
		logger:           logger,
	}
}

// RegisterRoutes registers the diagnoses handler's routes on the given mux.
func (h *DiagnosesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/diagnoses", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/diagnoses/recent", authMiddleware.RequireAuth(h.Recent))
	mux.HandleFunc("GET /api/diagnoses/stats", authMiddleware.RequireAuth(h.Stats))
	mux.HandleFunc("GET /api/diagnoses/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PATCH /api/diagnoses/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/diagnoses/{id}", authMiddleware.RequireAuth(h.Delete))
}

// List handles GET /api/diagnoses
// Returns the caller's diagnoses, filtered and paginated.
func (h *DiagnosesHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	filters, err := parseDiagnosisFilters(r)
	if err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_filter", err.Error()); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}
	page, err := parsePage(r)
	if err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_pagination", err.Error()); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	result, err := h.diagnosisService.List(r.Context(), owner.ID, filters, page)
	if err != nil {
		writeServiceError(w, err, h.logger, "list diagnoses")
		return
	}

	response := ListDTO[DiagnosisDTO]{
		Items:  make([]DiagnosisDTO, 0, len(result.Items)),
		Total:  result.Total,
		Offset: result.Offset,
		Limit:  result.Limit,
	}
	for _, d := range result.Items {
		response.Items = append(response.Items, buildDiagnosisDTO(d))
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Recent handles GET /api/diagnoses/recent
// Returns the caller's newest diagnoses for dashboard views.
func (h *DiagnosesHandler) Recent(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	items, err := h.diagnosisService.Recent(r.Context(), owner.ID)
	if err != nil {
		writeServiceError(w, err, h.logger, "list recent diagnoses")
		return
	}

	dtos := make([]DiagnosisDTO, 0, len(items))
	for _, d := range items {
		dtos = append(dtos, buildDiagnosisDTO(d))
	}

	if err := WriteJSON(w, http.StatusOK, dtos); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stats handles GET /api/diagnoses/stats
// Returns aggregate counts over the caller's diagnoses.
func (h *DiagnosesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	stats, err := h.diagnosisService.Stats(r.Context(), owner.ID)
	if err != nil {
		writeServiceError(w, err, h.logger, "get diagnosis stats")
		return
	}

	if err := WriteJSON(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/diagnoses/{id}
// Returns one diagnosis with owner details. Foreign records read as 404.
func (h *DiagnosesHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}
	id, ok := ParseRecordID(w, r, h.logger)
	if !ok {
		return
	}

	diagnosis, err := h.diagnosisService.Get(r.Context(), id, owner.ID)
	if err != nil {
		writeServiceError(w, err, h.logger, "get diagnosis")
		return
	}

	if err := WriteJSON(w, http.StatusOK, buildDiagnosisWithOwnerDTO(diagnosis)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/diagnoses/{id}
// Applies a partial update. Omitted fields are untouched; null fields are
// cleared.
func (h *DiagnosesHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}
	id, ok := ParseRecordID(w, r, h.logger)
	if !ok {
		return
	}

	var patch models.DiagnosisPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	diagnosis, err := h.diagnosisService.Update(r.Context(), id, owner.ID, patch)
	if err != nil {
		writeServiceError(w, err, h.logger, "update diagnosis")
		return
	}

	if err := WriteJSON(w, http.StatusOK, buildDiagnosisDTO(diagnosis)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/diagnoses/{id}
func (h *DiagnosesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}
	id, ok := ParseRecordID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.diagnosisService.Delete(r.Context(), id, owner.ID); err != nil {
		writeServiceError(w, err, h.logger, "delete diagnosis")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
