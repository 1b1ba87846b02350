package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/auth"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
	"github.com/foresee-health/outbreaklens-engine/pkg/services"
)

// CreateReportRequest is the request body for report creation. Status is
// not accepted; every report starts as a draft.
type CreateReportRequest struct {
	Title    string            `json:"title"`
	Type     models.ReportType `json:"type"`
	FromDate *time.Time        `json:"from_date"`
	ToDate   *time.Time        `json:"to_date"`
	Location *string           `json:"location"`
	Content  map[string]any    `json:"content"`
}

// ReportsHandler handles report record HTTP requests, including the
// lifecycle endpoints.
type ReportsHandler struct {
	reportService services.ReportService
	userService   services.UserService
	logger        *zap.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(reportService services.ReportService, userService services.UserService, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{
		reportService: reportService,
		userService:   userService,
		logger:        logger,
	}
}

// RegisterRoutes registers the reports handler's routes on the given mux.
func (h *ReportsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/reports", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/reports", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/reports/recent", authMiddleware.RequireAuth(h.Recent))
	mux.HandleFunc("GET /api/reports/stats", authMiddleware.RequireAuth(h.Stats))
	mux.HandleFunc("GET /api/reports/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PATCH /api/reports/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/reports/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("POST /api/reports/{id}/submit", authMiddleware.RequireAuth(h.Submit))
	mux.HandleFunc("POST /api/reports/{id}/publish", authMiddleware.RequireAuth(h.Publish))
	mux.HandleFunc("POST /api/reports/{id}/archive", authMiddleware.RequireAuth(h.Archive))
}

// Create handles POST /api/reports
func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	var req CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	report, err := h.reportService.Create(r.Context(), owner.ID, services.CreateReportInput{
		Title:    req.Title,
		Type:     req.Type,
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
		Location: req.Location,
		Content:  req.Content,
	})
	if err != nil {
		writeServiceError(w, err, h.logger, "create report")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, buildReportDTO(report)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/reports
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	filters, err := parseReportFilters(r)
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

	result, err := h.reportService.List(r.Context(), owner.ID, filters, page)
	if err != nil {
		writeServiceError(w, err, h.logger, "list reports")
		return
	}

	response := ListDTO[ReportDTO]{
		Items:  make([]ReportDTO, 0, len(result.Items)),
		Total:  result.Total,
		Offset: result.Offset,
		Limit:  result.Limit,
	}
	for _, rp := range result.Items {
		response.Items = append(response.Items, buildReportDTO(rp))
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Recent handles GET /api/reports/recent
func (h *ReportsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	items, err := h.reportService.Recent(r.Context(), owner.ID)
	if err != nil {
		writeServiceError(w, err, h.logger, "list recent reports")
		return
	}

	dtos := make([]ReportDTO, 0, len(items))
	for _, rp := range items {
		dtos = append(dtos, buildReportDTO(rp))
	}

	if err := WriteJSON(w, http.StatusOK, dtos); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stats handles GET /api/reports/stats
func (h *ReportsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	stats, err := h.reportService.Stats(r.Context(), owner.ID)
	if err != nil {
		writeServiceError(w, err, h.logger, "get report stats")
		return
	}

	if err := WriteJSON(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/reports/{id}
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}
	id, ok := ParseRecordID(w, r, h.logger)
	if !ok {
		return
	}

	report, err := h.reportService.Get(r.Context(), id, owner.ID)
	if err != nil {
		writeServiceError(w, err, h.logger, "get report")
		return
	}

	if err := WriteJSON(w, http.StatusOK, buildReportWithOwnerDTO(report)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/reports/{id}
// Status is not patchable; lifecycle moves use the dedicated endpoints.
func (h *ReportsHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}
	id, ok := ParseRecordID(w, r, h.logger)
	if !ok {
		return
	}

	var patch models.ReportPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	report, err := h.reportService.Update(r.Context(), id, owner.ID, patch)
	if err != nil {
		writeServiceError(w, err, h.logger, "update report")
		return
	}

	if err := WriteJSON(w, http.StatusOK, buildReportDTO(report)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/reports/{id}
func (h *ReportsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}
	id, ok := ParseRecordID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.reportService.Delete(r.Context(), id, owner.ID); err != nil {
		writeServiceError(w, err, h.logger, "delete report")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Submit handles POST /api/reports/{id}/submit
func (h *ReportsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.reportService.Submit, "submit report")
}

// Publish handles POST /api/reports/{id}/publish
func (h *ReportsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.reportService.Publish, "publish report")
}

// Archive handles POST /api/reports/{id}/archive
func (h *ReportsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.reportService.Archive, "archive report")
}

func (h *ReportsHandler) lifecycle(w http.ResponseWriter, r *http.Request, move func(ctx context.Context, id, ownerID uuid.UUID) (*models.Report, error), action string) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}
	id, ok := ParseRecordID(w, r, h.logger)
	if !ok {
		return
	}

	report, err := move(r.Context(), id, owner.ID)
	if err != nil {
		writeServiceError(w, err, h.logger, action)
		return
	}

	if err := WriteJSON(w, http.StatusOK, buildReportDTO(report)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
