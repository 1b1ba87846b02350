package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/auth"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
	"github.com/foresee-health/outbreaklens-engine/pkg/services"
)

// ForecastsHandler handles forecast record HTTP requests. Creation goes
// through the forecast endpoint in the predict handler.
type ForecastsHandler struct {
	forecastService services.ForecastService
	userService     services.UserService
	logger          *zap.Logger
}

// NewForecastsHandler creates a new forecasts handler.
func NewForecastsHandler(forecastService services.ForecastService, userService services.UserService, logger *zap.Logger) *ForecastsHandler {
	return &ForecastsHandler{
		forecastService: forecastService,
		userService:     userService,
		logger:          logger,
	}
}

// RegisterRoutes registers the forecasts handler's routes on the given mux.
func (h *ForecastsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/forecasts", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/forecasts/recent", authMiddleware.RequireAuth(h.Recent))
	mux.HandleFunc("GET /api/forecasts/stats", authMiddleware.RequireAuth(h.Stats))
	mux.HandleFunc("GET /api/forecasts/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PATCH /api/forecasts/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/forecasts/{id}", authMiddleware.RequireAuth(h.Delete))
}

// List handles GET /api/forecasts
// Returns the caller's forecasts, filtered and paginated. The active
// filter selects on the forecast window relative to now.
func (h *ForecastsHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	filters, err := parseForecastFilters(r)
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

	result, err := h.forecastService.List(r.Context(), owner.ID, filters, page)
	if err != nil {
		writeServiceError(w, err, h.logger, "list forecasts")
		return
	}

	response := ListDTO[ForecastDTO]{
		Items:  make([]ForecastDTO, 0, len(result.Items)),
		Total:  result.Total,
		Offset: result.Offset,
		Limit:  result.Limit,
	}
	for _, f := range result.Items {
		response.Items = append(response.Items, buildForecastDTO(f))
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Recent handles GET /api/forecasts/recent
func (h *ForecastsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	items, err := h.forecastService.Recent(r.Context(), owner.ID)
	if err != nil {
		writeServiceError(w, err, h.logger, "list recent forecasts")
		return
	}

	dtos := make([]ForecastDTO, 0, len(items))
	for _, f := range items {
		dtos = append(dtos, buildForecastDTO(f))
	}

	if err := WriteJSON(w, http.StatusOK, dtos); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stats handles GET /api/forecasts/stats
func (h *ForecastsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	stats, err := h.forecastService.Stats(r.Context(), owner.ID)
	if err != nil {
		writeServiceError(w, err, h.logger, "get forecast stats")
		return
	}

	if err := WriteJSON(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/forecasts/{id}
func (h *ForecastsHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}
	id, ok := ParseRecordID(w, r, h.logger)
	if !ok {
		return
	}

	forecast, err := h.forecastService.Get(r.Context(), id, owner.ID)
	if err != nil {
		writeServiceError(w, err, h.logger, "get forecast")
		return
	}

	if err := WriteJSON(w, http.StatusOK, buildForecastWithOwnerDTO(forecast)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/forecasts/{id}
// The derived fields (window, case bounds) are not patchable and are
// silently absent from the patch shape.
func (h *ForecastsHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}
	id, ok := ParseRecordID(w, r, h.logger)
	if !ok {
		return
	}

	var patch models.ForecastPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	forecast, err := h.forecastService.Update(r.Context(), id, owner.ID, patch)
	if err != nil {
		writeServiceError(w, err, h.logger, "update forecast")
		return
	}

	if err := WriteJSON(w, http.StatusOK, buildForecastDTO(forecast)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/forecasts/{id}
func (h *ForecastsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}
	id, ok := ParseRecordID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.forecastService.Delete(r.Context(), id, owner.ID); err != nil {
		writeServiceError(w, err, h.logger, "delete forecast")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
