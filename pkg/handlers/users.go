package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/auth"
	"github.com/foresee-health/outbreaklens-engine/pkg/services"
)

// UsersHandler handles identity sync and profile HTTP requests.
type UsersHandler struct {
	userService services.UserService
	logger      *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(userService services.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers the users handler's routes on the given mux.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/users/sync", authMiddleware.RequireAuth(h.Sync))
	mux.HandleFunc("GET /api/users/me", authMiddleware.RequireAuth(h.Me))
	mux.HandleFunc("DELETE /api/users/me", authMiddleware.RequireAuth(h.DeleteAccount))
}

// Sync handles POST /api/users/sync
// Upserts the local user row from the verified session claims. Idempotent;
// the frontend calls it on every session establishment.
func (h *UsersHandler) Sync(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing authentication"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	user, err := h.userService.SyncFromClaims(r.Context(), claims)
	if err != nil {
		writeServiceError(w, err, h.logger, "sync user")
		return
	}

	if err := WriteJSON(w, http.StatusOK, buildUserDTO(user)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Me handles GET /api/users/me
// Returns the profile with owned-record counts.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing authentication"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err, h.logger, "get profile")
		return
	}

	response := ProfileDTO{
		UserDTO:        buildUserDTO(&profile.User),
		DiagnosisCount: profile.DiagnosisCount,
		ForecastCount:  profile.ForecastCount,
		ReportCount:    profile.ReportCount,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// DeleteAccount handles DELETE /api/users/me
// Removes the user and every record they own.
func (h *UsersHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing authentication"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.userService.DeleteAccount(r.Context(), claims.Subject); err != nil {
		writeServiceError(w, err, h.logger, "delete account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
