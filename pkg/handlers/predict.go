package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/auth"
	"github.com/foresee-health/outbreaklens-engine/pkg/inference"
	"github.com/foresee-health/outbreaklens-engine/pkg/services"
)

const maxImageUploadBytes = 10 << 20

// InferenceClient is the slice of the inference client the predict
// handler needs.
type InferenceClient interface {
	PredictImage(ctx context.Context, filename string, image io.Reader) (*inference.ImagePrediction, error)
	PredictSymptoms(ctx context.Context, request inference.SymptomRequest) (*inference.SymptomPrediction, error)
	ForecastRegion(ctx context.Context, request inference.ForecastRequest) (*inference.RegionForecast, error)
}

// PredictSymptomsRequest is the request body for symptom classification.
type PredictSymptomsRequest struct {
	Symptoms   map[string]bool `json:"symptoms"`
	PatientAge *int            `json:"patient_age"`
	PatientSex *string         `json:"patient_sex"`
	Location   *string         `json:"location"`
	Latitude   *float64        `json:"latitude"`
	Longitude  *float64        `json:"longitude"`
}

// ForecastRegionRequest is the request body for regional forecasting.
type ForecastRegionRequest struct {
	Location     string    `json:"location"`
	Region       string    `json:"region"`
	Country      string    `json:"country"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	StartDate    time.Time `json:"start_date"`
	HorizonWeeks int       `json:"horizon_weeks"`
}

// PredictHandler proxies the inference service and persists its outputs
// as records owned by the caller. An inference failure is reported as a
// bad gateway and nothing is persisted.
type PredictHandler struct {
	inferenceClient  InferenceClient
	diagnosisService services.DiagnosisService
	forecastService  services.ForecastService
	userService      services.UserService
	logger           *zap.Logger
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(inferenceClient InferenceClient, diagnosisService services.DiagnosisService, forecastService services.ForecastService, userService services.UserService, logger *zap.Logger) *PredictHandler {
	return &PredictHandler{
		inferenceClient:  inferenceClient,
		diagnosisService: diagnosisService,
		forecastService:  forecastService,
		userService:      userService,
		logger:           logger,
	}
}

// RegisterRoutes registers the predict handler's routes on the given mux.
func (h *PredictHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/predict/image", authMiddleware.RequireAuth(h.PredictImage))
	mux.HandleFunc("POST /api/predict/symptoms", authMiddleware.RequireAuth(h.PredictSymptoms))
	mux.HandleFunc("POST /api/forecast/region", authMiddleware.RequireAuth(h.ForecastRegion))
}

// PredictImage handles POST /api/predict/image
// Accepts a multipart form with an "image" file plus optional patient
// fields, classifies the image, and persists the diagnosis.
func (h *PredictHandler) PredictImage(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_form", "Invalid multipart form"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "missing_image", "An image file is required"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}
	defer file.Close()

	patient, ok := h.parsePatientForm(w, r)
	if !ok {
		return
	}

	prediction, err := h.inferenceClient.PredictImage(r.Context(), header.Filename, file)
	if err != nil {
		h.logger.Warn("Image prediction failed", zap.Error(err))
		if werr := ErrorResponse(w, http.StatusBadGateway, "inference_unavailable", "Prediction service is unavailable"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	var imageURL *string
	if raw := r.FormValue("image_url"); raw != "" {
		imageURL = &raw
	}

	diagnosis, err := h.diagnosisService.CreateFromImageResult(r.Context(), owner.ID, patient, imageURL, prediction)
	if err != nil {
		writeServiceError(w, err, h.logger, "create diagnosis")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, buildDiagnosisDTO(diagnosis)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// PredictSymptoms handles POST /api/predict/symptoms
// Classifies a symptom set and persists the diagnosis.
func (h *PredictHandler) PredictSymptoms(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	var req PredictSymptomsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}
	if len(req.Symptoms) == 0 {
		if werr := ErrorResponse(w, http.StatusBadRequest, "missing_symptoms", "At least one symptom is required"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	prediction, err := h.inferenceClient.PredictSymptoms(r.Context(), inference.SymptomRequest{
		Symptoms:   req.Symptoms,
		PatientAge: req.PatientAge,
		PatientSex: req.PatientSex,
	})
	if err != nil {
		h.logger.Warn("Symptom prediction failed", zap.Error(err))
		if werr := ErrorResponse(w, http.StatusBadGateway, "inference_unavailable", "Prediction service is unavailable"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	patient := services.PatientContext{
		PatientAge: req.PatientAge,
		PatientSex: req.PatientSex,
		Location:   req.Location,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	}

	diagnosis, err := h.diagnosisService.CreateFromSymptomResult(r.Context(), owner.ID, patient, req.Symptoms, prediction)
	if err != nil {
		writeServiceError(w, err, h.logger, "create diagnosis")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, buildDiagnosisDTO(diagnosis)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ForecastRegion handles POST /api/forecast/region
// Runs the regional outbreak model and persists the forecast with its
// derived window, case bounds, and risk level.
func (h *PredictHandler) ForecastRegion(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.userService, h.logger)
	if !ok {
		return
	}

	var req ForecastRegionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	result, err := h.inferenceClient.ForecastRegion(r.Context(), inference.ForecastRequest{
		Region:       req.Region,
		Country:      req.Country,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		StartDate:    req.StartDate,
		HorizonWeeks: req.HorizonWeeks,
	})
	if err != nil {
		h.logger.Warn("Region forecast failed", zap.Error(err))
		if werr := ErrorResponse(w, http.StatusBadGateway, "inference_unavailable", "Forecast service is unavailable"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	forecast, err := h.forecastService.CreateFromPrediction(r.Context(), owner.ID, services.ForecastInput{
		Location:     req.Location,
		Region:       req.Region,
		Country:      req.Country,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		StartDate:    req.StartDate,
		HorizonWeeks: req.HorizonWeeks,
	}, result)
	if err != nil {
		writeServiceError(w, err, h.logger, "create forecast")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, buildForecastDTO(forecast)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// parsePatientForm reads the optional patient fields from a multipart
// form. Numeric fields that fail to parse are rejected rather than
// silently dropped.
func (h *PredictHandler) parsePatientForm(w http.ResponseWriter, r *http.Request) (services.PatientContext, bool) {
	var patient services.PatientContext

	if raw := r.FormValue("patient_age"); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil || age < 0 {
			if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_patient_age", "Invalid patient age"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
			return patient, false
		}
		patient.PatientAge = &age
	}
	if raw := r.FormValue("patient_sex"); raw != "" {
		patient.PatientSex = &raw
	}
	if raw := r.FormValue("location"); raw != "" {
		patient.Location = &raw
	}
	if raw := r.FormValue("latitude"); raw != "" {
		lat, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_latitude", "Invalid latitude"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
			return patient, false
		}
		patient.Latitude = &lat
	}
	if raw := r.FormValue("longitude"); raw != "" {
		lng, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_longitude", "Invalid longitude"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
			return patient, false
		}
		patient.Longitude = &lng
	}

	return patient, true
}
