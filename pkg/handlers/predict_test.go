package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/inference"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
)

func newPredictServer(client *mockInferenceClient, diagnoses *mockDiagnosisService, forecasts *mockForecastService, users *mockUserService) *http.ServeMux {
	mux := http.NewServeMux()
	handler := NewPredictHandler(client, diagnoses, forecasts, users, zap.NewNop())
	handler.RegisterRoutes(mux, testMiddleware())
	return mux
}

func imageForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", "smear.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake-png-bytes")); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return &buf, writer.FormDataContentType()
}

func TestPredictImagePersistsDiagnosis(t *testing.T) {
	confidence := decimal.RequireFromString("0.97")
	client := &mockInferenceClient{
		imagePrediction: &inference.ImagePrediction{Result: "Parasitized", Confidence: &confidence},
	}
	diagnoses := &mockDiagnosisService{
		diagnosis: &models.Diagnosis{
			ID:      uuid.New(),
			Result:  "Parasitized",
			Outcome: models.OutcomePositive,
		},
	}
	mux := newPredictServer(client, diagnoses, &mockForecastService{}, &mockUserService{user: testOwner()})

	body, contentType := imageForm(t, map[string]string{"patient_age": "34", "location": "Tamale"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/predict/image", body)
	req.Header.Set("Content-Type", contentType)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var dto DiagnosisDTO
	if err := json.NewDecoder(rec.Body).Decode(&dto); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if dto.Outcome != models.OutcomePositive {
		t.Errorf("Outcome = %s, want positive", dto.Outcome)
	}
}

func TestPredictImageRequiresFile(t *testing.T) {
	mux := newPredictServer(&mockInferenceClient{}, &mockDiagnosisService{}, &mockForecastService{}, &mockUserService{user: testOwner()})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("location", "Tamale"); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/predict/image", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "missing_image" {
		t.Errorf("error = %q, want missing_image", body["error"])
	}
}

func TestPredictImageRejectsBadPatientAge(t *testing.T) {
	mux := newPredictServer(&mockInferenceClient{}, &mockDiagnosisService{}, &mockForecastService{}, &mockUserService{user: testOwner()})

	body, contentType := imageForm(t, map[string]string{"patient_age": "-4"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/predict/image", body)
	req.Header.Set("Content-Type", contentType)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "invalid_patient_age" {
		t.Errorf("error = %q, want invalid_patient_age", body["error"])
	}
}

func TestPredictImageInferenceUnavailable(t *testing.T) {
	client := &mockInferenceClient{err: errInferenceDown}
	diagnoses := &mockDiagnosisService{}
	mux := newPredictServer(client, diagnoses, &mockForecastService{}, &mockUserService{user: testOwner()})

	body, contentType := imageForm(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/predict/image", body)
	req.Header.Set("Content-Type", contentType)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "inference_unavailable" {
		t.Errorf("error = %q, want inference_unavailable", body["error"])
	}
}

func TestPredictSymptoms(t *testing.T) {
	client := &mockInferenceClient{
		symptomPrediction: &inference.SymptomPrediction{Result: "negative"},
	}
	diagnoses := &mockDiagnosisService{
		diagnosis: &models.Diagnosis{ID: uuid.New(), Result: "negative", Outcome: models.OutcomeNegative},
	}
	mux := newPredictServer(client, diagnoses, &mockForecastService{}, &mockUserService{user: testOwner()})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/predict/symptoms", strings.NewReader(`{"symptoms": {"fever": true}}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestPredictSymptomsRequiresSymptoms(t *testing.T) {
	mux := newPredictServer(&mockInferenceClient{}, &mockDiagnosisService{}, &mockForecastService{}, &mockUserService{user: testOwner()})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/predict/symptoms", strings.NewReader(`{"symptoms": {}}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "missing_symptoms" {
		t.Errorf("error = %q, want missing_symptoms", body["error"])
	}
}

func TestForecastRegion(t *testing.T) {
	client := &mockInferenceClient{regionForecast: &inference.RegionForecast{}}
	forecasts := &mockForecastService{
		forecast: &models.Forecast{ID: uuid.New(), Region: "Ashanti", RiskLevel: models.RiskHigh},
	}
	mux := newPredictServer(client, &mockDiagnosisService{}, forecasts, &mockUserService{user: testOwner()})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/forecast/region", strings.NewReader(
		`{"region": "Ashanti", "country": "Ghana", "start_date": "2026-04-06T00:00:00Z", "horizon_weeks": 4}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if forecasts.lastInput.Region != "Ashanti" || forecasts.lastInput.HorizonWeeks != 4 {
		t.Errorf("forwarded input = %+v, want region Ashanti horizon 4", forecasts.lastInput)
	}

	var dto ForecastDTO
	if err := json.NewDecoder(rec.Body).Decode(&dto); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if dto.RiskLevel != models.RiskHigh {
		t.Errorf("RiskLevel = %s, want high", dto.RiskLevel)
	}
}

func TestForecastRegionInferenceUnavailable(t *testing.T) {
	client := &mockInferenceClient{err: errInferenceDown}
	mux := newPredictServer(client, &mockDiagnosisService{}, &mockForecastService{}, &mockUserService{user: testOwner()})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/forecast/region", strings.NewReader(`{"region": "Ashanti"}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}
