// Package inference is the HTTP client for the ML inference service. It
// proxies image and symptom classification plus regional outbreak
// forecasting; persistence of the results happens in the services layer.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/config"
	"github.com/foresee-health/outbreaklens-engine/pkg/logging"
)

// ImagePrediction is the classifier output for a blood smear image.
// Confidence arrives as a JSON number and is decoded as an exact decimal.
type ImagePrediction struct {
	Result          string           `json:"result"`
	Confidence      *decimal.Decimal `json:"confidence,omitempty"`
	ParasiteCount   *int             `json:"parasite_count,omitempty"`
	ParasiteSpecies *string          `json:"parasite_species,omitempty"`
	ModelVersion    string           `json:"model_version"`
	ProcessingMS    *int             `json:"processing_ms,omitempty"`
}

// SymptomRequest is the input for symptom-based classification.
type SymptomRequest struct {
	Symptoms   map[string]bool `json:"symptoms"`
	PatientAge *int            `json:"patient_age,omitempty"`
	PatientSex *string         `json:"patient_sex,omitempty"`
}

// SymptomPrediction is the classifier output for a symptom set.
type SymptomPrediction struct {
	Result       string           `json:"result"`
	Confidence   *decimal.Decimal `json:"confidence,omitempty"`
	ModelVersion string           `json:"model_version"`
	ProcessingMS *int             `json:"processing_ms,omitempty"`
}

// ForecastRequest is the input for a regional outbreak forecast.
type ForecastRequest struct {
	Region       string    `json:"region"`
	Country      string    `json:"country"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	StartDate    time.Time `json:"start_date"`
	HorizonWeeks int       `json:"horizon_weeks"`
}

// WeeklyPrediction is one point of the forecast series.
type WeeklyPrediction struct {
	Week           int             `json:"week"`
	PredictedCases decimal.Decimal `json:"predicted_cases"`
}

// RegionForecast is the forecaster output for one region and horizon.
type RegionForecast struct {
	Region       string             `json:"region"`
	Country      string             `json:"country"`
	Predictions  []WeeklyPrediction `json:"predictions"`
	HotspotScore *float64           `json:"hotspot_score,omitempty"`
	Temperature  *decimal.Decimal   `json:"temperature,omitempty"`
	Rainfall     *decimal.Decimal   `json:"rainfall,omitempty"`
	Humidity     *decimal.Decimal   `json:"humidity,omitempty"`
	Confidence   *decimal.Decimal   `json:"confidence,omitempty"`
	ModelVersion string             `json:"model_version"`
}

// Client talks to the inference service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an inference client from configuration.
func NewClient(cfg *config.InferenceConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
		logger: logger.Named("inference"),
	}
}

// PredictImage submits an image for classification.
func (c *Client) PredictImage(ctx context.Context, filename string, image io.Reader) (*ImagePrediction, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart form: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict/image", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var prediction ImagePrediction
	if err := c.do(req, &prediction); err != nil {
		return nil, err
	}

	return &prediction, nil
}

// PredictSymptoms submits a symptom set for classification.
func (c *Client) PredictSymptoms(ctx context.Context, request SymptomRequest) (*SymptomPrediction, error) {
	var prediction SymptomPrediction
	if err := c.postJSON(ctx, "/predict/symptoms", request, &prediction); err != nil {
		return nil, err
	}
	return &prediction, nil
}

// ForecastRegion requests an outbreak forecast for a region.
func (c *Client) ForecastRegion(ctx context.Context, request ForecastRequest) (*RegionForecast, error) {
	var forecast RegionForecast
	if err := c.postJSON(ctx, "/forecast/region", request, &forecast); err != nil {
		return nil, err
	}
	return &forecast, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("inference service returned error",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.TruncateString(string(raw), 512)),
		)
		return fmt.Errorf("inference service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode inference response: %w", err)
	}

	c.logger.Debug("inference request completed",
		zap.String("path", req.URL.Path),
		zap.Duration("duration", time.Since(start)),
	)

	return nil
}
