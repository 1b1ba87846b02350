package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/apperrors"
	"github.com/foresee-health/outbreaklens-engine/pkg/inference"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
	"github.com/foresee-health/outbreaklens-engine/pkg/repositories"
)

const forecastStatsEntity = "forecasts"

// ForecastInput is the caller-supplied part of a new forecast; everything
// else is derived from the prediction result.
type ForecastInput struct {
	Location     string
	Region       string
	Country      string
	Latitude     *float64
	Longitude    *float64
	StartDate    time.Time
	HorizonWeeks int
}

// ForecastPage is one page of forecasts plus the total match count.
type ForecastPage struct {
	Items  []*models.Forecast `json:"items"`
	Total  int64              `json:"total"`
	Offset int                `json:"offset"`
	Limit  int                `json:"limit"`
}

// ForecastService implements the business rules for forecast records.
type ForecastService interface {
	// CreateFromPrediction persists a forecast built from the model output.
	// The window end, case bounds, and risk level are derived here at
	// creation and are not patchable afterwards.
	CreateFromPrediction(ctx context.Context, ownerID uuid.UUID, input ForecastInput, result *inference.RegionForecast) (*models.Forecast, error)
	Get(ctx context.Context, id, ownerID uuid.UUID) (*models.ForecastWithOwner, error)
	List(ctx context.Context, ownerID uuid.UUID, filters models.ForecastFilters, page models.Page) (*ForecastPage, error)
	Recent(ctx context.Context, ownerID uuid.UUID) ([]*models.Forecast, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, patch models.ForecastPatch) (*models.Forecast, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	Stats(ctx context.Context, ownerID uuid.UUID) (*models.ForecastStats, error)
}

type forecastService struct {
	forecasts repositories.ForecastRepository
	cache     StatsStore
	logger    *zap.Logger
}

// NewForecastService creates a new forecast service.
func NewForecastService(forecasts repositories.ForecastRepository, cache StatsStore, logger *zap.Logger) ForecastService {
	return &forecastService{
		forecasts: forecasts,
		cache:     cache,
		logger:    logger.Named("forecast_service"),
	}
}

// CreateFromPrediction persists a forecast with its derived fields.
func (s *forecastService) CreateFromPrediction(ctx context.Context, ownerID uuid.UUID, input ForecastInput, result *inference.RegionForecast) (*models.Forecast, error) {
	if input.Region == "" {
		return nil, fmt.Errorf("%w: region is required", apperrors.ErrValidation)
	}
	if input.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: start_date is required", apperrors.ErrValidation)
	}
	if input.HorizonWeeks < 1 {
		return nil, fmt.Errorf("%w: horizon_weeks must be at least 1", apperrors.ErrValidation)
	}
	if err := validateConfidence(result.Confidence); err != nil {
		return nil, err
	}

	location := input.Location
	if location == "" {
		location = input.Region
	}

	casesLow, casesHigh, casesMean := caseBounds(result.Predictions)

	forecast := &models.Forecast{
		UserID:       ownerID,
		Location:     location,
		Region:       input.Region,
		Country:      input.Country,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		StartDate:    input.StartDate,
		EndDate:      input.StartDate.AddDate(0, 0, input.HorizonWeeks*7),
		RiskLevel:    riskFromScore(result.HotspotScore),
		CasesLow:     casesLow,
		CasesHigh:    casesHigh,
		CasesMean:    casesMean,
		Temperature:  result.Temperature,
		Rainfall:     result.Rainfall,
		Humidity:     result.Humidity,
		ModelVersion: modelVersionOrUnknown(result.ModelVersion),
		Confidence:   result.Confidence,
	}

	if err := s.forecasts.Create(ctx, forecast); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, forecastStatsEntity, ownerID)
	s.logger.Info("forecast created",
		zap.String("forecast_id", forecast.ID.String()),
		zap.String("region", forecast.Region),
		zap.String("risk_level", string(forecast.RiskLevel)),
	)

	return forecast, nil
}

// Get retrieves one forecast with owner display fields, owner-scoped.
func (s *forecastService) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.ForecastWithOwner, error) {
	forecast, err := s.forecasts.GetByIDWithOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	if forecast.UserID != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return forecast, nil
}

// List returns the owner's forecasts matching the filters, with the total
// count for pagination.
func (s *forecastService) List(ctx context.Context, ownerID uuid.UUID, filters models.ForecastFilters, page models.Page) (*ForecastPage, error) {
	filters.OwnerID = &ownerID
	page = page.Normalize()

	items, err := s.forecasts.List(ctx, filters, page)
	if err != nil {
		return nil, err
	}
	total, err := s.forecasts.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &ForecastPage{Items: items, Total: total, Offset: page.Offset, Limit: page.Limit}, nil
}

// Recent returns the owner's newest forecasts.
func (s *forecastService) Recent(ctx context.Context, ownerID uuid.UUID) ([]*models.Forecast, error) {
	return s.forecasts.RecentByOwner(ctx, ownerID, recentLimit)
}

// Update applies a partial update to the caller-owned fields.
func (s *forecastService) Update(ctx context.Context, id, ownerID uuid.UUID, patch models.ForecastPatch) (*models.Forecast, error) {
	if patch.RiskLevel.Set {
		if !patch.RiskLevel.Valid || !models.ValidRiskLevel(patch.RiskLevel.Value) {
			return nil, fmt.Errorf("%w: invalid risk level", apperrors.ErrValidation)
		}
	}
	if patch.Confidence.Set && patch.Confidence.Valid {
		c := patch.Confidence.Value
		if err := validateConfidence(&c); err != nil {
			return nil, err
		}
	}

	// A changed risk level shifts the high-risk count.
	forecast, err := s.forecasts.Update(ctx, id, ownerID, patch)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, forecastStatsEntity, ownerID)
	return forecast, nil
}

// Delete removes the owner's forecast.
func (s *forecastService) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	deleted, err := s.forecasts.Delete(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.ErrNotFound
	}

	s.cache.Invalidate(ctx, forecastStatsEntity, ownerID)
	return nil
}

// Stats returns the owner's aggregate counts, cached.
func (s *forecastService) Stats(ctx context.Context, ownerID uuid.UUID) (*models.ForecastStats, error) {
	var cached models.ForecastStats
	if s.cache.Get(ctx, forecastStatsEntity, ownerID, &cached) {
		return &cached, nil
	}

	stats, err := s.forecasts.StatsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, forecastStatsEntity, ownerID, stats)
	return stats, nil
}

// caseBounds computes min, max, and mean of the prediction series. An
// empty series yields all nils; a zero would read as a real data point.
func caseBounds(predictions []inference.WeeklyPrediction) (low, high, mean *decimal.Decimal) {
	if len(predictions) == 0 {
		return nil, nil, nil
	}

	min := predictions[0].PredictedCases
	max := predictions[0].PredictedCases
	sum := decimal.Zero
	for _, p := range predictions {
		if p.PredictedCases.LessThan(min) {
			min = p.PredictedCases
		}
		if p.PredictedCases.GreaterThan(max) {
			max = p.PredictedCases
		}
		sum = sum.Add(p.PredictedCases)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(predictions))))

	return &min, &max, &avg
}

// riskFromScore buckets the hotspot score into the ordered risk levels.
// A missing score means the model saw no hotspot signal, which maps to
// low.
func riskFromScore(score *float64) models.RiskLevel {
	if score == nil {
		return models.RiskLow
	}
	switch {
	case *score < 0.25:
		return models.RiskLow
	case *score < 0.5:
		return models.RiskMedium
	case *score < 0.75:
		return models.RiskHigh
	}
	return models.RiskCritical
}

var _ ForecastService = (*forecastService)(nil)
