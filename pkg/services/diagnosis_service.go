package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/apperrors"
	"github.com/foresee-health/outbreaklens-engine/pkg/inference"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
	"github.com/foresee-health/outbreaklens-engine/pkg/repositories"
)

const recentLimit = 5

const diagnosisStatsEntity = "diagnoses"

// PatientContext carries the optional patient and location metadata
// attached to a new diagnosis.
type PatientContext struct {
	PatientAge *int
	PatientSex *string
	Location   *string
	Latitude   *float64
	Longitude  *float64
}

// DiagnosisPage is one page of diagnoses plus the total match count.
type DiagnosisPage struct {
	Items  []*models.Diagnosis `json:"items"`
	Total  int64               `json:"total"`
	Offset int                 `json:"offset"`
	Limit  int                 `json:"limit"`
}

// DiagnosisService implements the business rules for assessment records.
type DiagnosisService interface {
	// CreateFromImageResult persists a diagnosis built from an image
	// classifier output. The outcome enum is derived from the result label
	// once, here, and never re-read from the label afterwards.
	CreateFromImageResult(ctx context.Context, ownerID uuid.UUID, patient PatientContext, imageURL *string, prediction *inference.ImagePrediction) (*models.Diagnosis, error)
	// CreateFromSymptomResult persists a diagnosis built from a
	// symptom-based classifier output.
	CreateFromSymptomResult(ctx context.Context, ownerID uuid.UUID, patient PatientContext, symptoms map[string]bool, prediction *inference.SymptomPrediction) (*models.Diagnosis, error)
	Get(ctx context.Context, id, ownerID uuid.UUID) (*models.DiagnosisWithOwner, error)
	List(ctx context.Context, ownerID uuid.UUID, filters models.DiagnosisFilters, page models.Page) (*DiagnosisPage, error)
	Recent(ctx context.Context, ownerID uuid.UUID) ([]*models.Diagnosis, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, patch models.DiagnosisPatch) (*models.Diagnosis, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	Stats(ctx context.Context, ownerID uuid.UUID) (*models.DiagnosisStats, error)
}

type diagnosisService struct {
	diagnoses repositories.DiagnosisRepository
	cache     StatsStore
	logger    *zap.Logger
}

// NewDiagnosisService creates a new diagnosis service.
func NewDiagnosisService(diagnoses repositories.DiagnosisRepository, cache StatsStore, logger *zap.Logger) DiagnosisService {
	return &diagnosisService{
		diagnoses: diagnoses,
		cache:     cache,
		logger:    logger.Named("diagnosis_service"),
	}
}

// CreateFromImageResult persists an image-based assessment.
func (s *diagnosisService) CreateFromImageResult(ctx context.Context, ownerID uuid.UUID, patient PatientContext, imageURL *string, prediction *inference.ImagePrediction) (*models.Diagnosis, error) {
	if prediction.Result == "" {
		return nil, fmt.Errorf("%w: prediction has no result label", apperrors.ErrValidation)
	}
	if err := validateConfidence(prediction.Confidence); err != nil {
		return nil, err
	}

	diagnosis := &models.Diagnosis{
		UserID:          ownerID,
		PatientAge:      patient.PatientAge,
		PatientSex:      patient.PatientSex,
		Location:        patient.Location,
		Latitude:        patient.Latitude,
		Longitude:       patient.Longitude,
		ImageURL:        imageURL,
		Result:          prediction.Result,
		Outcome:         classifyOutcome(prediction.Result),
		Confidence:      prediction.Confidence,
		ParasiteCount:   prediction.ParasiteCount,
		ParasiteSpecies: prediction.ParasiteSpecies,
		ModelVersion:    modelVersionOrUnknown(prediction.ModelVersion),
		ProcessingMS:    prediction.ProcessingMS,
	}

	if err := s.diagnoses.Create(ctx, diagnosis); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, diagnosisStatsEntity, ownerID)
	s.logger.Info("diagnosis created from image",
		zap.String("diagnosis_id", diagnosis.ID.String()),
		zap.String("outcome", string(diagnosis.Outcome)),
	)

	return diagnosis, nil
}

// CreateFromSymptomResult persists a symptom-based assessment.
func (s *diagnosisService) CreateFromSymptomResult(ctx context.Context, ownerID uuid.UUID, patient PatientContext, symptoms map[string]bool, prediction *inference.SymptomPrediction) (*models.Diagnosis, error) {
	if prediction.Result == "" {
		return nil, fmt.Errorf("%w: prediction has no result label", apperrors.ErrValidation)
	}
	if len(symptoms) == 0 {
		return nil, fmt.Errorf("%w: at least one symptom is required", apperrors.ErrValidation)
	}
	if err := validateConfidence(prediction.Confidence); err != nil {
		return nil, err
	}

	diagnosis := &models.Diagnosis{
		UserID:       ownerID,
		PatientAge:   patient.PatientAge,
		PatientSex:   patient.PatientSex,
		Location:     patient.Location,
		Latitude:     patient.Latitude,
		Longitude:    patient.Longitude,
		Result:       prediction.Result,
		Outcome:      classifyOutcome(prediction.Result),
		Confidence:   prediction.Confidence,
		Symptoms:     symptoms,
		ModelVersion: modelVersionOrUnknown(prediction.ModelVersion),
		ProcessingMS: prediction.ProcessingMS,
	}

	if err := s.diagnoses.Create(ctx, diagnosis); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, diagnosisStatsEntity, ownerID)
	s.logger.Info("diagnosis created from symptoms",
		zap.String("diagnosis_id", diagnosis.ID.String()),
		zap.String("outcome", string(diagnosis.Outcome)),
	)

	return diagnosis, nil
}

// Get retrieves one diagnosis with owner display fields, owner-scoped.
func (s *diagnosisService) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.DiagnosisWithOwner, error) {
	diagnosis, err := s.diagnoses.GetByIDWithOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	if diagnosis.UserID != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return diagnosis, nil
}

// List returns the owner's diagnoses matching the filters, with the total
// count for pagination.
func (s *diagnosisService) List(ctx context.Context, ownerID uuid.UUID, filters models.DiagnosisFilters, page models.Page) (*DiagnosisPage, error) {
	filters.OwnerID = &ownerID
	page = page.Normalize()

	items, err := s.diagnoses.List(ctx, filters, page)
	if err != nil {
		return nil, err
	}
	total, err := s.diagnoses.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &DiagnosisPage{Items: items, Total: total, Offset: page.Offset, Limit: page.Limit}, nil
}

// Recent returns the owner's newest diagnoses.
func (s *diagnosisService) Recent(ctx context.Context, ownerID uuid.UUID) ([]*models.Diagnosis, error) {
	return s.diagnoses.RecentByOwner(ctx, ownerID, recentLimit)
}

// Update applies a partial update. When the result label changes, the
// outcome enum is rederived from the new label in the same write.
func (s *diagnosisService) Update(ctx context.Context, id, ownerID uuid.UUID, patch models.DiagnosisPatch) (*models.Diagnosis, error) {
	if patch.Result.Set {
		if !patch.Result.Valid || patch.Result.Value == "" {
			return nil, fmt.Errorf("%w: result cannot be cleared", apperrors.ErrValidation)
		}
		patch.Outcome = models.Some(classifyOutcome(patch.Result.Value))
	}
	if patch.Confidence.Set && patch.Confidence.Valid {
		c := patch.Confidence.Value
		if err := validateConfidence(&c); err != nil {
			return nil, err
		}
	}

	// A rederived outcome shifts the positive/negative counts.
	diagnosis, err := s.diagnoses.Update(ctx, id, ownerID, patch)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, diagnosisStatsEntity, ownerID)
	return diagnosis, nil
}

// Delete removes the owner's diagnosis.
func (s *diagnosisService) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	deleted, err := s.diagnoses.Delete(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.ErrNotFound
	}

	s.cache.Invalidate(ctx, diagnosisStatsEntity, ownerID)
	return nil
}

// Stats returns the owner's aggregate counts, cached.
func (s *diagnosisService) Stats(ctx context.Context, ownerID uuid.UUID) (*models.DiagnosisStats, error) {
	var cached models.DiagnosisStats
	if s.cache.Get(ctx, diagnosisStatsEntity, ownerID, &cached) {
		return &cached, nil
	}

	stats, err := s.diagnoses.StatsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, diagnosisStatsEntity, ownerID, stats)
	return stats, nil
}

// classifyOutcome maps a free-text classifier label to the outcome enum.
// Negation patterns are checked first: "not detected" contains "detected"
// and "uninfected" contains "infected".
func classifyOutcome(result string) models.DiagnosisOutcome {
	label := strings.ToLower(strings.TrimSpace(result))
	switch {
	case label == "":
		return models.OutcomeInconclusive
	case strings.Contains(label, "uninfected"),
		strings.Contains(label, "not detected"),
		strings.Contains(label, "no malaria"),
		strings.Contains(label, "negative"):
		return models.OutcomeNegative
	case strings.Contains(label, "parasitized"),
		strings.Contains(label, "infected"),
		strings.Contains(label, "detected"),
		strings.Contains(label, "positive"):
		return models.OutcomePositive
	}
	return models.OutcomeInconclusive
}

// validateConfidence enforces the [0, 1] range. Nil means no score.
func validateConfidence(confidence *decimal.Decimal) error {
	if confidence == nil {
		return nil
	}
	if confidence.IsNegative() || confidence.GreaterThan(decimal.NewFromInt(1)) {
		return apperrors.ErrInvalidConfidence
	}
	return nil
}

// modelVersionOrUnknown keeps the model_version column non-empty.
func modelVersionOrUnknown(version string) string {
	if version == "" {
		return "unknown"
	}
	return version
}

var _ DiagnosisService = (*diagnosisService)(nil)
