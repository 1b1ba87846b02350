package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/apperrors"
	"github.com/foresee-health/outbreaklens-engine/pkg/inference"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
)

func newDiagnosisService(repo *mockDiagnosisRepo) DiagnosisService {
	return NewDiagnosisService(repo, NewStatsCache(nil, zap.NewNop()), zap.NewNop())
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		result string
		want   models.DiagnosisOutcome
	}{
		{"Parasitized", models.OutcomePositive},
		{"malaria detected", models.OutcomePositive},
		{"POSITIVE", models.OutcomePositive},
		{"infected", models.OutcomePositive},
		{"Uninfected", models.OutcomeNegative},
		{"Malaria not detected", models.OutcomeNegative},
		{"no malaria present", models.OutcomeNegative},
		{"Negative", models.OutcomeNegative},
		{"needs review", models.OutcomeInconclusive},
		{"", models.OutcomeInconclusive},
		{"  Parasitized  ", models.OutcomePositive},
	}

	for _, tt := range tests {
		if got := classifyOutcome(tt.result); got != tt.want {
			t.Errorf("classifyOutcome(%q) = %s, want %s", tt.result, got, tt.want)
		}
	}
}

func TestValidateConfidence(t *testing.T) {
	tests := []struct {
		name       string
		confidence *decimal.Decimal
		wantErr    bool
	}{
		{"nil means no score", nil, false},
		{"zero is allowed", decimalPtr("0"), false},
		{"one is allowed", decimalPtr("1"), false},
		{"mid range", decimalPtr("0.87"), false},
		{"negative rejected", decimalPtr("-0.01"), true},
		{"above one rejected", decimalPtr("1.2"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfidence(tt.confidence)
			if tt.wantErr && !errors.Is(err, apperrors.ErrInvalidConfidence) {
				t.Errorf("expected ErrInvalidConfidence, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateFromImageResultDerivesOutcome(t *testing.T) {
	repo := &mockDiagnosisRepo{}
	svc := newDiagnosisService(repo)
	ownerID := uuid.New()

	got, err := svc.CreateFromImageResult(context.Background(), ownerID, PatientContext{}, nil, &inference.ImagePrediction{
		Result:     "Parasitized",
		Confidence: decimalPtr("0.9731"),
	})
	if err != nil {
		t.Fatalf("CreateFromImageResult failed: %v", err)
	}

	if repo.created == nil {
		t.Fatal("expected a row to be created")
	}
	if got.Outcome != models.OutcomePositive {
		t.Errorf("Outcome = %s, want %s", got.Outcome, models.OutcomePositive)
	}
	if got.UserID != ownerID {
		t.Errorf("UserID = %s, want %s", got.UserID, ownerID)
	}
	if got.ModelVersion != "unknown" {
		t.Errorf("ModelVersion = %q, want unknown fallback", got.ModelVersion)
	}
	if !got.Confidence.Equal(decimal.RequireFromString("0.9731")) {
		t.Errorf("Confidence = %s, want 0.9731", got.Confidence)
	}
}

func TestCreateFromImageResultValidation(t *testing.T) {
	repo := &mockDiagnosisRepo{}
	svc := newDiagnosisService(repo)

	_, err := svc.CreateFromImageResult(context.Background(), uuid.New(), PatientContext{}, nil, &inference.ImagePrediction{})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("empty result: expected ErrValidation, got %v", err)
	}

	_, err = svc.CreateFromImageResult(context.Background(), uuid.New(), PatientContext{}, nil, &inference.ImagePrediction{
		Result:     "Parasitized",
		Confidence: decimalPtr("1.5"),
	})
	if !errors.Is(err, apperrors.ErrInvalidConfidence) {
		t.Errorf("out of range confidence: expected ErrInvalidConfidence, got %v", err)
	}

	if repo.created != nil {
		t.Error("no row should be created on validation failure")
	}
}

func TestCreateFromSymptomResultRequiresSymptoms(t *testing.T) {
	svc := newDiagnosisService(&mockDiagnosisRepo{})

	_, err := svc.CreateFromSymptomResult(context.Background(), uuid.New(), PatientContext{}, nil, &inference.SymptomPrediction{
		Result: "positive",
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestCreateFromSymptomResultKeepsSymptoms(t *testing.T) {
	repo := &mockDiagnosisRepo{}
	svc := newDiagnosisService(repo)
	symptoms := map[string]bool{"fever": true, "chills": false}

	got, err := svc.CreateFromSymptomResult(context.Background(), uuid.New(), PatientContext{}, symptoms, &inference.SymptomPrediction{
		Result:       "Malaria not detected",
		ModelVersion: "symptom-v2",
	})
	if err != nil {
		t.Fatalf("CreateFromSymptomResult failed: %v", err)
	}

	if got.Outcome != models.OutcomeNegative {
		t.Errorf("Outcome = %s, want %s", got.Outcome, models.OutcomeNegative)
	}
	if got.ModelVersion != "symptom-v2" {
		t.Errorf("ModelVersion = %q, want symptom-v2", got.ModelVersion)
	}
	if len(got.Symptoms) != 2 || !got.Symptoms["fever"] {
		t.Errorf("Symptoms = %v, want the submitted map", got.Symptoms)
	}
}

func TestDiagnosisGetHidesForeignRows(t *testing.T) {
	ownerID := uuid.New()
	repo := &mockDiagnosisRepo{
		getResult: &models.DiagnosisWithOwner{
			Diagnosis: models.Diagnosis{ID: uuid.New(), UserID: uuid.New()},
		},
	}
	svc := newDiagnosisService(repo)

	_, err := svc.Get(context.Background(), repo.getResult.ID, ownerID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("foreign row: expected ErrNotFound, got %v", err)
	}
}

func TestDiagnosisUpdateRederivesOutcome(t *testing.T) {
	repo := &mockDiagnosisRepo{updateResult: &models.Diagnosis{}}
	svc := newDiagnosisService(repo)

	_, err := svc.Update(context.Background(), uuid.New(), uuid.New(), models.DiagnosisPatch{
		Result: models.Some("Uninfected"),
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if !repo.updatedPatch.Outcome.Set || !repo.updatedPatch.Outcome.Valid {
		t.Fatal("expected outcome to be patched alongside the result")
	}
	if repo.updatedPatch.Outcome.Value != models.OutcomeNegative {
		t.Errorf("patched outcome = %s, want %s", repo.updatedPatch.Outcome.Value, models.OutcomeNegative)
	}
}

func TestDiagnosisUpdateRejectsClearedResult(t *testing.T) {
	svc := newDiagnosisService(&mockDiagnosisRepo{})

	_, err := svc.Update(context.Background(), uuid.New(), uuid.New(), models.DiagnosisPatch{
		Result: models.Null[string](),
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("null result: expected ErrValidation, got %v", err)
	}
}

func TestDiagnosisUpdateRejectsBadConfidence(t *testing.T) {
	svc := newDiagnosisService(&mockDiagnosisRepo{})

	_, err := svc.Update(context.Background(), uuid.New(), uuid.New(), models.DiagnosisPatch{
		Confidence: models.Some(decimal.RequireFromString("-0.5")),
	})
	if !errors.Is(err, apperrors.ErrInvalidConfidence) {
		t.Errorf("expected ErrInvalidConfidence, got %v", err)
	}
}

func TestDiagnosisDeleteMiss(t *testing.T) {
	svc := newDiagnosisService(&mockDiagnosisRepo{deleteOK: false})

	err := svc.Delete(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDiagnosisStatsFallsThroughWithoutCache(t *testing.T) {
	repo := &mockDiagnosisRepo{stats: &models.DiagnosisStats{Total: 7}}
	svc := newDiagnosisService(repo)

	stats, err := svc.Stats(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 7 {
		t.Errorf("Total = %d, want 7", stats.Total)
	}
	if repo.statsCalls != 1 {
		t.Errorf("statsCalls = %d, want 1", repo.statsCalls)
	}
}

func TestDiagnosisUpdateInvalidatesStats(t *testing.T) {
	repo := &mockDiagnosisRepo{updateResult: &models.Diagnosis{}}
	cache := &recordingStatsCache{}
	svc := NewDiagnosisService(repo, cache, zap.NewNop())

	_, err := svc.Update(context.Background(), uuid.New(), uuid.New(), models.DiagnosisPatch{
		Result: models.Some("Malaria not detected"),
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if len(cache.invalidated) != 1 || cache.invalidated[0] != "diagnoses" {
		t.Errorf("invalidated = %v, want the diagnoses stats entry dropped", cache.invalidated)
	}
}
