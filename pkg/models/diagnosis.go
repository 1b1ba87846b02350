package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiagnosisOutcome is the enumerated classification of an assessment,
// fixed at creation time. Stats and filters group by this enum; the
// free-text result label is presentation only.
type DiagnosisOutcome string

const (
	OutcomePositive     DiagnosisOutcome = "positive"
	OutcomeNegative     DiagnosisOutcome = "negative"
	OutcomeInconclusive DiagnosisOutcome = "inconclusive"
)

// ValidOutcome checks if the given outcome is a known value.
func ValidOutcome(o DiagnosisOutcome) bool {
	switch o {
	case OutcomePositive, OutcomeNegative, OutcomeInconclusive:
		return true
	}
	return false
}

// Diagnosis is one assessment event, image-based or symptom-based.
// Confidence is an exact decimal in [0,1]; the range is a service-layer
// contract, not a store constraint.
type Diagnosis struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	PatientAge      *int             `json:"patient_age,omitempty"`
	PatientSex      *string          `json:"patient_sex,omitempty"`
	Location        *string          `json:"location,omitempty"`
	Latitude        *float64         `json:"latitude,omitempty"`
	Longitude       *float64         `json:"longitude,omitempty"`
	ImageURL        *string          `json:"image_url,omitempty"`
	Result          string           `json:"result"`
	Outcome         DiagnosisOutcome `json:"outcome"`
	Confidence      *decimal.Decimal `json:"confidence,omitempty"`
	ParasiteCount   *int             `json:"parasite_count,omitempty"`
	ParasiteSpecies *string          `json:"parasite_species,omitempty"`
	Symptoms        map[string]bool  `json:"symptoms,omitempty"`
	ModelVersion    string           `json:"model_version"`
	ProcessingMS    *int             `json:"processing_ms,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// DiagnosisWithOwner joins the owner display fields for shareable views.
type DiagnosisWithOwner struct {
	Diagnosis
	Owner OwnerSummary `json:"owner"`
}

// DiagnosisFilters are conjunctive list predicates. Nil fields impose no
// constraint. String filters are case-insensitive substring matches; date
// bounds are inclusive on created_at.
type DiagnosisFilters struct {
	OwnerID         *uuid.UUID
	Outcome         *DiagnosisOutcome
	Location        *string
	ParasiteSpecies *string
	FromDate        *time.Time
	ToDate          *time.Time
}

// DiagnosisPatch carries partial updates. Unset fields are no-ops; fields
// set to null clear the column. Outcome is recomputed by the service when
// Result changes and is not independently patchable.
type DiagnosisPatch struct {
	PatientAge      Optional[int]             `json:"patient_age"`
	PatientSex      Optional[string]          `json:"patient_sex"`
	Location        Optional[string]          `json:"location"`
	Latitude        Optional[float64]         `json:"latitude"`
	Longitude       Optional[float64]         `json:"longitude"`
	ImageURL        Optional[string]          `json:"image_url"`
	Result          Optional[string]          `json:"result"`
	Confidence      Optional[decimal.Decimal] `json:"confidence"`
	ParasiteCount   Optional[int]             `json:"parasite_count"`
	ParasiteSpecies Optional[string]          `json:"parasite_species"`
	Symptoms        Optional[map[string]bool] `json:"symptoms"`

	// outcome rides along with Result; set by the service only.
	Outcome Optional[DiagnosisOutcome] `json:"-"`
}

// DiagnosisStats summarizes one owner's assessments.
type DiagnosisStats struct {
	Total           int64      `json:"total"`
	Positive        int64      `json:"positive"`
	Negative        int64      `json:"negative"`
	LastDiagnosisAt *time.Time `json:"last_diagnosis_at,omitempty"`
}
