package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiskLevel is the ordered outbreak risk category.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ValidRiskLevel checks if the given level is a known value.
func ValidRiskLevel(r RiskLevel) bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Rank returns the ordering position of the level (low=0 .. critical=3),
// or -1 for unknown values.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return -1
}

// Forecast is one outbreak prediction for a region and time window.
// EndDate is derived at creation (StartDate + horizon weeks). Case bounds
// are min/max/mean over the prediction series; all three are nil when the
// series was empty — never zero, which would imply a data point.
type Forecast struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"user_id"`
	Location     string           `json:"location"`
	Region       string           `json:"region"`
	Country      string           `json:"country"`
	Latitude     *float64         `json:"latitude,omitempty"`
	Longitude    *float64         `json:"longitude,omitempty"`
	StartDate    time.Time        `json:"start_date"`
	EndDate      time.Time        `json:"end_date"`
	RiskLevel    RiskLevel        `json:"risk_level"`
	CasesLow     *decimal.Decimal `json:"cases_low,omitempty"`
	CasesHigh    *decimal.Decimal `json:"cases_high,omitempty"`
	CasesMean    *decimal.Decimal `json:"cases_mean,omitempty"`
	Temperature  *decimal.Decimal `json:"temperature,omitempty"`
	Rainfall     *decimal.Decimal `json:"rainfall,omitempty"`
	Humidity     *decimal.Decimal `json:"humidity,omitempty"`
	ModelVersion string           `json:"model_version"`
	Confidence   *decimal.Decimal `json:"confidence,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Active reports whether the forecast window still covers now.
// Derived, never stored.
func (f *Forecast) Active(now time.Time) bool {
	return !f.EndDate.Before(now)
}

// ForecastWithOwner joins the owner display fields.
type ForecastWithOwner struct {
	Forecast
	Owner OwnerSummary `json:"owner"`
}

// ForecastFilters are conjunctive list predicates. Active filters on the
// derived window (end_date relative to now); date bounds are inclusive on
// start_date.
type ForecastFilters struct {
	OwnerID   *uuid.UUID
	Region    *string
	Country   *string
	RiskLevel *RiskLevel
	Active    *bool
	FromDate  *time.Time
	ToDate    *time.Time
}

// ForecastPatch carries partial updates. The derived fields (dates, case
// bounds) are not patchable.
type ForecastPatch struct {
	Location    Optional[string]          `json:"location"`
	Region      Optional[string]          `json:"region"`
	Country     Optional[string]          `json:"country"`
	Latitude    Optional[float64]         `json:"latitude"`
	Longitude   Optional[float64]         `json:"longitude"`
	RiskLevel   Optional[RiskLevel]       `json:"risk_level"`
	Temperature Optional[decimal.Decimal] `json:"temperature"`
	Rainfall    Optional[decimal.Decimal] `json:"rainfall"`
	Humidity    Optional[decimal.Decimal] `json:"humidity"`
	Confidence  Optional[decimal.Decimal] `json:"confidence"`
}

// ForecastStats summarizes one owner's forecasts. HighRisk counts high and
// critical levels together.
type ForecastStats struct {
	Total          int64      `json:"total"`
	Active         int64      `json:"active"`
	HighRisk       int64      `json:"high_risk"`
	LastForecastAt *time.Time `json:"last_forecast_at,omitempty"`
}
