package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/auth"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
	"github.com/foresee-health/outbreaklens-engine/pkg/services"
)

// The API presents confidence and case figures as JSON numbers. Decimals
// stay exact in the store; the float conversion happens only here at the
// presentation boundary.

// OwnerDTO is the owner summary attached to shareable record views.
type OwnerDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
}

// UserDTO is the API shape of a user profile.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileDTO is a user profile with owned-record counts.
type ProfileDTO struct {
	UserDTO
	DiagnosisCount int64 `json:"diagnosis_count"`
	ForecastCount  int64 `json:"forecast_count"`
	ReportCount    int64 `json:"report_count"`
}

// DiagnosisDTO is the API shape of a diagnosis record.
type DiagnosisDTO struct {
	ID              uuid.UUID               `json:"id"`
	PatientAge      *int                    `json:"patient_age,omitempty"`
	PatientSex      *string                 `json:"patient_sex,omitempty"`
	Location        *string                 `json:"location,omitempty"`
	Latitude        *float64                `json:"latitude,omitempty"`
	Longitude       *float64                `json:"longitude,omitempty"`
	ImageURL        *string                 `json:"image_url,omitempty"`
	Result          string                  `json:"result"`
	Outcome         models.DiagnosisOutcome `json:"outcome"`
	Confidence      *float64                `json:"confidence,omitempty"`
	ParasiteCount   *int                    `json:"parasite_count,omitempty"`
	ParasiteSpecies *string                 `json:"parasite_species,omitempty"`
	Symptoms        map[string]bool         `json:"symptoms,omitempty"`
	ModelVersion    string                  `json:"model_version"`
	ProcessingMS    *int                    `json:"processing_ms,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	Owner           *OwnerDTO               `json:"owner,omitempty"`
}

// ForecastDTO is the API shape of a forecast record. Active is derived
// from the window at render time.
type ForecastDTO struct {
	ID           uuid.UUID        `json:"id"`
	Location     string           `json:"location"`
	Region       string           `json:"region"`
	Country      string           `json:"country"`
	Latitude     *float64         `json:"latitude,omitempty"`
	Longitude    *float64         `json:"longitude,omitempty"`
	StartDate    time.Time        `json:"start_date"`
	EndDate      time.Time        `json:"end_date"`
	Active       bool             `json:"active"`
	RiskLevel    models.RiskLevel `json:"risk_level"`
	CasesLow     *float64         `json:"cases_low,omitempty"`
	CasesHigh    *float64         `json:"cases_high,omitempty"`
	CasesMean    *float64         `json:"cases_mean,omitempty"`
	Temperature  *float64         `json:"temperature,omitempty"`
	Rainfall     *float64         `json:"rainfall,omitempty"`
	Humidity     *float64         `json:"humidity,omitempty"`
	ModelVersion string           `json:"model_version"`
	Confidence   *float64         `json:"confidence,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Owner        *OwnerDTO        `json:"owner,omitempty"`
}

// ReportDTO is the API shape of a report record.
type ReportDTO struct {
	ID          uuid.UUID           `json:"id"`
	Title       string              `json:"title"`
	Type        models.ReportType   `json:"type"`
	Status      models.ReportStatus `json:"status"`
	FromDate    *time.Time          `json:"from_date,omitempty"`
	ToDate      *time.Time          `json:"to_date,omitempty"`
	Location    *string             `json:"location,omitempty"`
	Content     map[string]any      `json:"content,omitempty"`
	PublishedAt *time.Time          `json:"published_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Owner       *OwnerDTO           `json:"owner,omitempty"`
}

// ListDTO is the shared page envelope.
type ListDTO[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
}

func buildUserDTO(user *models.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func buildOwnerDTO(owner models.OwnerSummary) *OwnerDTO {
	return &OwnerDTO{
		ID:        owner.ID,
		Email:     owner.Email,
		FirstName: owner.FirstName,
		LastName:  owner.LastName,
	}
}

func buildDiagnosisDTO(d *models.Diagnosis) DiagnosisDTO {
	return DiagnosisDTO{
		ID:              d.ID,
		PatientAge:      d.PatientAge,
		PatientSex:      d.PatientSex,
		Location:        d.Location,
		Latitude:        d.Latitude,
		Longitude:       d.Longitude,
		ImageURL:        d.ImageURL,
		Result:          d.Result,
		Outcome:         d.Outcome,
		Confidence:      decimalToFloat(d.Confidence),
		ParasiteCount:   d.ParasiteCount,
		ParasiteSpecies: d.ParasiteSpecies,
		Symptoms:        d.Symptoms,
		ModelVersion:    d.ModelVersion,
		ProcessingMS:    d.ProcessingMS,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func buildDiagnosisWithOwnerDTO(d *models.DiagnosisWithOwner) DiagnosisDTO {
	dto := buildDiagnosisDTO(&d.Diagnosis)
	dto.Owner = buildOwnerDTO(d.Owner)
	return dto
}

func buildForecastDTO(f *models.Forecast) ForecastDTO {
	return ForecastDTO{
		ID:           f.ID,
		Location:     f.Location,
		Region:       f.Region,
		Country:      f.Country,
		Latitude:     f.Latitude,
		Longitude:    f.Longitude,
		StartDate:    f.StartDate,
		EndDate:      f.EndDate,
		Active:       f.Active(time.Now()),
		RiskLevel:    f.RiskLevel,
		CasesLow:     decimalToFloat(f.CasesLow),
		CasesHigh:    decimalToFloat(f.CasesHigh),
		CasesMean:    decimalToFloat(f.CasesMean),
		Temperature:  decimalToFloat(f.Temperature),
		Rainfall:     decimalToFloat(f.Rainfall),
		Humidity:     decimalToFloat(f.Humidity),
		ModelVersion: f.ModelVersion,
		Confidence:   decimalToFloat(f.Confidence),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func buildForecastWithOwnerDTO(f *models.ForecastWithOwner) ForecastDTO {
	dto := buildForecastDTO(&f.Forecast)
	dto.Owner = buildOwnerDTO(f.Owner)
	return dto
}

func buildReportDTO(rp *models.Report) ReportDTO {
	return ReportDTO{
		ID:          rp.ID,
		Title:       rp.Title,
		Type:        rp.Type,
		Status:      rp.Status,
		FromDate:    rp.FromDate,
		ToDate:      rp.ToDate,
		Location:    rp.Location,
		Content:     rp.Content,
		PublishedAt: rp.PublishedAt,
		CreatedAt:   rp.CreatedAt,
		UpdatedAt:   rp.UpdatedAt,
	}
}

func buildReportWithOwnerDTO(rp *models.ReportWithOwner) ReportDTO {
	dto := buildReportDTO(&rp.Report)
	dto.Owner = buildOwnerDTO(rp.Owner)
	return dto
}

func decimalToFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return &f
}

// resolveOwner maps the verified session to the local user row that
// owner-scoped operations key on. Responds 401 when the session claims
// are missing and 404 when the identity was never synced.
func resolveOwner(w http.ResponseWriter, r *http.Request, users services.UserService, logger *zap.Logger) (*models.User, bool) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok || claims.Subject == "" {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing authentication"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}

	owner, err := users.ResolveOwner(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err, logger, "resolve user")
		return nil, false
	}

	return owner, true
}
