package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/auth"
	"github.com/foresee-health/outbreaklens-engine/pkg/inference"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
	"github.com/foresee-health/outbreaklens-engine/pkg/services"
)

const testClerkID = "user_2abcDEF"

// stubAuthService skips token parsing and returns fixed claims, or an
// error when fail is set.
type stubAuthService struct {
	fail bool
}

func (s *stubAuthService) ValidateRequest(*http.Request) (*auth.SessionClaims, string, error) {
	if s.fail {
		return nil, "", auth.ErrMissingAuthorization
	}
	return &auth.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: testClerkID},
		Email:            "ama@example.org",
	}, "test-token", nil
}

func testMiddleware() *auth.Middleware {
	return auth.NewMiddleware(&stubAuthService{}, zap.NewNop())
}

func failingMiddleware() *auth.Middleware {
	return auth.NewMiddleware(&stubAuthService{fail: true}, zap.NewNop())
}

func testOwner() *models.User {
	return &models.User{
		ID:          uuid.New(),
		ClerkUserID: testClerkID,
		Email:       "ama@example.org",
	}
}

type mockUserService struct {
	user       *models.User
	profile    *models.UserWithStats
	resolveErr error
	syncErr    error
	deleteErr  error
}

func (m *mockUserService) SyncFromClaims(context.Context, *auth.SessionClaims) (*models.User, error) {
	if m.syncErr != nil {
		return nil, m.syncErr
	}
	return m.user, nil
}

func (m *mockUserService) GetProfile(context.Context, string) (*models.UserWithStats, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	return m.profile, nil
}

func (m *mockUserService) ResolveOwner(context.Context, string) (*models.User, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	return m.user, nil
}

func (m *mockUserService) DeleteAccount(context.Context, string) error {
	return m.deleteErr
}

type mockDiagnosisService struct {
	diagnosis   *models.Diagnosis
	withOwner   *models.DiagnosisWithOwner
	page        *services.DiagnosisPage
	stats       *models.DiagnosisStats
	err         error
	lastPage    models.Page
	lastFilters models.DiagnosisFilters
}

func (m *mockDiagnosisService) CreateFromImageResult(_ context.Context, _ uuid.UUID, _ services.PatientContext, _ *string, _ *inference.ImagePrediction) (*models.Diagnosis, error) {
	return m.diagnosis, m.err
}

func (m *mockDiagnosisService) CreateFromSymptomResult(_ context.Context, _ uuid.UUID, _ services.PatientContext, _ map[string]bool, _ *inference.SymptomPrediction) (*models.Diagnosis, error) {
	return m.diagnosis, m.err
}

func (m *mockDiagnosisService) Get(context.Context, uuid.UUID, uuid.UUID) (*models.DiagnosisWithOwner, error) {
	return m.withOwner, m.err
}

func (m *mockDiagnosisService) List(_ context.Context, _ uuid.UUID, filters models.DiagnosisFilters, page models.Page) (*services.DiagnosisPage, error) {
	m.lastFilters = filters
	m.lastPage = page
	return m.page, m.err
}

func (m *mockDiagnosisService) Recent(context.Context, uuid.UUID) ([]*models.Diagnosis, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []*models.Diagnosis{m.diagnosis}, nil
}

func (m *mockDiagnosisService) Update(context.Context, uuid.UUID, uuid.UUID, models.DiagnosisPatch) (*models.Diagnosis, error) {
	return m.diagnosis, m.err
}

func (m *mockDiagnosisService) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	return m.err
}

func (m *mockDiagnosisService) Stats(context.Context, uuid.UUID) (*models.DiagnosisStats, error) {
	return m.stats, m.err
}

type mockForecastService struct {
	forecast  *models.Forecast
	withOwner *models.ForecastWithOwner
	page      *services.ForecastPage
	stats     *models.ForecastStats
	err       error
	lastInput services.ForecastInput
}

func (m *mockForecastService) CreateFromPrediction(_ context.Context, _ uuid.UUID, input services.ForecastInput, _ *inference.RegionForecast) (*models.Forecast, error) {
	m.lastInput = input
	return m.forecast, m.err
}

func (m *mockForecastService) Get(context.Context, uuid.UUID, uuid.UUID) (*models.ForecastWithOwner, error) {
	return m.withOwner, m.err
}

func (m *mockForecastService) List(context.Context, uuid.UUID, models.ForecastFilters, models.Page) (*services.ForecastPage, error) {
	return m.page, m.err
}

func (m *mockForecastService) Recent(context.Context, uuid.UUID) ([]*models.Forecast, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []*models.Forecast{m.forecast}, nil
}

func (m *mockForecastService) Update(context.Context, uuid.UUID, uuid.UUID, models.ForecastPatch) (*models.Forecast, error) {
	return m.forecast, m.err
}

func (m *mockForecastService) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	return m.err
}

func (m *mockForecastService) Stats(context.Context, uuid.UUID) (*models.ForecastStats, error) {
	return m.stats, m.err
}

type mockReportService struct {
	report    *models.Report
	withOwner *models.ReportWithOwner
	page      *services.ReportPage
	stats     *models.ReportStats
	err       error
	lastMove  string
}

func (m *mockReportService) Create(context.Context, uuid.UUID, services.CreateReportInput) (*models.Report, error) {
	return m.report, m.err
}

func (m *mockReportService) Get(context.Context, uuid.UUID, uuid.UUID) (*models.ReportWithOwner, error) {
	return m.withOwner, m.err
}

func (m *mockReportService) List(context.Context, uuid.UUID, models.ReportFilters, models.Page) (*services.ReportPage, error) {
	return m.page, m.err
}

func (m *mockReportService) Recent(context.Context, uuid.UUID) ([]*models.Report, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []*models.Report{m.report}, nil
}

func (m *mockReportService) Update(context.Context, uuid.UUID, uuid.UUID, models.ReportPatch) (*models.Report, error) {
	return m.report, m.err
}

func (m *mockReportService) Submit(context.Context, uuid.UUID, uuid.UUID) (*models.Report, error) {
	m.lastMove = "submit"
	return m.report, m.err
}

func (m *mockReportService) Publish(context.Context, uuid.UUID, uuid.UUID) (*models.Report, error) {
	m.lastMove = "publish"
	return m.report, m.err
}

func (m *mockReportService) Archive(context.Context, uuid.UUID, uuid.UUID) (*models.Report, error) {
	m.lastMove = "archive"
	return m.report, m.err
}

func (m *mockReportService) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	return m.err
}

func (m *mockReportService) Stats(context.Context, uuid.UUID) (*models.ReportStats, error) {
	return m.stats, m.err
}

// errInferenceDown simulates an unreachable inference service.
var errInferenceDown = errors.New("inference service returned status 503")

type mockInferenceClient struct {
	imagePrediction   *inference.ImagePrediction
	symptomPrediction *inference.SymptomPrediction
	regionForecast    *inference.RegionForecast
	err               error
}

func (m *mockInferenceClient) PredictImage(context.Context, string, io.Reader) (*inference.ImagePrediction, error) {
	return m.imagePrediction, m.err
}

func (m *mockInferenceClient) PredictSymptoms(context.Context, inference.SymptomRequest) (*inference.SymptomPrediction, error) {
	return m.symptomPrediction, m.err
}

func (m *mockInferenceClient) ForecastRegion(context.Context, inference.ForecastRequest) (*inference.RegionForecast, error) {
	return m.regionForecast, m.err
}
