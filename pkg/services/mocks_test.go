package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/foresee-health/outbreaklens-engine/pkg/models"
)

// Hand-written repository mocks. Each records the arguments of the last
// mutating call and returns canned values.

// recordingStatsCache records invalidations so tests can assert that
// mutations drop the cached stats.
type recordingStatsCache struct {
	invalidated []string
}

func (c *recordingStatsCache) Get(context.Context, string, uuid.UUID, any) bool { return false }

func (c *recordingStatsCache) Set(context.Context, string, uuid.UUID, any) {}

func (c *recordingStatsCache) Invalidate(_ context.Context, entity string, _ uuid.UUID) {
	c.invalidated = append(c.invalidated, entity)
}

type mockDiagnosisRepo struct {
	created   *models.Diagnosis
	createErr error

	getResult *models.DiagnosisWithOwner
	getErr    error

	listItems []*models.Diagnosis
	count     int64

	updatedID    uuid.UUID
	updatedOwner uuid.UUID
	updatedPatch models.DiagnosisPatch
	updateResult *models.Diagnosis
	updateErr    error

	deleteOK  bool
	deleteErr error

	stats      *models.DiagnosisStats
	statsCalls int
}

func (m *mockDiagnosisRepo) Create(_ context.Context, d *models.Diagnosis) error {
	if m.createErr != nil {
		return m.createErr
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	m.created = d
	return nil
}

func (m *mockDiagnosisRepo) GetByID(context.Context, uuid.UUID) (*models.Diagnosis, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &m.getResult.Diagnosis, nil
}

func (m *mockDiagnosisRepo) GetByIDWithOwner(context.Context, uuid.UUID) (*models.DiagnosisWithOwner, error) {
	return m.getResult, m.getErr
}

func (m *mockDiagnosisRepo) List(context.Context, models.DiagnosisFilters, models.Page) ([]*models.Diagnosis, error) {
	return m.listItems, nil
}

func (m *mockDiagnosisRepo) Count(context.Context, models.DiagnosisFilters) (int64, error) {
	return m.count, nil
}

func (m *mockDiagnosisRepo) RecentByOwner(context.Context, uuid.UUID, int) ([]*models.Diagnosis, error) {
	return m.listItems, nil
}

func (m *mockDiagnosisRepo) Update(_ context.Context, id, ownerID uuid.UUID, patch models.DiagnosisPatch) (*models.Diagnosis, error) {
	m.updatedID = id
	m.updatedOwner = ownerID
	m.updatedPatch = patch
	return m.updateResult, m.updateErr
}

func (m *mockDiagnosisRepo) Delete(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return m.deleteOK, m.deleteErr
}

func (m *mockDiagnosisRepo) StatsByOwner(context.Context, uuid.UUID) (*models.DiagnosisStats, error) {
	m.statsCalls++
	return m.stats, nil
}

type mockForecastRepo struct {
	created   *models.Forecast
	createErr error

	getResult *models.ForecastWithOwner
	getErr    error

	listItems []*models.Forecast
	count     int64

	updatedPatch models.ForecastPatch
	updateResult *models.Forecast
	updateErr    error

	deleteOK  bool
	deleteErr error

	stats *models.ForecastStats
}

func (m *mockForecastRepo) Create(_ context.Context, f *models.Forecast) error {
	if m.createErr != nil {
		return m.createErr
	}
	f.ID = uuid.New()
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	m.created = f
	return nil
}

func (m *mockForecastRepo) GetByID(context.Context, uuid.UUID) (*models.Forecast, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &m.getResult.Forecast, nil
}

func (m *mockForecastRepo) GetByIDWithOwner(context.Context, uuid.UUID) (*models.ForecastWithOwner, error) {
	return m.getResult, m.getErr
}

func (m *mockForecastRepo) List(context.Context, models.ForecastFilters, models.Page) ([]*models.Forecast, error) {
	return m.listItems, nil
}

func (m *mockForecastRepo) Count(context.Context, models.ForecastFilters) (int64, error) {
	return m.count, nil
}

func (m *mockForecastRepo) RecentByOwner(context.Context, uuid.UUID, int) ([]*models.Forecast, error) {
	return m.listItems, nil
}

func (m *mockForecastRepo) Update(_ context.Context, _, _ uuid.UUID, patch models.ForecastPatch) (*models.Forecast, error) {
	m.updatedPatch = patch
	return m.updateResult, m.updateErr
}

func (m *mockForecastRepo) Delete(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return m.deleteOK, m.deleteErr
}

func (m *mockForecastRepo) StatsByOwner(context.Context, uuid.UUID) (*models.ForecastStats, error) {
	return m.stats, nil
}

type mockReportRepo struct {
	created   *models.Report
	createErr error

	current *models.Report
	getErr  error

	getWithOwner *models.ReportWithOwner

	listItems []*models.Report
	count     int64

	updatedPatch models.ReportPatch
	updateResult *models.Report
	updateErr    error

	transitionFrom        models.ReportStatus
	transitionTo          models.ReportStatus
	transitionPublishedAt *time.Time
	transitionErr         error

	deleteOK  bool
	deleteErr error

	stats *models.ReportStats
}

func (m *mockReportRepo) Create(_ context.Context, rp *models.Report) error {
	if m.createErr != nil {
		return m.createErr
	}
	rp.ID = uuid.New()
	rp.CreatedAt = time.Now()
	rp.UpdatedAt = rp.CreatedAt
	m.created = rp
	return nil
}

func (m *mockReportRepo) GetByID(context.Context, uuid.UUID) (*models.Report, error) {
	return m.current, m.getErr
}

func (m *mockReportRepo) GetByIDForOwner(context.Context, uuid.UUID, uuid.UUID) (*models.Report, error) {
	return m.current, m.getErr
}

func (m *mockReportRepo) GetByIDWithOwner(context.Context, uuid.UUID) (*models.ReportWithOwner, error) {
	return m.getWithOwner, m.getErr
}

func (m *mockReportRepo) List(context.Context, models.ReportFilters, models.Page) ([]*models.Report, error) {
	return m.listItems, nil
}

func (m *mockReportRepo) Count(context.Context, models.ReportFilters) (int64, error) {
	return m.count, nil
}

func (m *mockReportRepo) RecentByOwner(context.Context, uuid.UUID, int) ([]*models.Report, error) {
	return m.listItems, nil
}

func (m *mockReportRepo) Update(_ context.Context, _, _ uuid.UUID, patch models.ReportPatch) (*models.Report, error) {
	m.updatedPatch = patch
	return m.updateResult, m.updateErr
}

func (m *mockReportRepo) TransitionStatus(_ context.Context, _, _ uuid.UUID, from, to models.ReportStatus, publishedAt *time.Time) (*models.Report, error) {
	m.transitionFrom = from
	m.transitionTo = to
	m.transitionPublishedAt = publishedAt
	if m.transitionErr != nil {
		return nil, m.transitionErr
	}

	moved := *m.current
	moved.Status = to
	if publishedAt != nil {
		moved.PublishedAt = publishedAt
	}
	return &moved, nil
}

func (m *mockReportRepo) Delete(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return m.deleteOK, m.deleteErr
}

func (m *mockReportRepo) StatsByOwner(context.Context, uuid.UUID) (*models.ReportStats, error) {
	return m.stats, nil
}

type mockUserRepo struct {
	upserted  *models.User
	upsertErr error

	user    *models.User
	getErr  error
	deleted *models.User
}

func (m *mockUserRepo) Upsert(_ context.Context, user *models.User) (*models.User, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	m.upserted = user
	stored := *user
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	return &stored, nil
}

func (m *mockUserRepo) GetByClerkID(context.Context, string) (*models.User, error) {
	return m.user, m.getErr
}

func (m *mockUserRepo) GetByClerkIDWithStats(context.Context, string) (*models.UserWithStats, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.UserWithStats{User: *m.user}, nil
}

func (m *mockUserRepo) GetByEmail(context.Context, string) (*models.User, error) {
	return m.user, m.getErr
}

func (m *mockUserRepo) GetByID(context.Context, uuid.UUID) (*models.User, error) {
	return m.user, m.getErr
}

func (m *mockUserRepo) DeleteByClerkID(context.Context, string) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.deleted = m.user
	return m.user, nil
}
