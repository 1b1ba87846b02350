package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/foresee-health/outbreaklens-engine/pkg/apperrors"
	"github.com/foresee-health/outbreaklens-engine/pkg/database"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
)

const forecastColumns = `id, user_id, location, region, country, latitude, longitude,
	start_date, end_date, risk_level, cases_low, cases_high, cases_mean,
	temperature, rainfall, humidity, model_version, confidence, created_at, updated_at`

// forecastOrderColumns whitelists the sortable columns for list queries.
var forecastOrderColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"start_date": "start_date",
	"end_date":   "end_date",
	"region":     "region",
	"risk_level": "risk_level",
}

// ForecastRepository defines data access for forecast records.
type ForecastRepository interface {
	Create(ctx context.Context, forecast *models.Forecast) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Forecast, error)
	GetByIDWithOwner(ctx context.Context, id uuid.UUID) (*models.ForecastWithOwner, error)
	List(ctx context.Context, filters models.ForecastFilters, page models.Page) ([]*models.Forecast, error)
	Count(ctx context.Context, filters models.ForecastFilters) (int64, error)
	RecentByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Forecast, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, patch models.ForecastPatch) (*models.Forecast, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error)
	StatsByOwner(ctx context.Context, ownerID uuid.UUID) (*models.ForecastStats, error)
}

// forecastRepository implements ForecastRepository using PostgreSQL.
type forecastRepository struct {
	db *database.DB
}

// NewForecastRepository creates a new forecast repository.
func NewForecastRepository(db *database.DB) ForecastRepository {
	return &forecastRepository{db: db}
}

// Create inserts a forecast row, filling in id and timestamps.
func (r *forecastRepository) Create(ctx context.Context, forecast *models.Forecast) error {
	if forecast.ID == uuid.Nil {
		forecast.ID = uuid.New()
	}
	now := time.Now()
	forecast.CreatedAt = now
	forecast.UpdatedAt = now

	query := `
		INSERT INTO forecasts (id, user_id, location, region, country, latitude, longitude,
			start_date, end_date, risk_level, cases_low, cases_high, cases_mean,
			temperature, rainfall, humidity, model_version, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := r.db.Exec(ctx, query,
		forecast.ID,
		forecast.UserID,
		forecast.Location,
		forecast.Region,
		forecast.Country,
		forecast.Latitude,
		forecast.Longitude,
		forecast.StartDate,
		forecast.EndDate,
		forecast.RiskLevel,
		forecast.CasesLow,
		forecast.CasesHigh,
		forecast.CasesMean,
		forecast.Temperature,
		forecast.Rainfall,
		forecast.Humidity,
		forecast.ModelVersion,
		forecast.Confidence,
		forecast.CreatedAt,
		forecast.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create forecast: %w", err)
	}

	return nil
}

// GetByID retrieves a forecast by id regardless of owner.
func (r *forecastRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Forecast, error) {
	query := `SELECT ` + forecastColumns + ` FROM forecasts WHERE id = $1`

	forecast, err := scanForecast(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get forecast: %w", err)
	}

	return forecast, nil
}

// GetByIDWithOwner retrieves a forecast joined with its owner's display
// fields.
func (r *forecastRepository) GetByIDWithOwner(ctx context.Context, id uuid.UUID) (*models.ForecastWithOwner, error) {
	query := `
		SELECT f.id, f.user_id, f.location, f.region, f.country, f.latitude, f.longitude,
			f.start_date, f.end_date, f.risk_level, f.cases_low, f.cases_high, f.cases_mean,
			f.temperature, f.rainfall, f.humidity, f.model_version, f.confidence, f.created_at, f.updated_at,
			u.id, u.email, u.first_name, u.last_name
		FROM forecasts f
		JOIN users u ON u.id = f.user_id
		WHERE f.id = $1`

	var out models.ForecastWithOwner
	err := r.db.QueryRow(ctx, query, id).Scan(
		&out.ID,
		&out.UserID,
		&out.Location,
		&out.Region,
		&out.Country,
		&out.Latitude,
		&out.Longitude,
		&out.StartDate,
		&out.EndDate,
		&out.RiskLevel,
		&out.CasesLow,
		&out.CasesHigh,
		&out.CasesMean,
		&out.Temperature,
		&out.Rainfall,
		&out.Humidity,
		&out.ModelVersion,
		&out.Confidence,
		&out.CreatedAt,
		&out.UpdatedAt,
		&out.Owner.ID,
		&out.Owner.Email,
		&out.Owner.FirstName,
		&out.Owner.LastName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get forecast with owner: %w", err)
	}

	return &out, nil
}

// List returns a page of forecasts matching the filters.
func (r *forecastRepository) List(ctx context.Context, filters models.ForecastFilters, page models.Page) ([]*models.Forecast, error) {
	page = page.Normalize()
	where := forecastWhere(filters)

	limitPos := len(where.args) + 1
	query := `SELECT ` + forecastColumns + ` FROM forecasts` + where.clause() +
		orderClause(forecastOrderColumns, page) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", limitPos, limitPos+1)
	args := append(where.args, page.Limit, page.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list forecasts: %w", err)
	}
	defer rows.Close()

	forecasts := []*models.Forecast{}
	for rows.Next() {
		forecast, err := scanForecast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan forecast: %w", err)
		}
		forecasts = append(forecasts, forecast)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate forecasts: %w", err)
	}

	return forecasts, nil
}

// Count returns the number of forecasts matching the filters.
func (r *forecastRepository) Count(ctx context.Context, filters models.ForecastFilters) (int64, error) {
	where := forecastWhere(filters)
	query := `SELECT COUNT(*) FROM forecasts` + where.clause()

	var count int64
	if err := r.db.QueryRow(ctx, query, where.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count forecasts: %w", err)
	}

	return count, nil
}

// RecentByOwner returns the owner's newest forecasts.
func (r *forecastRepository) RecentByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Forecast, error) {
	return r.List(ctx, models.ForecastFilters{OwnerID: &ownerID}, models.Page{Limit: limit})
}

// Update applies the patch under the owner scope and returns the updated
// row. Derived fields (dates, case bounds) are not in the patch shape, so
// they cannot drift from the prediction series they were computed from.
func (r *forecastRepository) Update(ctx context.Context, id, ownerID uuid.UUID, patch models.ForecastPatch) (*models.Forecast, error) {
	b := &setBuilder{}
	b.addValue("updated_at", time.Now())
	addOptional(b, "location", patch.Location)
	addOptional(b, "region", patch.Region)
	addOptional(b, "country", patch.Country)
	addOptional(b, "latitude", patch.Latitude)
	addOptional(b, "longitude", patch.Longitude)
	addOptional(b, "risk_level", patch.RiskLevel)
	addOptional(b, "temperature", patch.Temperature)
	addOptional(b, "rainfall", patch.Rainfall)
	addOptional(b, "humidity", patch.Humidity)
	addOptional(b, "confidence", patch.Confidence)

	idPos := b.addArg(id)
	ownerPos := b.addArg(ownerID)
	query := `UPDATE forecasts SET ` + strings.Join(b.sets, ", ") +
		fmt.Sprintf(" WHERE id = $%d AND user_id = $%d RETURNING ", idPos, ownerPos) + forecastColumns

	forecast, err := scanForecast(r.db.QueryRow(ctx, query, b.args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update forecast: %w", err)
	}

	return forecast, nil
}

// Delete removes the row under the owner scope.
func (r *forecastRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	query := `DELETE FROM forecasts WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete forecast: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// StatsByOwner aggregates the owner's forecast counts in one query.
// HighRisk folds high and critical together.
func (r *forecastRepository) StatsByOwner(ctx context.Context, ownerID uuid.UUID) (*models.ForecastStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE end_date >= NOW()),
		       COUNT(*) FILTER (WHERE risk_level IN ('high', 'critical')),
		       MAX(created_at)
		FROM forecasts
		WHERE user_id = $1`

	var stats models.ForecastStats
	err := r.db.QueryRow(ctx, query, ownerID).Scan(
		&stats.Total,
		&stats.Active,
		&stats.HighRisk,
		&stats.LastForecastAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get forecast stats: %w", err)
	}

	return &stats, nil
}

func forecastWhere(filters models.ForecastFilters) *whereBuilder {
	b := &whereBuilder{}
	if filters.OwnerID != nil {
		b.add("user_id = $%d", *filters.OwnerID)
	}
	if filters.Region != nil {
		b.add("region ILIKE $%d", substring(*filters.Region))
	}
	if filters.Country != nil {
		b.add("country ILIKE $%d", substring(*filters.Country))
	}
	if filters.RiskLevel != nil {
		b.add("risk_level = $%d", *filters.RiskLevel)
	}
	if filters.Active != nil {
		if *filters.Active {
			b.addBare("end_date >= NOW()")
		} else {
			b.addBare("end_date < NOW()")
		}
	}
	if filters.FromDate != nil {
		b.add("start_date >= $%d", *filters.FromDate)
	}
	if filters.ToDate != nil {
		b.add("start_date <= $%d", *filters.ToDate)
	}
	return b
}

func scanForecast(row pgx.Row) (*models.Forecast, error) {
	var forecast models.Forecast
	err := row.Scan(
		&forecast.ID,
		&forecast.UserID,
		&forecast.Location,
		&forecast.Region,
		&forecast.Country,
		&forecast.Latitude,
		&forecast.Longitude,
		&forecast.StartDate,
		&forecast.EndDate,
		&forecast.RiskLevel,
		&forecast.CasesLow,
		&forecast.CasesHigh,
		&forecast.CasesMean,
		&forecast.Temperature,
		&forecast.Rainfall,
		&forecast.Humidity,
		&forecast.ModelVersion,
		&forecast.Confidence,
		&forecast.CreatedAt,
		&forecast.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &forecast, nil
}

// Ensure forecastRepository implements ForecastRepository at compile time.
var _ ForecastRepository = (*forecastRepository)(nil)
