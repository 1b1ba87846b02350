package repositories

import (
	"context"
	"encoding/json"
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

const reportColumns = `id, user_id, title, type, status, from_date, to_date, location,
	content, published_at, created_at, updated_at`

// reportOrderColumns whitelists the sortable columns for list queries.
var reportOrderColumns = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"title":        "title",
	"status":       "status",
	"published_at": "published_at",
}

// ReportRepository defines data access for report records.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	// GetByIDForOwner retrieves the row only when it belongs to ownerID.
	// Lifecycle transitions read through this so a foreign report is
	// indistinguishable from a missing one.
	GetByIDForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Report, error)
	GetByIDWithOwner(ctx context.Context, id uuid.UUID) (*models.ReportWithOwner, error)
	List(ctx context.Context, filters models.ReportFilters, page models.Page) ([]*models.Report, error)
	Count(ctx context.Context, filters models.ReportFilters) (int64, error)
	RecentByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Report, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, patch models.ReportPatch) (*models.Report, error)
	// TransitionStatus moves the report from one lifecycle state to the
	// next. The from state is part of the WHERE clause, so a concurrent
	// transition loses cleanly instead of overwriting.
	TransitionStatus(ctx context.Context, id, ownerID uuid.UUID, from, to models.ReportStatus, publishedAt *time.Time) (*models.Report, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error)
	StatsByOwner(ctx context.Context, ownerID uuid.UUID) (*models.ReportStats, error)
}

// reportRepository implements ReportRepository using PostgreSQL.
type reportRepository struct {
	db *database.DB
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *database.DB) ReportRepository {
	return &reportRepository{db: db}
}

// Create inserts a report row, filling in id and timestamps.
func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	now := time.Now()
	report.CreatedAt = now
	report.UpdatedAt = now

	var contentJSON []byte
	if report.Content != nil {
		var err error
		contentJSON, err = json.Marshal(report.Content)
		if err != nil {
			return fmt.Errorf("failed to marshal report content: %w", err)
		}
	}

	query := `
		INSERT INTO reports (id, user_id, title, type, status, from_date, to_date, location,
			content, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		report.ID,
		report.UserID,
		report.Title,
		report.Type,
		report.Status,
		report.FromDate,
		report.ToDate,
		report.Location,
		contentJSON,
		report.PublishedAt,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// GetByID retrieves a report by id regardless of owner.
func (r *reportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForOwner retrieves a report under the owner scope.
func (r *reportRepository) GetByIDForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1 AND user_id = $2`
	return r.getOne(ctx, query, id, ownerID)
}

// GetByIDWithOwner retrieves a report joined with its owner's display
// fields.
func (r *reportRepository) GetByIDWithOwner(ctx context.Context, id uuid.UUID) (*models.ReportWithOwner, error) {
	query := `
		SELECT rp.id, rp.user_id, rp.title, rp.type, rp.status, rp.from_date, rp.to_date, rp.location,
			rp.content, rp.published_at, rp.created_at, rp.updated_at,
			u.id, u.email, u.first_name, u.last_name
		FROM reports rp
		JOIN users u ON u.id = rp.user_id
		WHERE rp.id = $1`

	var out models.ReportWithOwner
	var contentJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&out.ID,
		&out.UserID,
		&out.Title,
		&out.Type,
		&out.Status,
		&out.FromDate,
		&out.ToDate,
		&out.Location,
		&contentJSON,
		&out.PublishedAt,
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
		return nil, fmt.Errorf("failed to get report with owner: %w", err)
	}

	if len(contentJSON) > 0 {
		if err := json.Unmarshal(contentJSON, &out.Content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report content: %w", err)
		}
	}

	return &out, nil
}

// List returns a page of reports matching the filters.
func (r *reportRepository) List(ctx context.Context, filters models.ReportFilters, page models.Page) ([]*models.Report, error) {
	page = page.Normalize()
	where := reportWhere(filters)

	limitPos := len(where.args) + 1
	query := `SELECT ` + reportColumns + ` FROM reports` + where.clause() +
		orderClause(reportOrderColumns, page) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", limitPos, limitPos+1)
	args := append(where.args, page.Limit, page.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []*models.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	return reports, nil
}

// Count returns the number of reports matching the filters.
func (r *reportRepository) Count(ctx context.Context, filters models.ReportFilters) (int64, error) {
	where := reportWhere(filters)
	query := `SELECT COUNT(*) FROM reports` + where.clause()

	var count int64
	if err := r.db.QueryRow(ctx, query, where.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}

	return count, nil
}

// RecentByOwner returns the owner's newest reports.
func (r *reportRepository) RecentByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Report, error) {
	return r.List(ctx, models.ReportFilters{OwnerID: &ownerID}, models.Page{Limit: limit})
}

// Update applies the patch under the owner scope. Status is never part of
// the patch shape; lifecycle moves go through TransitionStatus.
func (r *reportRepository) Update(ctx context.Context, id, ownerID uuid.UUID, patch models.ReportPatch) (*models.Report, error) {
	b := &setBuilder{}
	b.addValue("updated_at", time.Now())
	addOptional(b, "title", patch.Title)
	addOptional(b, "type", patch.Type)
	addOptional(b, "from_date", patch.FromDate)
	addOptional(b, "to_date", patch.ToDate)
	addOptional(b, "location", patch.Location)
	if patch.Content.Set {
		if !patch.Content.Valid {
			b.sets = append(b.sets, "content = NULL")
		} else {
			contentJSON, err := json.Marshal(patch.Content.Value)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal report content: %w", err)
			}
			b.addValue("content", contentJSON)
		}
	}

	idPos := b.addArg(id)
	ownerPos := b.addArg(ownerID)
	query := `UPDATE reports SET ` + strings.Join(b.sets, ", ") +
		fmt.Sprintf(" WHERE id = $%d AND user_id = $%d RETURNING ", idPos, ownerPos) + reportColumns

	report, err := scanReport(r.db.QueryRow(ctx, query, b.args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	return report, nil
}

// TransitionStatus moves the report between lifecycle states. publishedAt
// is stamped when non-nil and otherwise left untouched, so archiving a
// published report keeps its publication time.
func (r *reportRepository) TransitionStatus(ctx context.Context, id, ownerID uuid.UUID, from, to models.ReportStatus, publishedAt *time.Time) (*models.Report, error) {
	query := `
		UPDATE reports
		SET status = $1, published_at = COALESCE($2, published_at), updated_at = $3
		WHERE id = $4 AND user_id = $5 AND status = $6
		RETURNING ` + reportColumns

	report, err := scanReport(r.db.QueryRow(ctx, query, to, publishedAt, time.Now(), id, ownerID, from))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to transition report status: %w", err)
	}

	return report, nil
}

// Delete removes the row under the owner scope.
func (r *reportRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	query := `DELETE FROM reports WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete report: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// StatsByOwner aggregates the owner's report counts in one query.
func (r *reportRepository) StatsByOwner(ctx context.Context, ownerID uuid.UUID) (*models.ReportStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'published'),
		       COUNT(*) FILTER (WHERE status = 'draft'),
		       MAX(created_at)
		FROM reports
		WHERE user_id = $1`

	var stats models.ReportStats
	err := r.db.QueryRow(ctx, query, ownerID).Scan(
		&stats.Total,
		&stats.Published,
		&stats.Drafts,
		&stats.LastReportAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get report stats: %w", err)
	}

	return &stats, nil
}

func (r *reportRepository) getOne(ctx context.Context, query string, args ...any) (*models.Report, error) {
	report, err := scanReport(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

func reportWhere(filters models.ReportFilters) *whereBuilder {
	b := &whereBuilder{}
	if filters.OwnerID != nil {
		b.add("user_id = $%d", *filters.OwnerID)
	}
	if filters.Type != nil {
		b.add("type = $%d", *filters.Type)
	}
	if filters.Status != nil {
		b.add("status = $%d", *filters.Status)
	}
	if filters.Title != nil {
		b.add("title ILIKE $%d", substring(*filters.Title))
	}
	if filters.Location != nil {
		b.add("location ILIKE $%d", substring(*filters.Location))
	}
	if filters.FromDate != nil {
		b.add("created_at >= $%d", *filters.FromDate)
	}
	if filters.ToDate != nil {
		b.add("created_at <= $%d", *filters.ToDate)
	}
	return b
}

func scanReport(row pgx.Row) (*models.Report, error) {
	var report models.Report
	var contentJSON []byte
	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.Title,
		&report.Type,
		&report.Status,
		&report.FromDate,
		&report.ToDate,
		&report.Location,
		&contentJSON,
		&report.PublishedAt,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(contentJSON) > 0 {
		if err := json.Unmarshal(contentJSON, &report.Content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report content: %w", err)
		}
	}

	return &report, nil
}

// Ensure reportRepository implements ReportRepository at compile time.
var _ ReportRepository = (*reportRepository)(nil)
