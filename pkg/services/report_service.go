package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/apperrors"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
	"github.com/foresee-health/outbreaklens-engine/pkg/repositories"
)

const reportStatsEntity = "reports"

// CreateReportInput is the caller-supplied shape of a new report. Every
// report starts as a draft; status is never accepted from the caller.
type CreateReportInput struct {
	Title    string
	Type     models.ReportType
	FromDate *time.Time
	ToDate   *time.Time
	Location *string
	Content  map[string]any
}

// ReportPage is one page of reports plus the total match count.
type ReportPage struct {
	Items  []*models.Report `json:"items"`
	Total  int64            `json:"total"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
}

// ReportService implements the business rules for report records,
// including the one-way publication lifecycle.
type ReportService interface {
	Create(ctx context.Context, ownerID uuid.UUID, input CreateReportInput) (*models.Report, error)
	Get(ctx context.Context, id, ownerID uuid.UUID) (*models.ReportWithOwner, error)
	List(ctx context.Context, ownerID uuid.UUID, filters models.ReportFilters, page models.Page) (*ReportPage, error)
	Recent(ctx context.Context, ownerID uuid.UUID) ([]*models.Report, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, patch models.ReportPatch) (*models.Report, error)
	// Submit moves a draft to pending review.
	Submit(ctx context.Context, id, ownerID uuid.UUID) (*models.Report, error)
	// Publish moves a draft or pending report to published and stamps
	// published_at.
	Publish(ctx context.Context, id, ownerID uuid.UUID) (*models.Report, error)
	// Archive retires a report from any non-archived state. Terminal.
	Archive(ctx context.Context, id, ownerID uuid.UUID) (*models.Report, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	Stats(ctx context.Context, ownerID uuid.UUID) (*models.ReportStats, error)
}

type reportService struct {
	reports repositories.ReportRepository
	cache   StatsStore
	logger  *zap.Logger
}

// NewReportService creates a new report service.
func NewReportService(reports repositories.ReportRepository, cache StatsStore, logger *zap.Logger) ReportService {
	return &reportService{
		reports: reports,
		cache:   cache,
		logger:  logger.Named("report_service"),
	}
}

// Create persists a new draft report.
func (s *reportService) Create(ctx context.Context, ownerID uuid.UUID, input CreateReportInput) (*models.Report, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if input.Type == "" {
		input.Type = models.ReportTypeCustom
	}
	if !models.ValidReportType(input.Type) {
		return nil, fmt.Errorf("%w: invalid report type %q", apperrors.ErrValidation, input.Type)
	}
	if input.FromDate != nil && input.ToDate != nil && input.ToDate.Before(*input.FromDate) {
		return nil, fmt.Errorf("%w: to_date precedes from_date", apperrors.ErrValidation)
	}

	report := &models.Report{
		UserID:   ownerID,
		Title:    input.Title,
		Type:     input.Type,
		Status:   models.ReportStatusDraft,
		FromDate: input.FromDate,
		ToDate:   input.ToDate,
		Location: input.Location,
		Content:  input.Content,
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, reportStatsEntity, ownerID)
	s.logger.Info("report created",
		zap.String("report_id", report.ID.String()),
		zap.String("type", string(report.Type)),
	)

	return report, nil
}

// Get retrieves one report with owner display fields, owner-scoped.
func (s *reportService) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.ReportWithOwner, error) {
	report, err := s.reports.GetByIDWithOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.UserID != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return report, nil
}

// List returns the owner's reports matching the filters, with the total
// count for pagination.
func (s *reportService) List(ctx context.Context, ownerID uuid.UUID, filters models.ReportFilters, page models.Page) (*ReportPage, error) {
	filters.OwnerID = &ownerID
	page = page.Normalize()

	items, err := s.reports.List(ctx, filters, page)
	if err != nil {
		return nil, err
	}
	total, err := s.reports.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &ReportPage{Items: items, Total: total, Offset: page.Offset, Limit: page.Limit}, nil
}

// Recent returns the owner's newest reports.
func (s *reportService) Recent(ctx context.Context, ownerID uuid.UUID) ([]*models.Report, error) {
	return s.reports.RecentByOwner(ctx, ownerID, recentLimit)
}

// Update applies a partial update to the report body. Status moves only
// through the lifecycle methods.
func (s *reportService) Update(ctx context.Context, id, ownerID uuid.UUID, patch models.ReportPatch) (*models.Report, error) {
	if patch.Title.Set && (!patch.Title.Valid || patch.Title.Value == "") {
		return nil, fmt.Errorf("%w: title cannot be cleared", apperrors.ErrValidation)
	}
	if patch.Type.Set {
		if !patch.Type.Valid || !models.ValidReportType(patch.Type.Value) {
			return nil, fmt.Errorf("%w: invalid report type", apperrors.ErrValidation)
		}
	}

	report, err := s.reports.Update(ctx, id, ownerID, patch)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, reportStatsEntity, ownerID)
	return report, nil
}

// Submit moves the report to pending.
func (s *reportService) Submit(ctx context.Context, id, ownerID uuid.UUID) (*models.Report, error) {
	return s.transition(ctx, id, ownerID, models.ReportStatusPending, nil)
}

// Publish moves the report to published and stamps the publication time.
func (s *reportService) Publish(ctx context.Context, id, ownerID uuid.UUID) (*models.Report, error) {
	now := time.Now()
	return s.transition(ctx, id, ownerID, models.ReportStatusPublished, &now)
}

// Archive retires the report. published_at survives so an archived report
// still shows when it was published.
func (s *reportService) Archive(ctx context.Context, id, ownerID uuid.UUID) (*models.Report, error) {
	return s.transition(ctx, id, ownerID, models.ReportStatusArchived, nil)
}

// transition validates the lifecycle move against the current state, then
// applies it with the current state in the WHERE clause. A concurrent
// transition makes the guarded update miss, which surfaces as an invalid
// transition rather than a silent overwrite.
func (s *reportService) transition(ctx context.Context, id, ownerID uuid.UUID, to models.ReportStatus, publishedAt *time.Time) (*models.Report, error) {
	current, err := s.reports.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s to %s", apperrors.ErrInvalidTransition, current.Status, to)
	}

	report, err := s.reports.TransitionStatus(ctx, id, ownerID, current.Status, to, publishedAt)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// The row existed a moment ago; its status moved underneath us.
			return nil, fmt.Errorf("%w: report status changed concurrently", apperrors.ErrInvalidTransition)
		}
		return nil, err
	}

	// Published and draft counts follow the status column.
	s.cache.Invalidate(ctx, reportStatsEntity, ownerID)
	s.logger.Info("report status changed",
		zap.String("report_id", report.ID.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(report.Status)),
	)

	return report, nil
}

// Delete removes the owner's report.
func (s *reportService) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	deleted, err := s.reports.Delete(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.ErrNotFound
	}

	s.cache.Invalidate(ctx, reportStatsEntity, ownerID)
	return nil
}

// Stats returns the owner's aggregate counts, cached.
func (s *reportService) Stats(ctx context.Context, ownerID uuid.UUID) (*models.ReportStats, error) {
	var cached models.ReportStats
	if s.cache.Get(ctx, reportStatsEntity, ownerID, &cached) {
		return &cached, nil
	}

	stats, err := s.reports.StatsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, reportStatsEntity, ownerID, stats)
	return stats, nil
}

var _ ReportService = (*reportService)(nil)
