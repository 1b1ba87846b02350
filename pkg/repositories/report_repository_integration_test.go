//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/foresee-health/outbreaklens-engine/pkg/apperrors"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
	"github.com/foresee-health/outbreaklens-engine/pkg/testhelpers"
)

func seedReport(t *testing.T, db *testhelpers.TestDB, ownerID uuid.UUID, status models.ReportStatus) *models.Report {
	t.Helper()

	report := &models.Report{
		UserID:  ownerID,
		Title:   "Weekly surveillance summary",
		Type:    models.ReportTypeSurveillance,
		Status:  status,
		Content: map[string]any{"sections": []any{"overview"}},
	}

	if err := NewReportRepository(db.DB).Create(context.Background(), report); err != nil {
		t.Fatalf("failed to seed report: %v", err)
	}

	return report
}

func TestReportRoundTripContent(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewReportRepository(db.DB)
	ctx := context.Background()

	owner := seedUser(t, db)
	report := seedReport(t, db, owner.ID, models.ReportStatusDraft)

	got, err := repo.GetByIDForOwner(ctx, report.ID, owner.ID)
	if err != nil {
		t.Fatalf("GetByIDForOwner failed: %v", err)
	}

	if got.Status != models.ReportStatusDraft {
		t.Errorf("Status = %s, want draft", got.Status)
	}
	if got.Content == nil || got.Content["sections"] == nil {
		t.Errorf("Content = %v, want the stored document", got.Content)
	}
	if got.PublishedAt != nil {
		t.Error("PublishedAt should be nil before publish")
	}
}

func TestReportGetByIDForOwnerHidesForeignRows(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewReportRepository(db.DB)
	ctx := context.Background()

	owner := seedUser(t, db)
	stranger := seedUser(t, db)
	report := seedReport(t, db, owner.ID, models.ReportStatusDraft)

	_, err := repo.GetByIDForOwner(ctx, report.ID, stranger.ID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("foreign read: expected ErrNotFound, got %v", err)
	}
}

func TestReportTransitionStatus(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewReportRepository(db.DB)
	ctx := context.Background()

	owner := seedUser(t, db)
	report := seedReport(t, db, owner.ID, models.ReportStatusDraft)

	pending, err := repo.TransitionStatus(ctx, report.ID, owner.ID, models.ReportStatusDraft, models.ReportStatusPending, nil)
	if err != nil {
		t.Fatalf("draft -> pending failed: %v", err)
	}
	if pending.Status != models.ReportStatusPending {
		t.Errorf("Status = %s, want pending", pending.Status)
	}
	if pending.PublishedAt != nil {
		t.Error("PublishedAt should stay nil before publish")
	}

	publishedAt := time.Now()
	published, err := repo.TransitionStatus(ctx, report.ID, owner.ID, models.ReportStatusPending, models.ReportStatusPublished, &publishedAt)
	if err != nil {
		t.Fatalf("pending -> published failed: %v", err)
	}
	if published.PublishedAt == nil {
		t.Fatal("PublishedAt should be stamped on publish")
	}

	archived, err := repo.TransitionStatus(ctx, report.ID, owner.ID, models.ReportStatusPublished, models.ReportStatusArchived, nil)
	if err != nil {
		t.Fatalf("published -> archived failed: %v", err)
	}
	if archived.PublishedAt == nil || !archived.PublishedAt.Equal(*published.PublishedAt) {
		t.Errorf("PublishedAt = %v, want preserved through archive", archived.PublishedAt)
	}
}

func TestReportTransitionGuardMissesOnStaleState(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewReportRepository(db.DB)
	ctx := context.Background()

	owner := seedUser(t, db)
	report := seedReport(t, db, owner.ID, models.ReportStatusDraft)

	if _, err := repo.TransitionStatus(ctx, report.ID, owner.ID, models.ReportStatusDraft, models.ReportStatusPending, nil); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}

	// A second mover still expecting draft must miss the guarded update.
	_, err := repo.TransitionStatus(ctx, report.ID, owner.ID, models.ReportStatusDraft, models.ReportStatusPublished, nil)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("stale transition: expected ErrNotFound, got %v", err)
	}

	got, err := repo.GetByIDForOwner(ctx, report.ID, owner.ID)
	if err != nil {
		t.Fatalf("GetByIDForOwner failed: %v", err)
	}
	if got.Status != models.ReportStatusPending {
		t.Errorf("Status = %s, want pending left intact", got.Status)
	}
}

func TestReportTransitionOwnerScoped(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewReportRepository(db.DB)
	ctx := context.Background()

	owner := seedUser(t, db)
	stranger := seedUser(t, db)
	report := seedReport(t, db, owner.ID, models.ReportStatusDraft)

	_, err := repo.TransitionStatus(ctx, report.ID, stranger.ID, models.ReportStatusDraft, models.ReportStatusPublished, nil)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("foreign transition: expected ErrNotFound, got %v", err)
	}
}

func TestReportFiltersAndStats(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewReportRepository(db.DB)
	ctx := context.Background()

	owner := seedUser(t, db)
	draft := seedReport(t, db, owner.ID, models.ReportStatusDraft)
	published := seedReport(t, db, owner.ID, models.ReportStatusDraft)
	now := time.Now()
	if _, err := repo.TransitionStatus(ctx, published.ID, owner.ID, models.ReportStatusDraft, models.ReportStatusPublished, &now); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	status := models.ReportStatusDraft
	items, err := repo.List(ctx, models.ReportFilters{OwnerID: &owner.ID, Status: &status}, models.Page{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != draft.ID {
		t.Errorf("status filter matched %d rows, want just the draft", len(items))
	}

	title := "surveillance"
	items, err = repo.List(ctx, models.ReportFilters{OwnerID: &owner.ID, Title: &title}, models.Page{})
	if err != nil {
		t.Fatalf("List by title failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("title substring matched %d rows, want 2", len(items))
	}

	stats, err := repo.StatsByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("StatsByOwner failed: %v", err)
	}
	if stats.Total != 2 || stats.Published != 1 || stats.Drafts != 1 {
		t.Errorf("stats = %+v, want total 2 published 1 drafts 1", stats)
	}
}
