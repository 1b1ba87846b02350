package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportType enumerates the kinds of user-authored documents.
type ReportType string

const (
	ReportTypeDiagnosis    ReportType = "diagnosis"
	ReportTypeForecast     ReportType = "forecast"
	ReportTypeOutbreak     ReportType = "outbreak"
	ReportTypeSurveillance ReportType = "surveillance"
	ReportTypeCustom       ReportType = "custom"
)

// ValidReportType checks if the given type is a known value.
func ValidReportType(t ReportType) bool {
	switch t {
	case ReportTypeDiagnosis, ReportTypeForecast, ReportTypeOutbreak,
		ReportTypeSurveillance, ReportTypeCustom:
		return true
	}
	return false
}

// ReportStatus is the report lifecycle state. Transitions are one-way:
// draft -> pending -> published -> archived, with archive reachable from
// any non-archived state. Archived is terminal.
type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "draft"
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusPublished ReportStatus = "published"
	ReportStatusArchived  ReportStatus = "archived"
)

// ValidReportStatus checks if the given status is a known value.
func ValidReportStatus(s ReportStatus) bool {
	switch s {
	case ReportStatusDraft, ReportStatusPending, ReportStatusPublished, ReportStatusArchived:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	switch s {
	case ReportStatusDraft:
		return next == ReportStatusPending || next == ReportStatusPublished || next == ReportStatusArchived
	case ReportStatusPending:
		return next == ReportStatusPublished || next == ReportStatusArchived
	case ReportStatusPublished:
		return next == ReportStatusArchived
	}
	return false
}

// Report is a user-authored document referencing diagnoses and forecasts.
// PublishedAt is stamped by the publish transition and never cleared;
// archiving keeps it.
type Report struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.UUID      `json:"user_id"`
	Title       string         `json:"title"`
	Type        ReportType     `json:"type"`
	Status      ReportStatus   `json:"status"`
	FromDate    *time.Time     `json:"from_date,omitempty"`
	ToDate      *time.Time     `json:"to_date,omitempty"`
	Location    *string        `json:"location,omitempty"`
	Content     map[string]any `json:"content,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ReportWithOwner joins the owner display fields.
type ReportWithOwner struct {
	Report
	Owner OwnerSummary `json:"owner"`
}

// ReportFilters are conjunctive list predicates. Title and Location are
// case-insensitive substring matches; date bounds are inclusive on
// created_at.
type ReportFilters struct {
	OwnerID  *uuid.UUID
	Type     *ReportType
	Status   *ReportStatus
	Title    *string
	Location *string
	FromDate *time.Time
	ToDate   *time.Time
}

// ReportPatch carries partial updates. Status is not patchable; lifecycle
// moves go through the explicit submit/publish/archive operations.
type ReportPatch struct {
	Title    Optional[string]         `json:"title"`
	Type     Optional[ReportType]     `json:"type"`
	FromDate Optional[time.Time]      `json:"from_date"`
	ToDate   Optional[time.Time]      `json:"to_date"`
	Location Optional[string]         `json:"location"`
	Content  Optional[map[string]any] `json:"content"`
}

// ReportStats summarizes one owner's reports.
type ReportStats struct {
	Total        int64      `json:"total"`
	Published    int64      `json:"published"`
	Drafts       int64      `json:"drafts"`
	LastReportAt *time.Time `json:"last_report_at,omitempty"`
}
