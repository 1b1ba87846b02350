package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/models"
)

// ParseRecordID extracts and validates the record ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on
// error (after writing an error response).
// Expects path parameter: id
func ParseRecordID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Invalid record ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// parsePage reads pagination and ordering query parameters. Out-of-range
// values are clamped later by Page.Normalize, not rejected here.
func parsePage(r *http.Request) (models.Page, error) {
	q := r.URL.Query()
	var page models.Page

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return page, fmt.Errorf("invalid offset %q", raw)
		}
		page.Offset = offset
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return page, fmt.Errorf("invalid limit %q", raw)
		}
		page.Limit = limit
	}
	page.OrderBy = q.Get("order_by")
	page.Desc = q.Get("order") != "asc"

	return page, nil
}

// parseDate accepts RFC 3339 timestamps and bare dates.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return t, nil
}

// parseDateRange reads the shared from/to query parameters.
func parseDateRange(r *http.Request) (from, to *time.Time, err error) {
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return nil, nil, err
		}
		to = &t
	}
	return from, to, nil
}

// parseDiagnosisFilters reads the diagnosis list query parameters.
func parseDiagnosisFilters(r *http.Request) (models.DiagnosisFilters, error) {
	q := r.URL.Query()
	var filters models.DiagnosisFilters

	if raw := q.Get("outcome"); raw != "" {
		outcome := models.DiagnosisOutcome(raw)
		if !models.ValidOutcome(outcome) {
			return filters, fmt.Errorf("invalid outcome %q", raw)
		}
		filters.Outcome = &outcome
	}
	if raw := q.Get("location"); raw != "" {
		filters.Location = &raw
	}
	if raw := q.Get("species"); raw != "" {
		filters.ParasiteSpecies = &raw
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		return filters, err
	}
	filters.FromDate, filters.ToDate = from, to

	return filters, nil
}

// parseForecastFilters reads the forecast list query parameters.
func parseForecastFilters(r *http.Request) (models.ForecastFilters, error) {
	q := r.URL.Query()
	var filters models.ForecastFilters

	if raw := q.Get("region"); raw != "" {
		filters.Region = &raw
	}
	if raw := q.Get("country"); raw != "" {
		filters.Country = &raw
	}
	if raw := q.Get("risk_level"); raw != "" {
		level := models.RiskLevel(raw)
		if !models.ValidRiskLevel(level) {
			return filters, fmt.Errorf("invalid risk level %q", raw)
		}
		filters.RiskLevel = &level
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, fmt.Errorf("invalid active flag %q", raw)
		}
		filters.Active = &active
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		return filters, err
	}
	filters.FromDate, filters.ToDate = from, to

	return filters, nil
}

// parseReportFilters reads the report list query parameters.
func parseReportFilters(r *http.Request) (models.ReportFilters, error) {
	q := r.URL.Query()
	var filters models.ReportFilters

	if raw := q.Get("type"); raw != "" {
		reportType := models.ReportType(raw)
		if !models.ValidReportType(reportType) {
			return filters, fmt.Errorf("invalid report type %q", raw)
		}
		filters.Type = &reportType
	}
	if raw := q.Get("status"); raw != "" {
		status := models.ReportStatus(raw)
		if !models.ValidReportStatus(status) {
			return filters, fmt.Errorf("invalid report status %q", raw)
		}
		filters.Status = &status
	}
	if raw := q.Get("title"); raw != "" {
		filters.Title = &raw
	}
	if raw := q.Get("location"); raw != "" {
		filters.Location = &raw
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		return filters, err
	}
	filters.FromDate, filters.ToDate = from, to

	return filters, nil
}
