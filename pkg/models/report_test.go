package models

import "testing"

func TestReportStatusCanTransitionTo(t *testing.T) {
	allowed := map[ReportStatus][]ReportStatus{
		ReportStatusDraft:     {ReportStatusPending, ReportStatusPublished, ReportStatusArchived},
		ReportStatusPending:   {ReportStatusPublished, ReportStatusArchived},
		ReportStatusPublished: {ReportStatusArchived},
		ReportStatusArchived:  {},
	}
	all := []ReportStatus{ReportStatusDraft, ReportStatusPending, ReportStatusPublished, ReportStatusArchived}

	for from, targets := range allowed {
		permitted := map[ReportStatus]bool{}
		for _, to := range targets {
			permitted[to] = true
		}
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != permitted[to] {
				t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", from, to, got, permitted[to])
			}
		}
	}
}

func TestReportStatusNoSelfTransition(t *testing.T) {
	for _, s := range []ReportStatus{ReportStatusDraft, ReportStatusPending, ReportStatusPublished, ReportStatusArchived} {
		if s.CanTransitionTo(s) {
			t.Errorf("%s should not transition to itself", s)
		}
	}
}

func TestValidReportStatus(t *testing.T) {
	if !ValidReportStatus(ReportStatusDraft) {
		t.Error("draft should be valid")
	}
	if ValidReportStatus(ReportStatus("deleted")) {
		t.Error("deleted should not be valid")
	}
}

func TestValidReportType(t *testing.T) {
	for _, typ := range []ReportType{ReportTypeDiagnosis, ReportTypeForecast, ReportTypeOutbreak, ReportTypeSurveillance, ReportTypeCustom} {
		if !ValidReportType(typ) {
			t.Errorf("%s should be valid", typ)
		}
	}
	if ValidReportType(ReportType("memo")) {
		t.Error("memo should not be valid")
	}
}
