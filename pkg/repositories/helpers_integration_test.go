//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foresee-health/outbreaklens-engine/pkg/models"
	"github.com/foresee-health/outbreaklens-engine/pkg/testhelpers"
)

// seedUser creates a fresh user row with unique identity fields so tests
// never collide on the shared database.
func seedUser(t *testing.T, db *testhelpers.TestDB) *models.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	user, err := NewUserRepository(db.DB).Upsert(context.Background(), &models.User{
		ClerkUserID: "user_" + suffix,
		Email:       fmt.Sprintf("owner-%s@example.org", suffix),
	})
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	return user
}

func seedDiagnosis(t *testing.T, db *testhelpers.TestDB, ownerID uuid.UUID, outcome models.DiagnosisOutcome, location string) *models.Diagnosis {
	t.Helper()

	confidence := decimal.RequireFromString("0.9")
	diagnosis := &models.Diagnosis{
		UserID:       ownerID,
		Result:       string(outcome),
		Outcome:      outcome,
		Confidence:   &confidence,
		ModelVersion: "cnn-v4",
	}
	if location != "" {
		diagnosis.Location = &location
	}

	if err := NewDiagnosisRepository(db.DB).Create(context.Background(), diagnosis); err != nil {
		t.Fatalf("failed to seed diagnosis: %v", err)
	}

	return diagnosis
}

func strPtr(s string) *string { return &s }
