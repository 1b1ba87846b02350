package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents one human account. The row is created (or refreshed) on
// every successful sign-in by the identity bridge; clerk_user_id is the
// stable key to the external identity provider.
type User struct {
	ID          uuid.UUID `json:"id"`
	ClerkUserID string    `json:"clerk_user_id"`
	Email       string    `json:"email"`
	FirstName   *string   `json:"first_name,omitempty"`
	LastName    *string   `json:"last_name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserWithStats is a User plus counts of owned child entities, fetched in
// a single round trip for dashboard summaries.
type UserWithStats struct {
	User
	DiagnosisCount int64 `json:"diagnosis_count"`
	ForecastCount  int64 `json:"forecast_count"`
	ReportCount    int64 `json:"report_count"`
}

// OwnerSummary carries the minimal owner display fields joined onto
// entity reads for UI attribution.
type OwnerSummary struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
}
