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

const diagnosisColumns = `id, user_id, patient_age, patient_sex, location, latitude, longitude,
	image_url, result, outcome, confidence, parasite_count, parasite_species, symptoms,
	model_version, processing_ms, created_at, updated_at`

// diagnosisOrderColumns whitelists the sortable columns for list queries.
var diagnosisOrderColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"result":     "result",
	"confidence": "confidence",
}

// DiagnosisRepository defines data access for diagnosis records.
type DiagnosisRepository interface {
	Create(ctx context.Context, diagnosis *models.Diagnosis) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Diagnosis, error)
	GetByIDWithOwner(ctx context.Context, id uuid.UUID) (*models.DiagnosisWithOwner, error)
	List(ctx context.Context, filters models.DiagnosisFilters, page models.Page) ([]*models.Diagnosis, error)
	Count(ctx context.Context, filters models.DiagnosisFilters) (int64, error)
	RecentByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Diagnosis, error)
	// Update applies the patch to the row only when it belongs to ownerID.
	// A foreign or missing row returns ErrNotFound either way.
	Update(ctx context.Context, id, ownerID uuid.UUID, patch models.DiagnosisPatch) (*models.Diagnosis, error)
	// Delete reports whether a row was removed; false covers both missing
	// and foreign rows.
	Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error)
	StatsByOwner(ctx context.Context, ownerID uuid.UUID) (*models.DiagnosisStats, error)
}

// diagnosisRepository implements DiagnosisRepository using PostgreSQL.
type diagnosisRepository struct {
	db *database.DB
}

// NewDiagnosisRepository creates a new diagnosis repository.
func NewDiagnosisRepository(db *database.DB) DiagnosisRepository {
	return &diagnosisRepository{db: db}
}

// Create inserts a diagnosis row, filling in id and timestamps.
func (r *diagnosisRepository) Create(ctx context.Context, diagnosis *models.Diagnosis) error {
	if diagnosis.ID == uuid.Nil {
		diagnosis.ID = uuid.New()
	}
	now := time.Now()
	diagnosis.CreatedAt = now
	diagnosis.UpdatedAt = now

	var symptomsJSON []byte
	if diagnosis.Symptoms != nil {
		var err error
		symptomsJSON, err = json.Marshal(diagnosis.Symptoms)
		if err != nil {
			return fmt.Errorf("failed to marshal symptoms: %w", err)
		}
	}

	query := `
		INSERT INTO diagnoses (id, user_id, patient_age, patient_sex, location, latitude, longitude,
			image_url, result, outcome, confidence, parasite_count, parasite_species, symptoms,
			model_version, processing_ms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := r.db.Exec(ctx, query,
		diagnosis.ID,
		diagnosis.UserID,
		diagnosis.PatientAge,
		diagnosis.PatientSex,
		diagnosis.Location,
		diagnosis.Latitude,
		diagnosis.Longitude,
		diagnosis.ImageURL,
		diagnosis.Result,
		diagnosis.Outcome,
		diagnosis.Confidence,
		diagnosis.ParasiteCount,
		diagnosis.ParasiteSpecies,
		symptomsJSON,
		diagnosis.ModelVersion,
		diagnosis.ProcessingMS,
		diagnosis.CreatedAt,
		diagnosis.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create diagnosis: %w", err)
	}

	return nil
}

// GetByID retrieves a diagnosis by id regardless of owner. Ownership
// checks belong to the caller.
func (r *diagnosisRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Diagnosis, error) {
	query := `SELECT ` + diagnosisColumns + ` FROM diagnoses WHERE id = $1`

	diagnosis, err := scanDiagnosis(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get diagnosis: %w", err)
	}

	return diagnosis, nil
}

// GetByIDWithOwner retrieves a diagnosis joined with its owner's display
// fields, for shareable detail views.
func (r *diagnosisRepository) GetByIDWithOwner(ctx context.Context, id uuid.UUID) (*models.DiagnosisWithOwner, error) {
	query := `
		SELECT d.id, d.user_id, d.patient_age, d.patient_sex, d.location, d.latitude, d.longitude,
			d.image_url, d.result, d.outcome, d.confidence, d.parasite_count, d.parasite_species, d.symptoms,
			d.model_version, d.processing_ms, d.created_at, d.updated_at,
			u.id, u.email, u.first_name, u.last_name
		FROM diagnoses d
		JOIN users u ON u.id = d.user_id
		WHERE d.id = $1`

	var out models.DiagnosisWithOwner
	var symptomsJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&out.ID,
		&out.UserID,
		&out.PatientAge,
		&out.PatientSex,
		&out.Location,
		&out.Latitude,
		&out.Longitude,
		&out.ImageURL,
		&out.Result,
		&out.Outcome,
		&out.Confidence,
		&out.ParasiteCount,
		&out.ParasiteSpecies,
		&symptomsJSON,
		&out.ModelVersion,
		&out.ProcessingMS,
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
		return nil, fmt.Errorf("failed to get diagnosis with owner: %w", err)
	}

	if len(symptomsJSON) > 0 {
		if err := json.Unmarshal(symptomsJSON, &out.Symptoms); err != nil {
			return nil, fmt.Errorf("failed to unmarshal symptoms: %w", err)
		}
	}

	return &out, nil
}

// List returns a page of diagnoses matching the filters.
func (r *diagnosisRepository) List(ctx context.Context, filters models.DiagnosisFilters, page models.Page) ([]*models.Diagnosis, error) {
	page = page.Normalize()
	where := diagnosisWhere(filters)

	limitPos := len(where.args) + 1
	query := `SELECT ` + diagnosisColumns + ` FROM diagnoses` + where.clause() +
		orderClause(diagnosisOrderColumns, page) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", limitPos, limitPos+1)
	args := append(where.args, page.Limit, page.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnoses: %w", err)
	}
	defer rows.Close()

	diagnoses := []*models.Diagnosis{}
	for rows.Next() {
		diagnosis, err := scanDiagnosis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diagnosis: %w", err)
		}
		diagnoses = append(diagnoses, diagnosis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate diagnoses: %w", err)
	}

	return diagnoses, nil
}

// Count returns the number of diagnoses matching the filters.
func (r *diagnosisRepository) Count(ctx context.Context, filters models.DiagnosisFilters) (int64, error) {
	where := diagnosisWhere(filters)
	query := `SELECT COUNT(*) FROM diagnoses` + where.clause()

	var count int64
	if err := r.db.QueryRow(ctx, query, where.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count diagnoses: %w", err)
	}

	return count, nil
}

// RecentByOwner returns the owner's newest diagnoses.
func (r *diagnosisRepository) RecentByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Diagnosis, error) {
	return r.List(ctx, models.DiagnosisFilters{OwnerID: &ownerID}, models.Page{Limit: limit})
}

// Update applies the patch under the owner scope and returns the updated
// row.
func (r *diagnosisRepository) Update(ctx context.Context, id, ownerID uuid.UUID, patch models.DiagnosisPatch) (*models.Diagnosis, error) {
	b := &setBuilder{}
	b.addValue("updated_at", time.Now())
	addOptional(b, "patient_age", patch.PatientAge)
	addOptional(b, "patient_sex", patch.PatientSex)
	addOptional(b, "location", patch.Location)
	addOptional(b, "latitude", patch.Latitude)
	addOptional(b, "longitude", patch.Longitude)
	addOptional(b, "image_url", patch.ImageURL)
	addOptional(b, "result", patch.Result)
	addOptional(b, "outcome", patch.Outcome)
	addOptional(b, "confidence", patch.Confidence)
	addOptional(b, "parasite_count", patch.ParasiteCount)
	addOptional(b, "parasite_species", patch.ParasiteSpecies)
	if patch.Symptoms.Set {
		if !patch.Symptoms.Valid {
			b.sets = append(b.sets, "symptoms = NULL")
		} else {
			symptomsJSON, err := json.Marshal(patch.Symptoms.Value)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal symptoms: %w", err)
			}
			b.addValue("symptoms", symptomsJSON)
		}
	}

	idPos := b.addArg(id)
	ownerPos := b.addArg(ownerID)
	query := `UPDATE diagnoses SET ` + strings.Join(b.sets, ", ") +
		fmt.Sprintf(" WHERE id = $%d AND user_id = $%d RETURNING ", idPos, ownerPos) + diagnosisColumns

	diagnosis, err := scanDiagnosis(r.db.QueryRow(ctx, query, b.args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update diagnosis: %w", err)
	}

	return diagnosis, nil
}

// Delete removes the row under the owner scope.
func (r *diagnosisRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	query := `DELETE FROM diagnoses WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete diagnosis: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// StatsByOwner aggregates the owner's diagnosis counts in one query.
// Inconclusive outcomes count toward the total only.
func (r *diagnosisRepository) StatsByOwner(ctx context.Context, ownerID uuid.UUID) (*models.DiagnosisStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE outcome = 'positive'),
		       COUNT(*) FILTER (WHERE outcome = 'negative'),
		       MAX(created_at)
		FROM diagnoses
		WHERE user_id = $1`

	var stats models.DiagnosisStats
	err := r.db.QueryRow(ctx, query, ownerID).Scan(
		&stats.Total,
		&stats.Positive,
		&stats.Negative,
		&stats.LastDiagnosisAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get diagnosis stats: %w", err)
	}

	return &stats, nil
}

func diagnosisWhere(filters models.DiagnosisFilters) *whereBuilder {
	b := &whereBuilder{}
	if filters.OwnerID != nil {
		b.add("user_id = $%d", *filters.OwnerID)
	}
	if filters.Outcome != nil {
		b.add("outcome = $%d", *filters.Outcome)
	}
	if filters.Location != nil {
		b.add("location ILIKE $%d", substring(*filters.Location))
	}
	if filters.ParasiteSpecies != nil {
		b.add("parasite_species ILIKE $%d", substring(*filters.ParasiteSpecies))
	}
	if filters.FromDate != nil {
		b.add("created_at >= $%d", *filters.FromDate)
	}
	if filters.ToDate != nil {
		b.add("created_at <= $%d", *filters.ToDate)
	}
	return b
}

func scanDiagnosis(row pgx.Row) (*models.Diagnosis, error) {
	var diagnosis models.Diagnosis
	var symptomsJSON []byte
	err := row.Scan(
		&diagnosis.ID,
		&diagnosis.UserID,
		&diagnosis.PatientAge,
		&diagnosis.PatientSex,
		&diagnosis.Location,
		&diagnosis.Latitude,
		&diagnosis.Longitude,
		&diagnosis.ImageURL,
		&diagnosis.Result,
		&diagnosis.Outcome,
		&diagnosis.Confidence,
		&diagnosis.ParasiteCount,
		&diagnosis.ParasiteSpecies,
		&symptomsJSON,
		&diagnosis.ModelVersion,
		&diagnosis.ProcessingMS,
		&diagnosis.CreatedAt,
		&diagnosis.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(symptomsJSON) > 0 {
		if err := json.Unmarshal(symptomsJSON, &diagnosis.Symptoms); err != nil {
			return nil, fmt.Errorf("failed to unmarshal symptoms: %w", err)
		}
	}

	return &diagnosis, nil
}

// Ensure diagnosisRepository implements DiagnosisRepository at compile time.
var _ DiagnosisRepository = (*diagnosisRepository)(nil)
