package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/foresee-health/outbreaklens-engine/pkg/apperrors"
	"github.com/foresee-health/outbreaklens-engine/pkg/database"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
)

const userColumns = `id, clerk_user_id, email, first_name, last_name, avatar_url, created_at, updated_at`

// UserRepository is the identity bridge's storage: it maps the external
// identity (clerk_user_id) to the durable local user row.
type UserRepository interface {
	// Upsert creates the row on first sight of an external identity and
	// refreshes the mutable profile fields on every later call. Safe to
	// call on every session establishment. Returns ErrEmailConflict when
	// the email is bound to a different external identity.
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	GetByClerkID(ctx context.Context, clerkUserID string) (*models.User, error)
	// GetByClerkIDWithStats also returns counts of owned child entities in
	// the same round trip, for dashboard summaries.
	GetByClerkIDWithStats(ctx context.Context, clerkUserID string) (*models.UserWithStats, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// DeleteByClerkID removes the row and returns it. Owned diagnoses,
	// forecasts, and reports go with it via FK cascade.
	DeleteByClerkID(ctx context.Context, clerkUserID string) (*models.User, error)
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db}
}

// Upsert inserts or refreshes the user row keyed on clerk_user_id.
func (r *userRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()

	query := `
		INSERT INTO users (id, clerk_user_id, email, first_name, last_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (clerk_user_id) DO UPDATE
		SET email = EXCLUDED.email,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    avatar_url = EXCLUDED.avatar_url,
		    updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns

	row := r.db.QueryRow(ctx, query,
		user.ID,
		user.ClerkUserID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		now,
	)

	stored, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// The clerk_user_id conflict is handled by the upsert; the only
			// unique constraint left to trip is the email index.
			return nil, apperrors.ErrEmailConflict
		}
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return stored, nil
}

// GetByClerkID retrieves a user by the external identity id.
func (r *userRepository) GetByClerkID(ctx context.Context, clerkUserID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE clerk_user_id = $1`
	return r.getOne(ctx, query, clerkUserID)
}

// GetByClerkIDWithStats retrieves a user plus owned-entity counts.
func (r *userRepository) GetByClerkIDWithStats(ctx context.Context, clerkUserID string) (*models.UserWithStats, error) {
	query := `
		SELECT u.id, u.clerk_user_id, u.email, u.first_name, u.last_name, u.avatar_url, u.created_at, u.updated_at,
		       (SELECT COUNT(*) FROM diagnoses d WHERE d.user_id = u.id),
		       (SELECT COUNT(*) FROM forecasts f WHERE f.user_id = u.id),
		       (SELECT COUNT(*) FROM reports r WHERE r.user_id = u.id)
		FROM users u
		WHERE u.clerk_user_id = $1`

	var user models.UserWithStats
	err := r.db.QueryRow(ctx, query, clerkUserID).Scan(
		&user.ID,
		&user.ClerkUserID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DiagnosisCount,
		&user.ForecastCount,
		&user.ReportCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user with stats: %w", err)
	}

	return &user, nil
}

// GetByEmail retrieves a user by email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

// GetByID retrieves a user by internal id.
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// DeleteByClerkID removes the user row, returning the deleted row.
// Child rows cascade at the schema level, not here.
func (r *userRepository) DeleteByClerkID(ctx context.Context, clerkUserID string) (*models.User, error) {
	query := `DELETE FROM users WHERE clerk_user_id = $1 RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, clerkUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	return user, nil
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.ClerkUserID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Ensure userRepository implements UserRepository at compile time.
var _ UserRepository = (*userRepository)(nil)
