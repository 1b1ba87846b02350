// Package services implements the business rules of the record store:
// identity syncing, ownership enforcement, derived fields, and the report
// lifecycle. Services validate and derive; repositories persist.
package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/apperrors"
	"github.com/foresee-health/outbreaklens-engine/pkg/auth"
	"github.com/foresee-health/outbreaklens-engine/pkg/logging"
	"github.com/foresee-health/outbreaklens-engine/pkg/models"
	"github.com/foresee-health/outbreaklens-engine/pkg/repositories"
)

// UserService bridges verified session identities to local user rows.
type UserService interface {
	// SyncFromClaims upserts the local user row for a verified session.
	// Idempotent; meant to run on every session establishment.
	SyncFromClaims(ctx context.Context, claims *auth.SessionClaims) (*models.User, error)
	// GetProfile returns the user row with owned-entity counts.
	GetProfile(ctx context.Context, clerkUserID string) (*models.UserWithStats, error)
	// ResolveOwner maps the external identity to the local row, which every
	// owner-scoped operation keys on.
	ResolveOwner(ctx context.Context, clerkUserID string) (*models.User, error)
	// DeleteAccount removes the user and, via cascade, everything they own.
	DeleteAccount(ctx context.Context, clerkUserID string) error
}

type userService struct {
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(users repositories.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		users:  users,
		logger: logger.Named("user_service"),
	}
}

// SyncFromClaims upserts the user row keyed on the token subject.
func (s *userService) SyncFromClaims(ctx context.Context, claims *auth.SessionClaims) (*models.User, error) {
	if claims == nil || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing token subject", apperrors.ErrValidation)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", apperrors.ErrValidation)
	}

	user, err := s.users.Upsert(ctx, &models.User{
		ClerkUserID: claims.Subject,
		Email:       claims.Email,
		FirstName:   optionalString(claims.FirstName),
		LastName:    optionalString(claims.LastName),
		AvatarURL:   optionalString(claims.AvatarURL),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user synced",
		zap.String("user_id", user.ID.String()),
		zap.String("email", logging.RedactEmail(user.Email)),
	)

	return user, nil
}

// GetProfile returns the user with owned-entity counts.
func (s *userService) GetProfile(ctx context.Context, clerkUserID string) (*models.UserWithStats, error) {
	return s.users.GetByClerkIDWithStats(ctx, clerkUserID)
}

// ResolveOwner returns the local user row for an external identity.
func (s *userService) ResolveOwner(ctx context.Context, clerkUserID string) (*models.User, error) {
	return s.users.GetByClerkID(ctx, clerkUserID)
}

// DeleteAccount removes the user row; owned records cascade.
func (s *userService) DeleteAccount(ctx context.Context, clerkUserID string) error {
	user, err := s.users.DeleteByClerkID(ctx, clerkUserID)
	if err != nil {
		return err
	}

	s.logger.Info("user account deleted",
		zap.String("user_id", user.ID.String()),
		zap.String("email", logging.RedactEmail(user.Email)),
	)

	return nil
}

// optionalString maps empty claim strings to nil columns.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ UserService = (*userService)(nil)
