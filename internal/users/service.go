package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uniflowhq/uniflow/internal/apperr"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// minPasswordLen is the minimum accepted password length, in characters.
const minPasswordLen = 6

// invalidCredentials is the single message returned for every signin failure
// mode (unknown email, OAuth-only account, wrong password) so callers cannot
// tell which part failed.
const invalidCredentials = "Invalid credentials"

// userRepo is the storage interface consumed by Service.
type userRepo interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateIdentity(ctx context.Context, userID uuid.UUID, googleID, name, avatar string) error
	SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
}

// profileEnsurer creates the user's profile record if it does not exist yet.
// Satisfied by *profiles.Service.
type profileEnsurer interface {
	Ensure(ctx context.Context, userID uuid.UUID, email, name string) error
}

// Service implements business logic for user account management.
type Service struct {
	repo     userRepo
	profiles profileEnsurer
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(repo userRepo, profiles profileEnsurer, logger *zap.Logger) *Service {
	return &Service{repo: repo, profiles: profiles, logger: logger}
}

// Signup creates a new user with email/password authentication and an empty
// profile. Plaintext passwords are hashed immediately and never stored or logged.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*User, error) {
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}
	if len(password) < minPasswordLen {
		return nil, apperr.Validation("Password must be at least 6 characters long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.ensureProfile(ctx, u)

	s.logger.Info("user created", zap.String("user_id", u.ID.String()))
	return u, nil
}

// Signin verifies email/password credentials and returns the user on success.
// All failure modes yield the identical AuthenticationError message.
func (s *Service) Signin(ctx context.Context, email, password string) (*User, error) {
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.Authentication(invalidCredentials)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if u.PasswordHash == "" {
		// OAuth-only account; indistinguishable from a wrong password.
		return nil, apperr.Authentication(invalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Authentication(invalidCredentials)
	}

	return u, nil
}

// OAuthLogin resolves a verified external identity to a user account,
// creating one on first login. Email is the durable key: an existing account
// with the same email gets the external ID, name, and avatar backfilled, but
// populated fields are never overwritten.
func (s *Service) OAuthLogin(ctx context.Context, p ExternalProfile) (*User, error) {
	if p.Email == "" {
		return nil, apperr.Authentication("No email found in Google profile")
	}

	u, err := s.repo.GetByEmail(ctx, p.Email)
	if errors.Is(err, ErrNotFound) {
		u = &User{
			Email:    p.Email,
			GoogleID: p.ProviderID,
			Name:     p.Name,
			Avatar:   p.Avatar,
		}
		if createErr := s.repo.Create(ctx, u); createErr != nil {
			if errors.Is(createErr, ErrDuplicateEmail) {
				// Lost a race with a concurrent login for the same email.
				u, err = s.repo.GetByEmail(ctx, p.Email)
				if err != nil {
					return nil, fmt.Errorf("lookup user after create race: %w", err)
				}
			} else {
				return nil, fmt.Errorf("create oauth user: %w", createErr)
			}
		} else {
			s.logger.Info("user created via oauth", zap.String("user_id", u.ID.String()))
		}
		s.ensureProfile(ctx, u)
		return u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	changed := false
	if u.GoogleID == "" && p.ProviderID != "" {
		u.GoogleID = p.ProviderID
		changed = true
	}
	if u.Name == "" && p.Name != "" {
		u.Name = p.Name
		changed = true
	}
	if u.Avatar == "" && p.Avatar != "" {
		u.Avatar = p.Avatar
		changed = true
	}
	if changed {
		if err := s.repo.UpdateIdentity(ctx, u.ID, u.GoogleID, u.Name, u.Avatar); err != nil {
			return nil, fmt.Errorf("backfill oauth identity: %w", err)
		}
	}

	s.ensureProfile(ctx, u)
	return u, nil
}

// ChangePassword replaces the stored hash after verifying the current password.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return apperr.Validation("Current and new password are required")
	}
	if len(newPassword) < minPasswordLen {
		return apperr.Validation("Password must be at least 6 characters long")
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.Authentication(invalidCredentials)
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if u.PasswordHash == "" {
		return apperr.Authentication(invalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return apperr.Authentication("Current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	s.logger.Info("password changed", zap.String("user_id", userID.String()))
	return nil
}

// GetByID retrieves a user by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}
	return u, nil
}

// ensureProfile creates the user's profile if missing. Non-fatal: the account
// exists either way, and the profile layer re-ensures on first access.
func (s *Service) ensureProfile(ctx context.Context, u *User) {
	if s.profiles == nil {
		return
	}
	if err := s.profiles.Ensure(ctx, u.ID, u.Email, u.Name); err != nil {
		s.logger.Warn("ensure profile",
			zap.String("user_id", u.ID.String()),
			zap.Error(err),
		)
	}
}
