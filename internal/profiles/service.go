package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uniflowhq/uniflow/internal/apperr"
	"go.uber.org/zap"
)

// profileRepo is the storage interface consumed by Service.
type profileRepo interface {
	Create(ctx context.Context, p *Profile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// validNotificationKeys whitelists the notification settings a client may set.
var validNotificationKeys = map[string]bool{
	"pushNotifications":    true,
	"emailNotifications":   true,
	"studyReminders":       true,
	"taskReminders":        true,
	"motivationalMessages": true,
}

// Service implements business logic for study profiles.
type Service struct {
	repo   profileRepo
	logger *zap.Logger
}

// NewService creates a new Service.
func NewService(repo profileRepo, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Ensure creates a default profile for the user if none exists. Idempotent:
// an existing profile (including one created by a concurrent request) is left
// untouched.
func (s *Service) Ensure(ctx context.Context, userID uuid.UUID, email, name string) error {
	_, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("lookup profile: %w", err)
	}

	p := NewDefault(userID, email, name)
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info("profile created", zap.String("user_id", userID.String()))
	return nil
}

// Get returns the profile owned by the given user.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("Profile not found")
		}
		return nil, fmt.Errorf("lookup profile: %w", err)
	}
	return p, nil
}

// Update applies a validated partial update and returns the updated profile.
// Concurrent updates are last-write-wins.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, params UpdateParams) (*Profile, error) {
	if err := validate(params); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("Profile not found")
		}
		return nil, fmt.Errorf("lookup profile: %w", err)
	}

	apply(p, params)

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("Profile not found")
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

// Delete removes the profile owned by the given user.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("Profile not found")
		}
		return fmt.Errorf("delete profile: %w", err)
	}
	s.logger.Info("profile deleted", zap.String("user_id", userID.String()))
	return nil
}

// validate enforces the preference range constraints.
func validate(params UpdateParams) error {
	for key := range params.NotificationSettings {
		if !validNotificationKeys[key] {
			return apperr.Validation(fmt.Sprintf("Invalid notification setting: %s", key))
		}
	}

	if g := params.StudyGoals; g != nil {
		if g.DailyHours != nil && (*g.DailyHours < 0 || *g.DailyHours > 24) {
			return apperr.Validation("Daily study hours must be between 0 and 24")
		}
		if g.WeeklyHours != nil && (*g.WeeklyHours < 0 || *g.WeeklyHours > 168) {
			return apperr.Validation("Weekly study hours must be between 0 and 168")
		}
	}

	if pr := params.Preferences; pr != nil {
		if pr.FocusModeDuration != nil && (*pr.FocusModeDuration < 1 || *pr.FocusModeDuration > 120) {
			return apperr.Validation("Focus mode duration must be between 1 and 120 minutes")
		}
		if pr.BreakDuration != nil && (*pr.BreakDuration < 1 || *pr.BreakDuration > 60) {
			return apperr.Validation("Break duration must be between 1 and 60 minutes")
		}
	}

	return nil
}

// apply merges a validated partial update into the profile.
func apply(p *Profile, params UpdateParams) {
	if params.Name != nil {
		p.Name = *params.Name
	}
	if params.ProfilePicture != nil {
		p.ProfilePicture = *params.ProfilePicture
	}
	if params.ThemeColor != nil {
		p.ThemeColor = *params.ThemeColor
	}
	if params.DarkMode != nil {
		p.DarkMode = *params.DarkMode
	}
	if params.School != nil {
		p.School = *params.School
	}
	if params.Department != nil {
		p.Department = *params.Department
	}
	if params.Level != nil {
		p.Level = *params.Level
	}
	if params.AcademicYear != nil {
		p.AcademicYear = *params.AcademicYear
	}
	if params.Subjects != nil {
		p.Subjects = *params.Subjects
	}
	if params.Bio != nil {
		p.Bio = *params.Bio
	}

	for key, on := range params.NotificationSettings {
		switch key {
		case "pushNotifications":
			p.NotificationSettings.PushNotifications = on
		case "emailNotifications":
			p.NotificationSettings.EmailNotifications = on
		case "studyReminders":
			p.NotificationSettings.StudyReminders = on
		case "taskReminders":
			p.NotificationSettings.TaskReminders = on
		case "motivationalMessages":
			p.NotificationSettings.MotivationalMessages = on
		}
	}

	if g := params.StudyGoals; g != nil {
		if g.DailyHours != nil {
			p.StudyGoals.DailyHours = *g.DailyHours
		}
		if g.WeeklyHours != nil {
			p.StudyGoals.WeeklyHours = *g.WeeklyHours
		}
		if g.Subjects != nil {
			p.StudyGoals.Subjects = g.Subjects
		}
	}

	if pr := params.Preferences; pr != nil {
		if pr.FocusModeDuration != nil {
			p.Preferences.FocusModeDuration = *pr.FocusModeDuration
		}
		if pr.BreakDuration != nil {
			p.Preferences.BreakDuration = *pr.BreakDuration
		}
		if pr.AutoStartBreaks != nil {
			p.Preferences.AutoStartBreaks = *pr.AutoStartBreaks
		}
		if pr.BackgroundMusic != nil {
			p.Preferences.BackgroundMusic = *pr.BackgroundMusic
		}
	}
}
