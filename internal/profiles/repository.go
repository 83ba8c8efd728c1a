package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a profile lookup finds no matching record.
var ErrNotFound = errors.New("profile not found")

// ErrDuplicate is returned when a profile already exists for the user.
var ErrDuplicate = errors.New("profile already exists")

// Repository provides CRUD operations for profiles against PostgreSQL.
// The preference groups are stored as JSONB columns; subjects as text[].
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new profile record. Sets ID, CreatedAt, UpdatedAt.
// The unique index on user_id enforces the one-to-one invariant; a concurrent
// duplicate insert returns ErrDuplicate.
func (r *Repository) Create(ctx context.Context, p *Profile) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	q := `
		INSERT INTO profiles (
			id, user_id, email, name, profile_picture, theme_color, dark_mode,
			school, department, level, academic_year, subjects, bio,
			notification_settings, study_goals, preferences, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.db.Exec(ctx, q,
		p.ID, p.UserID, p.Email, p.Name, p.ProfilePicture, p.ThemeColor, p.DarkMode,
		p.School, p.Department, p.Level, p.AcademicYear, p.Subjects, p.Bio,
		p.NotificationSettings, p.StudyGoals, p.Preferences, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// profileColumns is the column list every profile query selects, in the order
// scanOne scans them.
const profileColumns = `id, user_id, email, name, profile_picture, theme_color, dark_mode,
	school, department, level, academic_year, subjects, bio,
	notification_settings, study_goals, preferences, created_at, updated_at`

// GetByUserID retrieves the profile owned by the given user.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return r.scanOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
}

// Update writes the full mutable column set. Last write wins.
func (r *Repository) Update(ctx context.Context, p *Profile) error {
	p.UpdatedAt = time.Now().UTC()
	q := `
		UPDATE profiles SET
			name = $2, profile_picture = $3, theme_color = $4, dark_mode = $5,
			school = $6, department = $7, level = $8, academic_year = $9,
			subjects = $10, bio = $11, notification_settings = $12,
			study_goals = $13, preferences = $14, updated_at = $15
		WHERE user_id = $1`
	tag, err := r.db.Exec(ctx, q,
		p.UserID, p.Name, p.ProfilePicture, p.ThemeColor, p.DarkMode,
		p.School, p.Department, p.Level, p.AcademicYear,
		p.Subjects, p.Bio, p.NotificationSettings,
		p.StudyGoals, p.Preferences, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUserID removes the profile owned by the given user.
func (r *Repository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanOne executes a single-row query selecting profileColumns and scans the
// result into a Profile.
func (r *Repository) scanOne(ctx context.Context, q string, args ...any) (*Profile, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	var p Profile
	if err := rows.Scan(
		&p.ID, &p.UserID, &p.Email, &p.Name, &p.ProfilePicture, &p.ThemeColor, &p.DarkMode,
		&p.School, &p.Department, &p.Level, &p.AcademicYear, &p.Subjects, &p.Bio,
		&p.NotificationSettings, &p.StudyGoals, &p.Preferences, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, rows.Err()
}
