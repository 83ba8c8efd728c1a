package profiles

import (
	"time"

	"github.com/google/uuid"
)

// NotificationSettings controls which notification categories are delivered.
type NotificationSettings struct {
	PushNotifications    bool `json:"pushNotifications"`
	EmailNotifications   bool `json:"emailNotifications"`
	StudyReminders       bool `json:"studyReminders"`
	TaskReminders        bool `json:"taskReminders"`
	MotivationalMessages bool `json:"motivationalMessages"`
}

// StudyGoals holds the user's study-hour targets, overall and per subject.
type StudyGoals struct {
	DailyHours  float64            `json:"dailyHours"`
	WeeklyHours float64            `json:"weeklyHours"`
	Subjects    map[string]float64 `json:"subjects"`
}

// Preferences holds focus-session (Pomodoro) settings, in minutes.
type Preferences struct {
	FocusModeDuration int  `json:"focusModeDuration"`
	BreakDuration     int  `json:"breakDuration"`
	AutoStartBreaks   bool `json:"autoStartBreaks"`
	BackgroundMusic   bool `json:"backgroundMusic"`
}

// Profile is the per-user study profile, one-to-one with a user account.
// Email and name are kept in sync with the user record at creation time.
type Profile struct {
	ID                   uuid.UUID            `json:"id"                       db:"id"`
	UserID               uuid.UUID            `json:"userId"                   db:"user_id"`
	Email                string               `json:"email"                    db:"email"`
	Name                 string               `json:"name,omitempty"           db:"name"`
	ProfilePicture       string               `json:"profilePicture,omitempty" db:"profile_picture"`
	ThemeColor           string               `json:"themeColor"               db:"theme_color"`
	DarkMode             bool                 `json:"darkMode"                 db:"dark_mode"`
	School               string               `json:"school"                   db:"school"`
	Department           string               `json:"department"               db:"department"`
	Level                string               `json:"level"                    db:"level"`
	AcademicYear         string               `json:"academicYear"             db:"academic_year"`
	Subjects             []string             `json:"subjects"                 db:"subjects"`
	Bio                  string               `json:"bio"                      db:"bio"`
	NotificationSettings NotificationSettings `json:"notificationSettings"     db:"notification_settings"`
	StudyGoals           StudyGoals           `json:"studyGoals"               db:"study_goals"`
	Preferences          Preferences          `json:"preferences"              db:"preferences"`
	CreatedAt            time.Time            `json:"createdAt"                db:"created_at"`
	UpdatedAt            time.Time            `json:"updatedAt"                db:"updated_at"`
}

// defaultThemeColor is the client's default accent (blue).
const defaultThemeColor = "#3B82F6"

// NewDefault returns a fresh profile for the given user, pre-populated with
// empty free-text fields and the client's default preference values.
func NewDefault(userID uuid.UUID, email, name string) *Profile {
	return &Profile{
		UserID:     userID,
		Email:      email,
		Name:       name,
		ThemeColor: defaultThemeColor,
		Subjects:   []string{},
		NotificationSettings: NotificationSettings{
			PushNotifications:    true,
			EmailNotifications:   true,
			StudyReminders:       true,
			TaskReminders:        true,
			MotivationalMessages: true,
		},
		StudyGoals: StudyGoals{
			DailyHours:  4,
			WeeklyHours: 25,
			Subjects:    map[string]float64{},
		},
		Preferences: Preferences{
			FocusModeDuration: 25,
			BreakDuration:     5,
			AutoStartBreaks:   true,
			BackgroundMusic:   false,
		},
	}
}

// UpdateParams is a partial profile update. Nil fields are left untouched.
type UpdateParams struct {
	Name                 *string              `json:"name"`
	ProfilePicture       *string              `json:"profilePicture"`
	ThemeColor           *string              `json:"themeColor"`
	DarkMode             *bool                `json:"darkMode"`
	School               *string              `json:"school"`
	Department           *string              `json:"department"`
	Level                *string              `json:"level"`
	AcademicYear         *string              `json:"academicYear"`
	Subjects             *[]string            `json:"subjects"`
	Bio                  *string              `json:"bio"`
	NotificationSettings map[string]bool      `json:"notificationSettings"`
	StudyGoals           *StudyGoalsUpdate    `json:"studyGoals"`
	Preferences          *PreferencesUpdate   `json:"preferences"`
}

// StudyGoalsUpdate is a partial update of StudyGoals.
type StudyGoalsUpdate struct {
	DailyHours  *float64           `json:"dailyHours"`
	WeeklyHours *float64           `json:"weeklyHours"`
	Subjects    map[string]float64 `json:"subjects"`
}

// PreferencesUpdate is a partial update of Preferences.
type PreferencesUpdate struct {
	FocusModeDuration *int  `json:"focusModeDuration"`
	BreakDuration     *int  `json:"breakDuration"`
	AutoStartBreaks   *bool `json:"autoStartBreaks"`
	BackgroundMusic   *bool `json:"backgroundMusic"`
}
