package users

import (
	"time"

	"github.com/google/uuid"
)

// User represents a UniFlow account holder.
//
// A user is authenticatable once at least one credential path is set: a
// password hash (email/password signup) or a Google ID (OAuth login).
// Adding a credential never removes the other.
type User struct {
	ID           uuid.UUID `json:"id"                  db:"id"`
	Email        string    `json:"email"               db:"email"`
	PasswordHash string    `json:"-"                   db:"password_hash"`
	GoogleID     string    `json:"googleId,omitempty"  db:"google_id"`
	Name         string    `json:"name,omitempty"      db:"name"`
	Avatar       string    `json:"avatar,omitempty"    db:"avatar"`
	CreatedAt    time.Time `json:"createdAt"           db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"           db:"updated_at"`
}

// ExternalProfile is a verified identity returned by an OAuth provider.
type ExternalProfile struct {
	ProviderID string
	Email      string
	Name       string
	Avatar     string
}
