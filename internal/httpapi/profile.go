package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uniflowhq/uniflow/internal/auth"
	"github.com/uniflowhq/uniflow/internal/profiles"
	"go.uber.org/zap"
)

// profileSvc is the subset of profiles.Service used by ProfileHandler.
type profileSvc interface {
	Get(ctx context.Context, userID uuid.UUID) (*profiles.Profile, error)
	Update(ctx context.Context, userID uuid.UUID, params profiles.UpdateParams) (*profiles.Profile, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

// passwordChanger is the subset of users.Service used for password changes.
type passwordChanger interface {
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
}

// ProfileHandler handles the authenticated /profile routes.
type ProfileHandler struct {
	profiles profileSvc
	users    passwordChanger
	tokens   *auth.TokenIssuer
	logger   *zap.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(profileSvc profileSvc, users passwordChanger, tokens *auth.TokenIssuer, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profileSvc, users: users, tokens: tokens, logger: logger}
}

// Register mounts all profile routes on the provided router group.
// Every route requires a valid Bearer access token.
func (h *ProfileHandler) Register(rg *gin.RouterGroup) {
	pg := rg.Group("/profile", auth.RequireUser(h.tokens))
	{
		pg.GET("/me", h.GetMe)
		pg.PUT("/me", h.UpdateMe)
		pg.DELETE("/me", h.DeleteMe)
		pg.PUT("/change-password", h.ChangePassword)
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// GetMe handles GET /profile/me — returns the authenticated user's profile.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	p, err := h.profiles.Get(c.Request.Context(), uid)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateMe handles PUT /profile/me — applies a validated partial update.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	var params profiles.UpdateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		writeValidation(c, "Invalid request body")
		return
	}

	p, err := h.profiles.Update(c.Request.Context(), uid, params)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteMe handles DELETE /profile/me — removes the profile record.
func (h *ProfileHandler) DeleteMe(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	if err := h.profiles.Delete(c.Request.Context(), uid); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile deleted"})
}

// ChangePassword handles PUT /profile/change-password.
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidation(c, "Invalid request body")
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// userID parses the authenticated user ID injected by the auth middleware.
// Writes the 401 response itself when the claim is missing or malformed.
func (h *ProfileHandler) userID(c *gin.Context) (uuid.UUID, bool) {
	raw := auth.UserIDFromCtx(c)
	uid, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorBody{
			Error:      "AuthenticationError",
			Message:    "Invalid or expired token",
			StatusCode: http.StatusUnauthorized,
		})
		return uuid.Nil, false
	}
	return uid, true
}
