package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uniflowhq/uniflow/internal/auth"
	"github.com/uniflowhq/uniflow/internal/users"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// googleUserinfoURL is Google's OpenID userinfo endpoint.
const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleOAuthConfig holds the Google OAuth client credentials.
// Empty ClientID/ClientSecret disables the OAuth routes.
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// userSvc is the interface expected by AuthHandler, satisfied by *users.Service.
type userSvc interface {
	Signup(ctx context.Context, email, password, name string) (*users.User, error)
	Signin(ctx context.Context, email, password string) (*users.User, error)
	OAuthLogin(ctx context.Context, p users.ExternalProfile) (*users.User, error)
}

// AuthHandler handles user authentication routes.
type AuthHandler struct {
	users     userSvc
	tokens    *auth.TokenIssuer
	googleCfg *oauth2.Config
	logger    *zap.Logger
}

// NewAuthHandler creates an AuthHandler. The OAuth client is constructed here,
// from explicit configuration, and injected into the handler — no ambient
// environment lookups.
func NewAuthHandler(userSvc userSvc, tokens *auth.TokenIssuer, google GoogleOAuthConfig, logger *zap.Logger) *AuthHandler {
	h := &AuthHandler{users: userSvc, tokens: tokens, logger: logger}
	if google.ClientID != "" && google.ClientSecret != "" {
		h.googleCfg = buildGoogleConfig(google)
	}
	return h
}

// buildGoogleConfig converts raw credentials into an oauth2.Config.
func buildGoogleConfig(cfg GoogleOAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

// Register mounts all auth routes on the provided router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/signin", h.Signin)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.GET("/google", h.GoogleRedirect)
		authGroup.GET("/google/callback", h.GoogleCallback)
	}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Signup handles POST /auth/signup — creates a new user account.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidation(c, "Invalid request body")
		return
	}

	u, err := h.users.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	RecordSignup()

	h.respondWithTokens(c, u)
}

// Signin handles POST /auth/signin — authenticates with email/password.
func (h *AuthHandler) Signin(c *gin.Context) {
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidation(c, "Invalid request body")
		return
	}

	u, err := h.users.Signin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RecordSignin(false)
		writeError(c, h.logger, err)
		return
	}
	RecordSignin(true)

	h.respondWithTokens(c, u)
}

// Refresh handles POST /auth/refresh — exchanges a refresh token for a fresh pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		writeValidation(c, "Refresh token is required")
		return
	}

	userID, err := h.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorBody{
			Error:      "AuthenticationError",
			Message:    "Invalid or expired token",
			StatusCode: http.StatusUnauthorized,
		})
		return
	}

	pair, err := h.tokens.IssuePair(userID)
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("issue token pair: %w", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// GoogleRedirect handles GET /auth/google — redirects to the provider consent page.
func (h *AuthHandler) GoogleRedirect(c *gin.Context) {
	if h.googleCfg == nil {
		writeValidation(c, "Google OAuth is not configured")
		return
	}

	state, err := h.tokens.IssueState()
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("issue oauth state: %w", err))
		return
	}

	url := h.googleCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback handles GET /auth/google/callback — exchanges the code,
// fetches the Google identity, and signs the user in (creating the account on
// first login).
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.googleCfg == nil {
		writeValidation(c, "Google OAuth is not configured")
		return
	}

	// The state parameter is minted by GoogleRedirect and echoed back by
	// Google; verifying it blocks CSRF-forged callbacks.
	if err := h.tokens.VerifyState(c.Query("state")); err != nil {
		writeValidation(c, "Invalid OAuth state")
		return
	}

	code := c.Query("code")
	if code == "" {
		writeValidation(c, "No authorization code provided")
		return
	}

	oauthToken, err := h.googleCfg.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("oauth code exchange", zap.Error(err))
		writeValidation(c, "OAuth code exchange failed")
		return
	}

	profile, err := fetchGoogleUserInfo(c.Request.Context(), oauthToken.AccessToken)
	if err != nil {
		h.logger.Error("fetch google user info", zap.Error(err))
		writeError(c, h.logger, fmt.Errorf("fetch user info: %w", err))
		return
	}

	u, err := h.users.OAuthLogin(c.Request.Context(), profile)
	if err != nil {
		RecordOAuthLogin(false)
		writeError(c, h.logger, err)
		return
	}
	RecordOAuthLogin(true)

	h.respondWithTokens(c, u)
}

// respondWithTokens issues a token pair for the user and writes the standard
// auth success body.
func (h *AuthHandler) respondWithTokens(c *gin.Context, u *users.User) {
	pair, err := h.tokens.IssuePair(u.ID.String())
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("issue token pair: %w", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"user":         u,
	})
}

// fetchGoogleUserInfo calls Google's userinfo API with the OAuth access token.
func fetchGoogleUserInfo(ctx context.Context, accessToken string) (users.ExternalProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserinfoURL, nil)
	if err != nil {
		return users.ExternalProfile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return users.ExternalProfile{}, fmt.Errorf("userinfo get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return users.ExternalProfile{}, fmt.Errorf("read userinfo body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return users.ExternalProfile{}, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, body)
	}

	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return users.ExternalProfile{}, fmt.Errorf("parse userinfo: %w", err)
	}

	return users.ExternalProfile{
		ProviderID: info.ID,
		Email:      info.Email,
		Name:       info.Name,
		Avatar:     info.Picture,
	}, nil
}
