// Package client provides the UniFlow Go SDK for the UniFlow REST API.
//
// It deliberately depends only on the standard library so importers do not
// inherit the server's stack.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// User is the account record returned by the auth endpoints.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	GoogleID  string    `json:"googleId,omitempty"`
	Name      string    `json:"name,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthResult is the response of signup, signin, and the OAuth callback.
type AuthResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// TokenPair is the response of a refresh call.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Profile is the study profile returned by the /profile endpoints.
// Preference groups are kept loosely typed; the SDK does not validate them.
type Profile struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"userId"`
	Email                string             `json:"email"`
	Name                 string             `json:"name,omitempty"`
	ProfilePicture       string             `json:"profilePicture,omitempty"`
	ThemeColor           string             `json:"themeColor"`
	DarkMode             bool               `json:"darkMode"`
	School               string             `json:"school"`
	Department           string             `json:"department"`
	Level                string             `json:"level"`
	AcademicYear         string             `json:"academicYear"`
	Subjects             []string           `json:"subjects"`
	Bio                  string             `json:"bio"`
	NotificationSettings map[string]bool    `json:"notificationSettings"`
	StudyGoals           map[string]any     `json:"studyGoals"`
	Preferences          map[string]any     `json:"preferences"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

// Health is the response of the health endpoint.
type Health struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Database  string `json:"database"`
	UserCount int    `json:"userCount"`
	Timestamp string `json:"timestamp"`
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Name       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.StatusCode, e.Message)
}

// Client is the UniFlow SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken attaches a pre-obtained access token to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.bearerToken = token }
}

// New creates a Client for the API at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the access token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bearerToken = token
}

// Signup creates a new account. On success the client adopts the new access token.
func (c *Client) Signup(ctx context.Context, email, password, name string) (*AuthResult, error) {
	var res AuthResult
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Signin authenticates with email/password. On success the client adopts the
// new access token.
func (c *Client) Signin(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Refresh exchanges a refresh token for a fresh pair. On success the client
// adopts the new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var res TokenPair
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// GetProfile returns the authenticated user's profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/profile/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile applies a partial profile update. fields uses the wire names
// (e.g. "themeColor", "studyGoals").
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]any) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodPut, "/profile/me", fields, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProfile removes the authenticated user's profile.
func (c *Client) DeleteProfile(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/profile/me", nil, nil)
}

// ChangePassword replaces the account password.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	body := map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}
	return c.do(ctx, http.MethodPut, "/profile/change-password", body, nil)
}

// GetHealth returns the API health report.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// do sends a JSON request and decodes the response into out (when non-nil).
// Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	token := c.bearerToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError converts an error response body into an *APIError.
func decodeError(status int, raw []byte) error {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Name = http.StatusText(status)
		apiErr.Message = string(raw)
	}
	if apiErr.StatusCode == 0 {
		apiErr.StatusCode = status
	}
	return apiErr
}
