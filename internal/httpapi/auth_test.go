package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uniflowhq/uniflow/internal/apperr"
	"github.com/uniflowhq/uniflow/internal/auth"
	"github.com/uniflowhq/uniflow/internal/users"
	"go.uber.org/zap"
)

// stubUserSvc satisfies userSvc with canned responses.
type stubUserSvc struct {
	signupUser *users.User
	signupErr  error
	signinUser *users.User
	signinErr  error
	oauthUser  *users.User
	oauthErr   error
}

func (s *stubUserSvc) Signup(ctx context.Context, email, password, name string) (*users.User, error) {
	return s.signupUser, s.signupErr
}

func (s *stubUserSvc) Signin(ctx context.Context, email, password string) (*users.User, error) {
	return s.signinUser, s.signinErr
}

func (s *stubUserSvc) OAuthLogin(ctx context.Context, p users.ExternalProfile) (*users.User, error) {
	return s.oauthUser, s.oauthErr
}

func newAuthIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer(auth.Config{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	})
}

func setupAuthRouter(svc userSvc, issuer *auth.TokenIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAuthHandler(svc, issuer, GoogleOAuthConfig{}, zap.NewNop())
	h.Register(r.Group("/"))
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func testUser() *users.User {
	return &users.User{
		ID:    uuid.New(),
		Email: "alice@example.com",
		Name:  "Alice",
	}
}

func TestSignupReturnsTokenPair(t *testing.T) {
	u := testUser()
	issuer := newAuthIssuer()
	r := setupAuthRouter(&stubUserSvc{signupUser: u}, issuer)

	w := postJSON(t, r, "/auth/signup", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22",
		"name":     "Alice",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)

	access, _ := body["token"].(string)
	refresh, _ := body["refreshToken"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("missing tokens in body: %v", body)
	}
	if userID, err := issuer.VerifyAccess(access); err != nil || userID != u.ID.String() {
		t.Errorf("access token subject = %q (err %v), want %s", userID, err, u.ID)
	}

	userBody, _ := body["user"].(map[string]any)
	if userBody["email"] != "alice@example.com" {
		t.Errorf("user.email = %v", userBody["email"])
	}
	if _, leaked := userBody["passwordHash"]; leaked {
		t.Error("password hash leaked in response")
	}
}

func TestSignupConflict(t *testing.T) {
	r := setupAuthRouter(&stubUserSvc{signupErr: apperr.Conflict("User already exists")}, newAuthIssuer())

	w := postJSON(t, r, "/auth/signup", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22",
	})

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "ConflictError" || body["message"] != "User already exists" {
		t.Errorf("error envelope: %v", body)
	}
	if body["statusCode"] != float64(http.StatusConflict) {
		t.Errorf("statusCode = %v, want 409", body["statusCode"])
	}
}

func TestSignupValidationError(t *testing.T) {
	r := setupAuthRouter(&stubUserSvc{signupErr: apperr.Validation("Email and password are required")}, newAuthIssuer())

	w := postJSON(t, r, "/auth/signup", map[string]string{})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "ValidationError" {
		t.Errorf("error envelope: %v", body)
	}
}

func TestSigninInvalidCredentials(t *testing.T) {
	r := setupAuthRouter(&stubUserSvc{signinErr: apperr.Authentication("Invalid credentials")}, newAuthIssuer())

	w := postJSON(t, r, "/auth/signin", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "AuthenticationError" || body["message"] != "Invalid credentials" {
		t.Errorf("error envelope: %v", body)
	}
}

// Internal failures must not leak detail to the client.
func TestUnknownErrorIsGeneric500(t *testing.T) {
	r := setupAuthRouter(&stubUserSvc{signinErr: context.DeadlineExceeded}, newAuthIssuer())

	w := postJSON(t, r, "/auth/signin", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22",
	})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "InternalServerError" {
		t.Errorf("error name = %v", body["error"])
	}
	if body["message"] != "An unexpected error occurred" {
		t.Errorf("message = %v, internal detail must not leak", body["message"])
	}
}

func TestRefresh(t *testing.T) {
	issuer := newAuthIssuer()
	r := setupAuthRouter(&stubUserSvc{}, issuer)

	pair, err := issuer.IssuePair("11111111-2222-3333-4444-555555555555")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	w := postJSON(t, r, "/auth/refresh", map[string]string{"refreshToken": pair.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	access, _ := body["token"].(string)
	userID, err := issuer.VerifyAccess(access)
	if err != nil {
		t.Fatalf("fresh access token invalid: %v", err)
	}
	if userID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("subject = %q", userID)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	issuer := newAuthIssuer()
	r := setupAuthRouter(&stubUserSvc{}, issuer)

	pair, err := issuer.IssuePair("11111111-2222-3333-4444-555555555555")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	w := postJSON(t, r, "/auth/refresh", map[string]string{"refreshToken": pair.AccessToken})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 (body %s)", w.Code, w.Body.String())
	}
}

func TestRefreshRequiresToken(t *testing.T) {
	r := setupAuthRouter(&stubUserSvc{}, newAuthIssuer())

	w := postJSON(t, r, "/auth/refresh", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGoogleRoutesDisabledWithoutCredentials(t *testing.T) {
	r := setupAuthRouter(&stubUserSvc{}, newAuthIssuer())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if body["message"] != "Google OAuth is not configured" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestGoogleRedirectIssuesState(t *testing.T) {
	issuer := newAuthIssuer()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAuthHandler(&stubUserSvc{}, issuer, GoogleOAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
	}, zap.NewNop())
	h.Register(r.Group("/"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	loc, err := w.Result().Location()
	if err != nil {
		t.Fatalf("no Location header: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("redirect carries no state parameter")
	}
	if err := issuer.VerifyState(state); err != nil {
		t.Errorf("state parameter not verifiable: %v", err)
	}
	if got := loc.Query().Get("client_id"); got != "client-id" {
		t.Errorf("client_id = %q", got)
	}
}

func TestGoogleCallbackRejectsForgedState(t *testing.T) {
	issuer := newAuthIssuer()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAuthHandler(&stubUserSvc{}, issuer, GoogleOAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, zap.NewNop())
	h.Register(r.Group("/"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=forged&code=abc", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if body["message"] != "Invalid OAuth state" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestGoogleCallbackRequiresCode(t *testing.T) {
	issuer := newAuthIssuer()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAuthHandler(&stubUserSvc{}, issuer, GoogleOAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, zap.NewNop())
	h.Register(r.Group("/"))

	state, err := issuer.IssueState()
	if err != nil {
		t.Fatalf("IssueState: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state, nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if body["message"] != "No authorization code provided" {
		t.Errorf("message = %v", body["message"])
	}
}
