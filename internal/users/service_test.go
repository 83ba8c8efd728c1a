package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/uniflowhq/uniflow/internal/apperr"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// stubRepo is an in-memory userRepo for service tests.
type stubRepo struct {
	byID    map[uuid.UUID]*User
	byEmail map[string]*User

	createErr error
	creates   int

	// emailMisses makes the next N GetByEmail calls report ErrNotFound, for
	// simulating lookups that race with a concurrent create.
	emailMisses int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		byID:    make(map[uuid.UUID]*User),
		byEmail: make(map[string]*User),
	}
}

func (r *stubRepo) Create(ctx context.Context, u *User) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byEmail[u.Email]; ok {
		return ErrDuplicateEmail
	}
	u.ID = uuid.New()
	cp := *u
	r.byID[u.ID] = &cp
	r.byEmail[u.Email] = &cp
	r.creates++
	return nil
}

func (r *stubRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	if r.emailMisses > 0 {
		r.emailMisses--
		return nil, ErrNotFound
	}
	u, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubRepo) UpdateIdentity(ctx context.Context, userID uuid.UUID, googleID, name, avatar string) error {
	u, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	u.GoogleID = googleID
	u.Name = name
	u.Avatar = avatar
	return nil
}

func (r *stubRepo) SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	u, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

// stubEnsurer records Ensure calls and can fail on demand.
type stubEnsurer struct {
	calls int
	err   error
}

func (e *stubEnsurer) Ensure(ctx context.Context, userID uuid.UUID, email, name string) error {
	e.calls++
	return e.err
}

func newTestService() (*Service, *stubRepo, *stubEnsurer) {
	repo := newStubRepo()
	ensurer := &stubEnsurer{}
	return NewService(repo, ensurer, zap.NewNop()), repo, ensurer
}

func TestSignup(t *testing.T) {
	svc, repo, ensurer := newTestService()
	ctx := context.Background()

	u, err := svc.Signup(ctx, "alice@example.com", "hunter22", "Alice")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if u.ID == uuid.Nil {
		t.Error("expected assigned user ID")
	}
	if u.Email != "alice@example.com" || u.Name != "Alice" {
		t.Errorf("unexpected user: %+v", u)
	}
	if ensurer.calls != 1 {
		t.Errorf("profile ensured %d times, want 1", ensurer.calls)
	}

	// The stored credential is a bcrypt hash, never the plaintext.
	stored := repo.byEmail["alice@example.com"]
	if stored.PasswordHash == "hunter22" {
		t.Fatal("plaintext password stored")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter22")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
		wantMsg  string
	}{
		{"missing email", "", "hunter22", "Email and password are required"},
		{"missing password", "alice@example.com", "", "Email and password are required"},
		{"short password", "alice@example.com", "12345", "Password must be at least 6 characters long"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tc.email, tc.password, "")
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Fatalf("kind = %v, want validation (err: %v)", apperr.KindOf(err), err)
			}
			if got := apperr.MessageOf(err); got != tc.wantMsg {
				t.Errorf("message = %q, want %q", got, tc.wantMsg)
			}
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "alice@example.com", "hunter22", ""); err != nil {
		t.Fatalf("first signup: %v", err)
	}

	_, err := svc.Signup(ctx, "alice@example.com", "different-pass", "")
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want conflict (err: %v)", apperr.KindOf(err), err)
	}
	if got := apperr.MessageOf(err); got != "User already exists" {
		t.Errorf("message = %q, want 'User already exists'", got)
	}
}

func TestSigninSuccess(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Signup(ctx, "alice@example.com", "hunter22", "Alice")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	u, err := svc.Signin(ctx, "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Signin: %v", err)
	}
	if u.ID != created.ID {
		t.Errorf("signed-in user %s, want %s", u.ID, created.ID)
	}
}

// All signin failure modes must return the identical message so a caller
// cannot probe which emails exist or which accounts are OAuth-only.
func TestSigninFailuresAreUniform(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "alice@example.com", "hunter22", ""); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	// An OAuth-only account has no password hash.
	oauthOnly := &User{Email: "bob@example.com", GoogleID: "google-1"}
	if err := repo.Create(ctx, oauthOnly); err != nil {
		t.Fatalf("create oauth user: %v", err)
	}

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", "hunter22"},
		{"wrong password", "alice@example.com", "wrong-pass"},
		{"oauth-only account", "bob@example.com", "hunter22"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Signin(ctx, tc.email, tc.password)
			if apperr.KindOf(err) != apperr.KindAuthentication {
				t.Fatalf("kind = %v, want authentication (err: %v)", apperr.KindOf(err), err)
			}
			if got := apperr.MessageOf(err); got != "Invalid credentials" {
				t.Errorf("message = %q, want 'Invalid credentials'", got)
			}
		})
	}
}

func TestOAuthLoginCreatesUser(t *testing.T) {
	svc, repo, ensurer := newTestService()
	ctx := context.Background()

	u, err := svc.OAuthLogin(ctx, ExternalProfile{
		ProviderID: "google-1",
		Email:      "alice@example.com",
		Name:       "Alice",
		Avatar:     "https://example.com/a.png",
	})
	if err != nil {
		t.Fatalf("OAuthLogin: %v", err)
	}
	if u.GoogleID != "google-1" || u.Name != "Alice" {
		t.Errorf("unexpected user: %+v", u)
	}
	if repo.creates != 1 {
		t.Errorf("creates = %d, want 1", repo.creates)
	}
	if ensurer.calls != 1 {
		t.Errorf("profile ensured %d times, want 1", ensurer.calls)
	}

	// A second login for the same identity reuses the account.
	again, err := svc.OAuthLogin(ctx, ExternalProfile{ProviderID: "google-1", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("second OAuthLogin: %v", err)
	}
	if again.ID != u.ID {
		t.Errorf("second login got user %s, want %s", again.ID, u.ID)
	}
	if repo.creates != 1 {
		t.Errorf("creates after second login = %d, want 1", repo.creates)
	}
}

func TestOAuthLoginBackfillsOnlyEmptyFields(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	// Password account with a name already set but no avatar or Google ID.
	created, err := svc.Signup(ctx, "alice@example.com", "hunter22", "Alice Original")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	u, err := svc.OAuthLogin(ctx, ExternalProfile{
		ProviderID: "google-1",
		Email:      "alice@example.com",
		Name:       "Alice FromGoogle",
		Avatar:     "https://example.com/a.png",
	})
	if err != nil {
		t.Fatalf("OAuthLogin: %v", err)
	}
	if u.ID != created.ID {
		t.Fatalf("linked user %s, want %s", u.ID, created.ID)
	}
	if u.GoogleID != "google-1" {
		t.Errorf("googleId = %q, want backfilled google-1", u.GoogleID)
	}
	if u.Name != "Alice Original" {
		t.Errorf("name = %q, existing value must not be overwritten", u.Name)
	}
	if u.Avatar != "https://example.com/a.png" {
		t.Errorf("avatar = %q, want backfilled", u.Avatar)
	}

	// The linked account keeps its password.
	if _, err := svc.Signin(ctx, "alice@example.com", "hunter22"); err != nil {
		t.Errorf("password signin after oauth link: %v", err)
	}
	stored := repo.byID[created.ID]
	if stored.GoogleID != "google-1" {
		t.Errorf("stored googleId = %q, want google-1", stored.GoogleID)
	}
}

func TestOAuthLoginRequiresEmail(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.OAuthLogin(context.Background(), ExternalProfile{ProviderID: "google-1"})
	if apperr.KindOf(err) != apperr.KindAuthentication {
		t.Fatalf("kind = %v, want authentication (err: %v)", apperr.KindOf(err), err)
	}
	if got := apperr.MessageOf(err); got != "No email found in Google profile" {
		t.Errorf("message = %q", got)
	}
}

func TestOAuthLoginSurvivesCreateRace(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	// The email is free at lookup time but taken by the time Create runs:
	// the winner already exists, the first lookup misses, Create reports a
	// duplicate, and the retry lookup must find the winner.
	winner := &User{Email: "alice@example.com", GoogleID: "google-1"}
	if err := repo.Create(ctx, winner); err != nil {
		t.Fatalf("seed winner: %v", err)
	}
	repo.emailMisses = 1

	u, err := svc.OAuthLogin(ctx, ExternalProfile{ProviderID: "google-1", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("OAuthLogin: %v", err)
	}
	if u.ID != winner.ID {
		t.Errorf("resolved user %s, want race winner %s", u.ID, winner.ID)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Signup(ctx, "alice@example.com", "old-password", "")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "old-password", "new-password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	// The old password stops working, the new one works.
	if _, err := svc.Signin(ctx, "alice@example.com", "old-password"); err == nil {
		t.Error("old password still accepted after change")
	}
	if _, err := svc.Signin(ctx, "alice@example.com", "new-password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestChangePasswordFailures(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Signup(ctx, "alice@example.com", "old-password", "")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	oauthOnly := &User{Email: "bob@example.com", GoogleID: "google-1"}
	if err := repo.Create(ctx, oauthOnly); err != nil {
		t.Fatalf("create oauth user: %v", err)
	}

	t.Run("missing fields", func(t *testing.T) {
		err := svc.ChangePassword(ctx, u.ID, "", "new-password")
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("kind = %v, want validation", apperr.KindOf(err))
		}
	})

	t.Run("short new password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, u.ID, "old-password", "12345")
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("kind = %v, want validation", apperr.KindOf(err))
		}
		if got := apperr.MessageOf(err); got != "Password must be at least 6 characters long" {
			t.Errorf("message = %q", got)
		}
	})

	t.Run("wrong current password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, u.ID, "not-the-password", "new-password")
		if apperr.KindOf(err) != apperr.KindAuthentication {
			t.Fatalf("kind = %v, want authentication", apperr.KindOf(err))
		}
		if got := apperr.MessageOf(err); got != "Current password is incorrect" {
			t.Errorf("message = %q", got)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		err := svc.ChangePassword(ctx, uuid.New(), "old-password", "new-password")
		if apperr.KindOf(err) != apperr.KindAuthentication {
			t.Fatalf("kind = %v, want authentication", apperr.KindOf(err))
		}
	})

	t.Run("oauth-only account", func(t *testing.T) {
		err := svc.ChangePassword(ctx, oauthOnly.ID, "anything", "new-password")
		if apperr.KindOf(err) != apperr.KindAuthentication {
			t.Fatalf("kind = %v, want authentication", apperr.KindOf(err))
		}
	})
}

func TestGetByID(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Signup(ctx, "alice@example.com", "hunter22", "")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	got, err := svc.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("email = %q", got.Email)
	}

	if _, err := svc.GetByID(ctx, uuid.New()); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("missing user kind = %v, want not-found", apperr.KindOf(err))
	}
}

// A failing profile layer must not fail account creation.
func TestSignupToleratesProfileFailure(t *testing.T) {
	repo := newStubRepo()
	ensurer := &stubEnsurer{err: errors.New("profile store down")}
	svc := NewService(repo, ensurer, zap.NewNop())

	u, err := svc.Signup(context.Background(), "alice@example.com", "hunter22", "")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if u.ID == uuid.Nil {
		t.Error("expected created user despite profile failure")
	}
}
