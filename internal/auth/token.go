// Package auth implements the UniFlow session token layer.
//
// It provides:
//   - TokenIssuer  — issues and verifies HS256 JWT access/refresh token pairs
//   - RequireUser  — Gin middleware enforcing Bearer access-token authentication
//
// Tokens are stateless: validity is entirely a function of signature and
// expiry at verification time. Access and refresh tokens are signed with two
// independent secrets, so a leaked refresh secret cannot mint access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenInvalid is returned for malformed tokens, bad signatures, and
// tokens of the wrong type (e.g. a refresh token presented as access).
var ErrTokenInvalid = errors.New("invalid token")

// ErrTokenExpired is returned when the token's exp claim has passed.
var ErrTokenExpired = errors.New("token expired")

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims are the JWT claims for a UniFlow session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Type   string `json:"typ"`
}

// TokenPair is an access + refresh token pair bound to one user.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Config holds the signing secrets and lifetimes for a TokenIssuer.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration // default: 15 minutes
	RefreshTTL    time.Duration // default: 7 days
}

// TokenIssuer issues and verifies user session JWTs.
type TokenIssuer struct {
	cfg Config
	now func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. Zero TTLs fall back to the defaults.
func NewTokenIssuer(cfg Config) *TokenIssuer {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// SetClock overrides the time source. Used by tests to simulate expiry.
func (t *TokenIssuer) SetClock(now func() time.Time) {
	t.now = now
}

// IssuePair creates a fresh access + refresh token pair for the given user.
func (t *TokenIssuer) IssuePair(userID string) (TokenPair, error) {
	access, err := t.sign(userID, tokenTypeAccess, t.cfg.AccessSecret, t.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := t.sign(userID, tokenTypeRefresh, t.cfg.RefreshSecret, t.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess validates an access token and returns the embedded user ID.
func (t *TokenIssuer) VerifyAccess(tokenStr string) (string, error) {
	return t.verify(tokenStr, tokenTypeAccess, t.cfg.AccessSecret)
}

// VerifyRefresh validates a refresh token and returns the embedded user ID.
func (t *TokenIssuer) VerifyRefresh(tokenStr string) (string, error) {
	return t.verify(tokenStr, tokenTypeRefresh, t.cfg.RefreshSecret)
}

// IssueState creates a short-lived token used as the OAuth state parameter.
func (t *TokenIssuer) IssueState() (string, error) {
	return t.sign("oauth-state", "state", t.cfg.AccessSecret, 10*time.Minute)
}

// VerifyState validates an OAuth state token.
func (t *TokenIssuer) VerifyState(tokenStr string) error {
	_, err := t.verify(tokenStr, "state", t.cfg.AccessSecret)
	return err
}

func (t *TokenIssuer) sign(userID, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := t.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		UserID: userID,
		Type:   typ,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (t *TokenIssuer) verify(tokenStr, wantType string, secret []byte) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrTokenInvalid
	}
	if claims.Type != wantType {
		return "", fmt.Errorf("%w: not a %s token", ErrTokenInvalid, wantType)
	}
	return claims.UserID, nil
}
