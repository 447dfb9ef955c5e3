// Package auth gates the catalog and the admin area. The original portal
// used two shared passwords; here they are bcrypt hashes checked at login,
// exchanged for a short-lived HMAC-signed token carrying a scope claim.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Scopes ordered by privilege; admin implies library.
const (
	ScopeLibrary = "library"
	ScopeAdmin   = "admin"
)

// ErrInvalidCredentials is returned when the password matches no gate.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken is returned for missing, malformed or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// Manager issues and verifies access tokens.
type Manager struct {
	secret      []byte
	ttl         time.Duration
	adminHash   string
	libraryHash string
}

// NewManager constructs a Manager. The hashes are bcrypt hashes of the
// admin and library passwords.
func NewManager(secret string, ttl time.Duration, adminHash, libraryHash string) *Manager {
	return &Manager{
		secret:      []byte(secret),
		ttl:         ttl,
		adminHash:   adminHash,
		libraryHash: libraryHash,
	}
}

// Login checks the password against the admin gate first, then the
// library gate, and issues a token for the matching scope.
func (m *Manager) Login(password string) (token, scope string, err error) {
	if bcrypt.CompareHashAndPassword([]byte(m.adminHash), []byte(password)) == nil {
		token, err = m.Issue(ScopeAdmin)
		return token, ScopeAdmin, err
	}
	if bcrypt.CompareHashAndPassword([]byte(m.libraryHash), []byte(password)) == nil {
		token, err = m.Issue(ScopeLibrary)
		return token, ScopeLibrary, err
	}
	return "", "", ErrInvalidCredentials
}

// Issue signs a token carrying the given scope.
func (m *Manager) Issue(scope string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"scope": scope,
		"iat":   now.Unix(),
		"exp":   now.Add(m.ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses the token and returns its scope.
func (m *Manager) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	scope, ok := claims["scope"].(string)
	if !ok {
		return "", ErrInvalidToken
	}
	return scope, nil
}

// Allows reports whether a token scope satisfies the required scope.
func Allows(tokenScope, required string) bool {
	if tokenScope == ScopeAdmin {
		return true
	}
	return tokenScope == required
}

// HashPassword produces a bcrypt hash for configuration bootstrap.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
