package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
)

const issuer = "expense-eagle"

// ErrInvalidToken is returned for tokens that are malformed, expired or badly signed
var ErrInvalidToken = errors.New("invalid session token")

// Claims carries the caller identity inside a session token
type Claims struct {
	UserID string       `json:"user_id"`
	Role   receipt.Role `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 session tokens
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager signing with secret; tokens live for ttl
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue creates a token for user and returns it with its expiry
func (m *Manager) Issue(user *receipt.User) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)

	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return token, expires, nil
}

// Parse verifies token and returns the identity it carries
func (m *Manager) Parse(token string) (receipt.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return receipt.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == "" || !claims.Role.IsValid() {
		return receipt.Identity{}, ErrInvalidToken
	}
	return receipt.Identity{UserID: claims.UserID, Role: claims.Role}, nil
}
