package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail signature or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

const tokenIssuer = "se-atlas"

// Claims carries the session reference inside a token.
type Claims struct {
	SessionID string `json:"sid"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 session tokens.
type Tokens struct {
	signingKey []byte
	ttl        time.Duration
}

// NewTokens creates a token service. An empty secret gets a random key, so
// tokens do not survive a restart.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("could not generate signing key: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{signingKey: key, ttl: ttl}, nil
}

// TTL returns the token lifetime.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for s.
func (t *Tokens) Issue(s *Session) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: s.ID,
		Username:  s.Username,
		Role:      s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(t.signingKey)
}

// Parse validates raw and returns its claims.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return t.signingKey, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
