package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Authentication methods recorded in the amr claim.
const (
	MethodPassword = "pwd"
	MethodVoice    = "voice"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 24 * time.Hour

const issuer = "emora"

// ErrInvalidToken is returned by Tokens.Parse for any token it rejects.
var ErrInvalidToken = errors.New("accounts: invalid token")

// Claims are the JWT claims of an Emora session token.
type Claims struct {
	jwt.RegisteredClaims
	AMR []string `json:"amr,omitempty"`
}

// Tokens issues and checks HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token issuer. A non-positive ttl means DefaultTokenTTL.
func NewTokens(secret []byte, ttl time.Duration) (*Tokens, error) {
	if len(secret) < 16 {
		return nil, errors.New("accounts: token secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: secret, ttl: ttl, now: time.Now}, nil
}

// TTL returns the token lifetime.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for userID authenticated by method.
func (t *Tokens) Issue(userID, method string) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		AMR: []string{method},
	})
	s, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("accounts: sign token: %w", err)
	}
	return s, nil
}

// Parse verifies a token and returns its claims.
func (t *Tokens) Parse(s string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(s, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
