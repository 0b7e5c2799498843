package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/trustledger/internal/domain"
)

var (
	ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	ErrExpiredToken = fmt.Errorf("%w: token has expired", domain.ErrUnauthorized)
)

const issuer = "trustledger"

// Claims represents the JWT claims
type Claims struct {
	ActorID string      `json:"actor_id"`
	Role    domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the ledger actor the token speaks for.
func (c *Claims) Actor() *domain.Actor {
	return &domain.Actor{ID: c.ActorID, Role: c.Role}
}

// JWTManager manages JWT token creation and validation
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// Generate issues a token for actor.
func (m *JWTManager) Generate(actor *domain.Actor) (string, error) {
	if err := actor.Validate(); err != nil {
		return "", err
	}

	now := m.now()
	claims := Claims{
		ActorID: actor.ID,
		Role:    actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   actor.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Verify verifies a JWT token and returns the claims
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuer(issuer),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if err := claims.Actor().Validate(); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
