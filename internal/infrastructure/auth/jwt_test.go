package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/auth"
)

func TestJWTManagerGenerateAndVerify(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("super-secret", time.Minute)
	actor := &domain.Actor{ID: "partner-7", Role: domain.RoleOverride}

	token, err := manager.Generate(actor)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("expected token to verify, got %v", err)
	}

	if got := claims.Actor(); got.ID != actor.ID || got.Role != actor.Role {
		t.Fatalf("expected claims to match actor, got %+v", got)
	}
}

func TestJWTManagerGenerateRejectsInvalidActor(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute)
	if _, err := manager.Generate(&domain.Actor{ID: "x", Role: "root"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestJWTManagerVerifyErrors(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute)

	expiredClaims := auth.Claims{
		ActorID: "expired",
		Role:    domain.RoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "trustledger",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
		},
	}

	expiredToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign expired token: %v", err)
	}

	if _, err := manager.Verify(expiredToken); !errors.Is(err, auth.ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}

	otherManager := auth.NewJWTManager("other-secret", time.Minute)
	if _, err := otherManager.Verify(expiredToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}

	if _, err := manager.Verify("not-a-token"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected failure for malformed token, got %v", err)
	}

	badRole := auth.Claims{
		ActorID: "someone",
		Role:    "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "trustledger",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	badRoleToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, badRole).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	if _, err := manager.Verify(badRoleToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected unknown role to be rejected, got %v", err)
	}
}
