package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/foresee-health/outbreaklens-engine/pkg/testhelpers"
)

// devToken signs a token with a throwaway HMAC key. Dev-mode validation
// never checks the signature, only the claim shape.
func devToken(t *testing.T, claims *SessionClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

func TestValidateTokenUnverifiedMode(t *testing.T) {
	client, err := NewJWKSClient(&JWKSConfig{EnableVerification: false})
	if err != nil {
		t.Fatalf("NewJWKSClient failed: %v", err)
	}

	tokenString := devToken(t, &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_2abcDEF"},
		Email:            "ama@example.org",
		FirstName:        "Ama",
	})

	claims, err := client.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "user_2abcDEF" {
		t.Errorf("Subject = %q, want user_2abcDEF", claims.Subject)
	}
	if claims.Email != "ama@example.org" {
		t.Errorf("Email = %q, want ama@example.org", claims.Email)
	}
	if claims.FirstName != "Ama" {
		t.Errorf("FirstName = %q, want Ama", claims.FirstName)
	}
}

func TestValidateTokenUnverifiedAcceptsUnsignedToken(t *testing.T) {
	client, err := NewJWKSClient(&JWKSConfig{EnableVerification: false})
	if err != nil {
		t.Fatalf("NewJWKSClient failed: %v", err)
	}

	tokenString := testhelpers.GenerateTestJWT("user_2xyzABC", "kofi@example.org", "Kofi")

	claims, err := client.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "user_2xyzABC" {
		t.Errorf("Subject = %q, want user_2xyzABC", claims.Subject)
	}
	if claims.FirstName != "Kofi" {
		t.Errorf("FirstName = %q, want Kofi", claims.FirstName)
	}
}

func TestValidateTokenUnverifiedRequiresSubject(t *testing.T) {
	client, err := NewJWKSClient(&JWKSConfig{EnableVerification: false})
	if err != nil {
		t.Fatalf("NewJWKSClient failed: %v", err)
	}

	tokenString := devToken(t, &SessionClaims{Email: "ama@example.org"})

	if _, err := client.ValidateToken(tokenString); err == nil {
		t.Error("expected an error for a token without a subject")
	}
}

func TestValidateTokenUnverifiedRejectsGarbage(t *testing.T) {
	client, err := NewJWKSClient(&JWKSConfig{EnableVerification: false})
	if err != nil {
		t.Fatalf("NewJWKSClient failed: %v", err)
	}

	if _, err := client.ValidateToken("not-a-jwt"); err == nil {
		t.Error("expected a parse error")
	}
}
