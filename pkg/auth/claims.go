// Package auth provides JWT-based authentication for outbreaklens-engine.
// It validates session tokens issued by the identity provider (Clerk)
// using its JWKS endpoint. The token is treated as an already-authenticated
// identity: no password or session management happens at this layer.
package auth

import (
	"context"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing session claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// GetClaims retrieves session claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*SessionClaims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// ExternalUserID extracts the identity provider's user id (the `sub`
// claim) from context. Returns empty string if not authenticated.
func ExternalUserID(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}
