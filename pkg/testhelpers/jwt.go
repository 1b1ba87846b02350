package testhelpers

import (
	"encoding/base64"
	"fmt"
)

// GenerateTestJWT creates a test session token for use when verification
// is disabled. The token has a valid structure but no signature
// (alg: none). Useful for testing auth flows without real JWKS validation.
func GenerateTestJWT(sub, email, firstName string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s"`, sub)
	if email != "" {
		payload += fmt.Sprintf(`,"email":"%s"`, email)
	}
	if firstName != "" {
		payload += fmt.Sprintf(`,"first_name":"%s"`, firstName)
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns the token with a "Bearer " prefix for
// the Authorization header.
func GenerateTestJWTWithBearer(sub, email, firstName string) string {
	return "Bearer " + GenerateTestJWT(sub, email, firstName)
}
