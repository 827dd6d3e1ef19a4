package backend

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// serviceTokenTTL keeps minted tokens short-lived; a fresh client (and
// therefore a fresh token) is built per registration anyway.
const serviceTokenTTL = 5 * time.Minute

// serviceClaims are the claims the backend's RPC layer authorizes on.
type serviceClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// mintServiceToken signs a short-lived service_role token for self-hosted
// backends that are keyed by a shared JWT secret instead of a static key.
func mintServiceToken(secret string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, serviceClaims{
		Role: "service_role",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "mesa",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(serviceTokenTTL)),
		},
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return signed, nil
}
