package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
)

var ErrUnauthorized = errors.New("invalid or missing token")

const principalKey = "principal"

// Principal is the authenticated caller. CompanyID is the tenant.
type Principal struct {
	UserID    string `json:"userId"`
	CompanyID string `json:"companyId"`
	Profile   string `json:"profile"`
}

// Authenticator resolves a bearer token to its principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// StaticTokens authenticates against a fixed token table.
type StaticTokens map[string]Principal

func (s StaticTokens) Authenticate(_ context.Context, token string) (Principal, error) {
	for known, principal := range s {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return principal, nil
		}
	}

	return Principal{}, ErrUnauthorized
}

// RequireAuth rejects requests without a valid bearer token and stores the
// principal for the handlers.
func RequireAuth(auth Authenticator) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c, "bearer token required")
		}

		principal, err := auth.Authenticate(c.Context(), token)
		if err != nil {
			return unauthorized(c, err.Error())
		}

		c.Locals(principalKey, principal)

		return c.Next()
	}
}

func principalFrom(c fiber.Ctx) Principal {
	principal, _ := c.Locals(principalKey).(Principal)

	return principal
}
