package auth

import (
	"strings"

	"github.com/egoauth/ego/pkg/iam"
	"github.com/egoauth/ego/pkg/iam/token"
	"github.com/egoauth/ego/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// TokenMiddleware authenticates requests that carry a bearer session token.
type TokenMiddleware struct {
	tokens *token.Service
}

func NewTokenMiddleware(tokens *token.Service) *TokenMiddleware {
	return &TokenMiddleware{tokens: tokens}
}

// Authenticate validates the bearer token and stores the resulting auth
// context in fiber locals for downstream handlers.
func (m *TokenMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" {
			return iam.ErrUnauthorized().WithDetail("reason", "missing bearer token")
		}

		claims, err := m.tokens.Validate(raw)
		if err != nil {
			return err
		}

		c.Locals(string(kernel.AuthContextKey), m.tokens.AuthContext(claims))
		return c.Next()
	}
}

// CallerFromLocals recovers the auth context a handler runs under; nil when
// the route was not behind Authenticate.
func CallerFromLocals(c *fiber.Ctx) *kernel.AuthContext {
	caller, _ := c.Locals(string(kernel.AuthContextKey)).(*kernel.AuthContext)
	return caller
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
		return parts[1]
	}
	return ""
}
