package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/invenops/ticketing/internal/domain"
	apperrors "github.com/invenops/ticketing/pkg/util"
)

const requesterKey = "auth_requester"

// Middleware validates bearer tokens and stores the requester identity.
type Middleware struct {
	tokens *TokenVerifier
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenVerifier) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	requester, err := m.tokens.Verify(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(requesterKey, requester)
	return c.Next()
}

// RequesterFromContext retrieves the authenticated requester.
func RequesterFromContext(c *fiber.Ctx) (domain.Requester, bool) {
	val := c.Locals(requesterKey)
	if val == nil {
		return domain.Requester{}, false
	}
	requester, ok := val.(domain.Requester)
	return requester, ok
}

// RequireAdmin ensures the caller holds the elevated role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requester, ok := RequesterFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !requester.IsAdmin() {
			return apperrors.NewAuthorizationRejection("elevated role required")
		}
		return c.Next()
	}
}
