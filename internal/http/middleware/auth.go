package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"taxportal/internal/model"
	"taxportal/internal/security"
)

const (
	UserIDLocalKey = "user_id"
	RoleLocalKey   = "role"
	EmailLocalKey  = "email"
)

// DenyFunc renders a 401/403 response. Handlers pass their error envelope writer.
type DenyFunc func(c *fiber.Ctx, status int, code, message string) error

func defaultDeny(c *fiber.Ctx, status int, _, message string) error {
	return fiber.NewError(status, message)
}

// RoleSource returns a user's stored role, or "" with a nil error when the
// account no longer exists.
type RoleSource func(ctx context.Context, userID string) (model.Role, error)

// RequireAuth accepts a session cookie or an "Authorization: Bearer" token.
// The cookie wins when both are present. When roles is set, the stored role
// replaces the one in the token so role changes apply to live sessions.
func RequireAuth(sessions *security.SessionManager, cookieName string, roles RoleSource, deny DenyFunc) fiber.Handler {
	if deny == nil {
		deny = defaultDeny
	}
	return func(c *fiber.Ctx) error {
		token := c.Cookies(cookieName)
		if token == "" {
			token = bearerToken(c.Get(fiber.HeaderAuthorization))
		}
		if token == "" {
			return deny(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		}
		claims, err := sessions.Parse(token)
		if err != nil {
			return deny(c, fiber.StatusUnauthorized, "INVALID_SESSION", "session is invalid or expired")
		}
		role := model.Role(claims.Role)
		if roles != nil {
			role, err = roles(c.UserContext(), claims.UserID)
			if err != nil {
				return deny(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
			if role == "" {
				return deny(c, fiber.StatusUnauthorized, "INVALID_SESSION", "session is invalid or expired")
			}
		}
		c.Locals(UserIDLocalKey, claims.UserID)
		c.Locals(RoleLocalKey, role)
		c.Locals(EmailLocalKey, claims.Email)
		return c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(deny DenyFunc, roles ...model.Role) fiber.Handler {
	if deny == nil {
		deny = defaultDeny
	}
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(RoleLocalKey).(model.Role)
		if !slices.Contains(roles, role) {
			return deny(c, fiber.StatusForbidden, "FORBIDDEN", "insufficient role")
		}
		return c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
