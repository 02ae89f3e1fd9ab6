package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-exam-console/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny     = "any"
	AuthRoleAdmin   = RoleAdmin
	AuthRoleStudent = RoleStudent
)

// AuthOptions configures the WithAuth helper. OwnerParam names a route
// parameter that a student caller must match with their own user id; staff
// roles are not restricted by it.
type AuthOptions struct {
	Role        string
	RequireUser bool
	OwnerParam  string
}

// WithAuth wraps a handler with basic authentication/authorization guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if !requireUser && role != AuthRoleAny {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id")
		if requireUser && userID == nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		currentRole := normalizeRoleValue(c.Locals("user_role"))
		if opts.OwnerParam != "" && currentRole == AuthRoleStudent && !ownsParam(c, opts.OwnerParam) {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}

		if role == AuthRoleAny {
			// Anonymous access only when RequireUser=false.
			if !requireUser || userID != nil {
				return handler(c)
			}
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		switch role {
		case AuthRoleStudent:
			if currentRole != "student" {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		case AuthRoleAdmin:
			if currentRole != RoleAdmin && currentRole != RoleTeacher {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		default:
			if currentRole != role {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		}

		return handler(c)
	}
}

func ownsParam(c *fiber.Ctx, name string) bool {
	owner, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil {
		return false
	}
	switch id := c.Locals("user_id").(type) {
	case uint:
		return uint64(id) == owner
	case int:
		return id >= 0 && uint64(id) == owner
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		return err == nil && parsed == owner
	default:
		return false
	}
}
