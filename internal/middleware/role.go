package middleware

import (
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// RequireRole admits only tokens whose role claim is one of roles. It must
// run after JWTProtected.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, role, err := CurrentUser(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Only " + joinRoles(roles) + " accounts can access this resource",
		})
	}
}

func joinRoles(roles []string) string {
	out := ""
	for i, r := range roles {
		switch {
		case i == 0:
		case i == len(roles)-1:
			out += " or "
		default:
			out += ", "
		}
		out += r
	}
	return out
}
