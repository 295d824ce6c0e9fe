package middleware

import (
	"context"

	"learnplan/backend/models"
	"learnplan/backend/utils"

	"github.com/gofiber/fiber/v2"
)

const userLocalsKey = "user"

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware rejects requests without a valid bearer token with 401 and
// WWW-Authenticate: Bearer. The resolved user is stored in the request locals.
func AuthMiddleware(auth Authenticator, log *utils.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := utils.ExtractBearerToken(c)
		if err != nil {
			return utils.Unauthorized(c, "Not authenticated")
		}

		user, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return utils.Fail(c, log, err)
		}

		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

// CurrentUser returns the user set by AuthMiddleware, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userLocalsKey).(*models.User)
	return user
}
