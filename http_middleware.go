package accounts

import (
	"github.com/gofiber/fiber/v2"
)

// ContextUserKey is the fiber locals key holding the authenticated user
const ContextUserKey = "accounts:user"

// RequireAuth resolves the Authorization header to a user and stores it in
// the request locals. Requests without a valid bearer credential get a 401.
func RequireAuth(bearer *BearerTokenService, logger Logger) fiber.Handler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(ctx *fiber.Ctx) error {
		header := ctx.Get(fiber.HeaderAuthorization)

		user, err := bearer.Resolve(ctx.UserContext(), header)
		if err != nil {
			logger.Debug("bearer auth rejected: %s", err)
			return renderError(ctx, err)
		}

		ctx.Locals(ContextUserKey, user)
		ctx.SetUserContext(WithContext(ctx.UserContext(), user))

		return ctx.Next()
	}
}

// CurrentUser returns the user stored by RequireAuth
func CurrentUser(ctx *fiber.Ctx) (*User, error) {
	user, ok := ctx.Locals(ContextUserKey).(*User)
	if !ok || user == nil {
		return nil, ErrMissingCredential
	}
	return user, nil
}
