package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bitdevs/estudos/core/user"
)

// roleMiddleware lets the request through when the token role satisfies allowed.
func roleMiddleware(allowed func(user.Role) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(claims.Role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func staffMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.Role.IsStaff)
}

func studentMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.Role.IsStudent)
}

// adminMiddleware only admits the Administrativo collection.
func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(r user.Role) bool { return r == user.RoleStaff })
}
