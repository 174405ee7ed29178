package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pulseops/pulseguardian/internal/server/auth"
	"github.com/pulseops/pulseguardian/internal/server/models"
	"github.com/pulseops/pulseguardian/internal/server/services"
)

const userContextKey = "user"
const registeredContextKey = "registered"

// requireLogin resolves the session cookie to a user and stashes it in
// the request context. Requests without a valid session get 401.
func (s *Server) requireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(sessionCookie)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, services.Outcome{OK: false, Errors: []string{"Login required."}})
		}

		email, err := auth.EmailFromSessionToken(cookie.Value, []byte(s.config.SecretKey))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, services.Outcome{OK: false, Errors: []string{"Login required."}})
		}

		user, registered, err := s.users.ResolveOrCreate(c.Request().Context(), email)
		if err != nil {
			s.logger.Error(c.Request().Context(), "user resolution failed", "email", email, "error", err.Error())
			return c.JSON(http.StatusInternalServerError, services.Outcome{OK: false, Errors: []string{"Internal error."}})
		}

		c.Set(userContextKey, user)
		c.Set(registeredContextKey, registered)
		return next(c)
	}
}

// requireAdmin hides admin-only routes from non-admins: the response is
// a plain 404, not 403, so the routes are indistinguishable from
// nonexistent ones.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		if user == nil || !user.Admin {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}
