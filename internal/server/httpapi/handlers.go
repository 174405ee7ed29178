package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pulseops/pulseguardian/internal/server/auth"
	"github.com/pulseops/pulseguardian/internal/server/management"
	"github.com/pulseops/pulseguardian/internal/server/models"
	"github.com/pulseops/pulseguardian/internal/server/services"
)

// View DTOs. The domain records carry no JSON tags on purpose; the wire
// shape is owned here.

type userView struct {
	Email string `json:"email"`
	Admin bool   `json:"admin"`
}

type pulseUserView struct {
	Username  string    `json:"username"`
	Owners    []string  `json:"owners"`
	CreatedAt time.Time `json:"created_at"`
}

type queueView struct {
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
}

func pulseUserViews(pus []*models.PulseUser) []pulseUserView {
	views := make([]pulseUserView, 0, len(pus))
	for _, pu := range pus {
		views = append(views, pulseUserView{
			Username:  pu.Username,
			Owners:    pu.OwnerEmails(),
			CreatedAt: pu.CreatedAt,
		})
	}
	return views
}

func queueViews(qs []*models.Queue) []queueView {
	views := make([]queueView, 0, len(qs))
	for _, q := range qs {
		v := queueView{Name: q.Name}
		if q.Owner != nil {
			v.Owner = q.Owner.Username
		}
		views = append(views, v)
	}
	return views
}

// handleLogin starts the login flow: a random state value goes into a
// short-lived cookie and into the provider redirect.
func (s *Server) handleLogin(c echo.Context) error {
	state := uuid.NewString()

	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   s.secureCookies(),
	})

	return c.Redirect(http.StatusFound, s.resolver.LoginURL(state))
}

// handleCallback finishes the login flow. The state parameter must match
// the state cookie; then the code is exchanged for a verified email and
// a session token is issued.
func (s *Server) handleCallback(c echo.Context) error {
	ctx := c.Request().Context()

	cookie, err := c.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != c.QueryParam("state") {
		return c.JSON(http.StatusBadRequest, services.Outcome{OK: false, Errors: []string{"Invalid login state."}})
	}

	email, err := s.resolver.ResolveEmail(ctx, c.QueryParam("code"))
	if err != nil {
		s.logger.Error(ctx, "login verification failed", "error", err.Error())
		return c.JSON(http.StatusUnauthorized, services.Outcome{
			OK:     false,
			Errors: []string{fmt.Sprintf("Error verifying with Auth0 (%s).", s.config.Auth0Domain)},
		})
	}

	_, registered, err := s.users.ResolveOrCreate(ctx, email)
	if err != nil {
		s.logger.Error(ctx, "user resolution failed", "email", email, "error", err.Error())
		return c.JSON(http.StatusInternalServerError, services.Outcome{OK: false, Errors: []string{"Internal error."}})
	}

	token, err := auth.GenerateSessionToken(email, []byte(s.config.SecretKey), s.config.SessionValidityDuration)
	if err != nil {
		s.logger.Error(ctx, "session token generation failed", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, services.Outcome{OK: false, Errors: []string{"Internal error."}})
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.config.SessionValidityDuration.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies(),
	})
	c.SetCookie(&http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	s.logger.Info(ctx, "user logged in", "email", email)
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "registered": registered})
}

func (s *Server) handleLogout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies(),
	})
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "redirect": "/"})
}

func (s *Server) handleProfile(c echo.Context) error {
	user := currentUser(c)
	registered, _ := c.Get(registeredContextKey).(bool)

	return c.JSON(http.StatusOK, map[string]any{
		"email":       user.Email,
		"admin":       user.Admin,
		"registered":  registered,
		"pulse_users": pulseUserViews(user.PulseUsers),
	})
}

func (s *Server) handleRegister(c echo.Context) error {
	out := s.pulseUsers.Register(c.Request().Context(), services.RegisterRequest{
		Username:             c.FormValue("username"),
		Password:             c.FormValue("password"),
		PasswordConfirmation: c.FormValue("password-verification"),
		Owners:               c.FormValue("owners-list"),
	})
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleUpdateInfo(c echo.Context) error {
	out := s.pulseUsers.UpdateInfo(c.Request().Context(), services.UpdateInfoRequest{
		Username:             c.FormValue("pulse-user"),
		NewPassword:          c.FormValue("new-password"),
		PasswordConfirmation: c.FormValue("new-password-verification"),
		Owners:               c.FormValue("owners-list"),
		Acting:               currentUser(c),
	})
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handlePulseUserList(c echo.Context) error {
	user := currentUser(c)

	var pus []*models.PulseUser
	var err error
	if user.Admin {
		pus, err = s.pulseUsers.List(c.Request().Context())
		if err != nil {
			s.logger.Error(c.Request().Context(), "pulse user listing failed", "error", err.Error())
			return c.JSON(http.StatusInternalServerError, services.Outcome{OK: false, Errors: []string{"Internal error."}})
		}
	} else {
		pus = user.PulseUsers
	}

	return c.JSON(http.StatusOK, map[string]any{"pulse_users": pulseUserViews(pus)})
}

func (s *Server) handlePulseUserDelete(c echo.Context) error {
	out := s.pulseUsers.Delete(c.Request().Context(), currentUser(c), c.Param("username"))
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleQueueList(c echo.Context) error {
	ctx := c.Request().Context()
	user := currentUser(c)

	all, err := s.queues.List(ctx)
	if err != nil {
		s.logger.Error(ctx, "queue listing failed", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, services.Outcome{OK: false, Errors: []string{"Internal error."}})
	}

	// Non-admins see only queues owned by one of their pulse users.
	var visible []*models.Queue
	if user.Admin {
		visible = all
	} else {
		for _, q := range all {
			if q.Owner != nil && q.Owner.OwnedBy(user.Email) {
				visible = append(visible, q)
			}
		}
	}

	resp := map[string]any{"queues": queueViews(visible)}
	if user.Admin {
		unowned, err := s.queues.ListUnowned(ctx)
		if err != nil {
			s.logger.Error(ctx, "unowned queue listing failed", "error", err.Error())
			return c.JSON(http.StatusInternalServerError, services.Outcome{OK: false, Errors: []string{"Internal error."}})
		}
		resp["unowned_queues"] = queueViews(unowned)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleQueueBindings serves GET /queue/<name>/bindings. The queue name
// itself may contain slashes, so the route is a wildcard and the
// trailing path segment is peeled off here.
func (s *Server) handleQueueBindings(c echo.Context) error {
	name, ok := strings.CutSuffix(c.Param("*"), "/bindings")
	if !ok || name == "" {
		return echo.NewHTTPError(http.StatusNotFound)
	}

	bindings, err := s.queues.Bindings(c.Request().Context(), name)
	if err != nil {
		s.logger.Error(c.Request().Context(), "binding listing failed", "queue", name, "error", err.Error())
		return c.JSON(http.StatusInternalServerError, services.Outcome{OK: false, Errors: []string{"Internal error."}})
	}
	if bindings == nil {
		bindings = []management.Binding{}
	}
	return c.JSON(http.StatusOK, map[string]any{"queue_name": name, "bindings": bindings})
}

func (s *Server) handleQueueDelete(c echo.Context) error {
	name := c.Param("*")
	if name == "" {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	out := s.queues.Delete(c.Request().Context(), currentUser(c), name)
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleUserList(c echo.Context) error {
	users, err := s.users.List(c.Request().Context())
	if err != nil {
		s.logger.Error(c.Request().Context(), "user listing failed", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, services.Outcome{OK: false, Errors: []string{"Internal error."}})
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, userView{Email: u.Email, Admin: u.Admin})
	}
	return c.JSON(http.StatusOK, map[string]any{"users": views})
}

func (s *Server) handleSetAdmin(c echo.Context) error {
	var body struct {
		IsAdmin *bool `json:"isAdmin"`
	}
	if err := c.Bind(&body); err != nil || body.IsAdmin == nil {
		return c.JSON(http.StatusBadRequest, services.Outcome{OK: false, Errors: []string{"Missing isAdmin value."}})
	}

	out := s.users.SetAdmin(c.Request().Context(), currentUser(c), c.Param("email"), *body.IsAdmin)
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleReconcile(c echo.Context) error {
	out := s.queues.Reconcile(c.Request().Context())
	return c.JSON(http.StatusOK, out)
}
