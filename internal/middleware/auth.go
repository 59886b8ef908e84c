package middleware

import (
	"strings"

	"github.com/campusolx/backend/internal/logger"
	"github.com/campusolx/backend/internal/service"
	"github.com/labstack/echo/v4"
)

const principalKey = "principal"

type AuthMiddleware struct {
	identity service.IdentityService
}

func NewAuthMiddleware(identity service.IdentityService) *AuthMiddleware {
	return &AuthMiddleware{identity: identity}
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(c echo.Context) string {
	authz := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(authz) < 7 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}

// queryOrBearerToken also accepts ?token=, for browser WebSocket clients
// that cannot set headers.
func queryOrBearerToken(c echo.Context) string {
	if t := BearerToken(c); t != "" {
		return t
	}
	return strings.TrimSpace(c.QueryParam("token"))
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.require(BearerToken, next)
}

func (m *AuthMiddleware) RequireAuthWS(next echo.HandlerFunc) echo.HandlerFunc {
	return m.require(queryOrBearerToken, next)
}

func (m *AuthMiddleware) require(extract func(echo.Context) string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := m.identity.Authenticate(c.Request().Context(), extract(c))
		if err != nil {
			return err
		}
		setPrincipal(c, p)
		return next(c)
	}
}

// OptionalAuth attaches a principal when a valid token is present and an
// anonymous one otherwise. It never rejects.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p := m.identity.OptionalAuthenticate(c.Request().Context(), BearerToken(c))
		setPrincipal(c, p)
		return next(c)
	}
}

// RequireModerator must run after RequireAuth.
func RequireModerator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !service.Authorize(Principal(c), service.CapabilityModerator) {
			return service.Forbidden("admin access required")
		}
		return next(c)
	}
}

func setPrincipal(c echo.Context, p service.Principal) {
	c.Set(principalKey, p)
	if !p.Anonymous() {
		req := c.Request()
		c.SetRequest(req.WithContext(logger.WithUserID(req.Context(), p.UserID)))
	}
}

// Principal returns the caller attached by the auth middleware, or an
// anonymous principal.
func Principal(c echo.Context) service.Principal {
	p, _ := c.Get(principalKey).(service.Principal)
	return p
}
