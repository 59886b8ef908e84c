package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campusolx/backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	service.IdentityService
	principals map[string]service.Principal
}

func (f fakeIdentity) Authenticate(_ context.Context, token string) (service.Principal, error) {
	if token == "" {
		return service.Principal{}, service.ErrMissingToken
	}
	p, ok := f.principals[token]
	if !ok {
		return service.Principal{}, service.ErrInvalidToken
	}
	return p, nil
}

func (f fakeIdentity) OptionalAuthenticate(ctx context.Context, token string) service.Principal {
	p, _ := f.Authenticate(ctx, token)
	return p
}

func newTestMiddleware() *AuthMiddleware {
	return NewAuthMiddleware(fakeIdentity{principals: map[string]service.Principal{
		"user-token":  {UserID: "u1", Name: "User"},
		"admin-token": {UserID: "a1", Name: "Admin", Moderator: true},
	}})
}

func run(t *testing.T, h echo.HandlerFunc, target, authz string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	return c, h(c)
}

func ok(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestRequireAuth(t *testing.T) {
	m := newTestMiddleware()

	c, err := run(t, m.RequireAuth(ok), "/", "Bearer user-token")
	require.NoError(t, err)
	assert.Equal(t, "u1", Principal(c).UserID)

	_, err = run(t, m.RequireAuth(ok), "/", "")
	assert.ErrorIs(t, err, service.ErrMissingToken)

	_, err = run(t, m.RequireAuth(ok), "/", "Bearer bogus")
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	_, err = run(t, m.RequireAuth(ok), "/?token=user-token", "")
	assert.ErrorIs(t, err, service.ErrMissingToken, "query token only accepted on websocket routes")
}

func TestRequireAuthWSAcceptsQueryToken(t *testing.T) {
	m := newTestMiddleware()
	c, err := run(t, m.RequireAuthWS(ok), "/ws?token=user-token", "")
	require.NoError(t, err)
	assert.Equal(t, "u1", Principal(c).UserID)
}

func TestOptionalAuth(t *testing.T) {
	m := newTestMiddleware()

	c, err := run(t, m.OptionalAuth(ok), "/", "Bearer bogus")
	require.NoError(t, err)
	assert.True(t, Principal(c).Anonymous())

	c, err = run(t, m.OptionalAuth(ok), "/", "bearer user-token")
	require.NoError(t, err)
	assert.Equal(t, "u1", Principal(c).UserID)
}

func TestRequireModerator(t *testing.T) {
	m := newTestMiddleware()
	chain := m.RequireAuth(RequireModerator(ok))

	_, err := run(t, chain, "/", "Bearer admin-token")
	assert.NoError(t, err)

	_, err = run(t, chain, "/", "Bearer user-token")
	assert.True(t, service.IsKind(err, service.KindForbidden))
}
