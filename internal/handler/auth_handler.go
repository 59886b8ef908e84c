package handler

import (
	"net/http"

	"github.com/campusolx/backend/internal/middleware"
	"github.com/campusolx/backend/internal/service"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	identity service.IdentityService
}

func NewAuthHandler(identity service.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

type sessionResponse struct {
	Message   string       `json:"message"`
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
}

type googleLoginRequest struct {
	IDToken string `json:"idToken"`
}

func toSessionResponse(msg string, s *service.Session) sessionResponse {
	return sessionResponse{
		Message:   msg,
		User:      toUserResponse(&s.User),
		Token:     s.Token,
		ExpiresAt: formatTime(s.ExpiresAt),
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	s, err := h.identity.Register(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toSessionResponse("User registered successfully", s))
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	s, err := h.identity.Login(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse("Login successful", s))
}

func (h *AuthHandler) Google(c echo.Context) error {
	var req googleLoginRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	s, err := h.identity.LoginWithGoogle(c.Request().Context(), req.IDToken)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse("Login successful", s))
}

func (h *AuthHandler) Verify(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"valid": true,
		"user":  middleware.Principal(c),
	})
}

// Logout is stateless; clients discard the token.
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{Status: "ok", Message: "Logged out successfully"})
}
