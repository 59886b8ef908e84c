package handler

import (
	"net/http"
	"time"

	"github.com/campusolx/backend/internal/middleware"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/service"
	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	identity service.IdentityService
	items    service.ItemService
}

func NewUserHandler(identity service.IdentityService, items service.ItemService) *UserHandler {
	return &UserHandler{identity: identity, items: items}
}

type UserResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	University string `json:"university"`
	Verified   bool   `json:"verified"`
	Admin      bool   `json:"admin"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

type PublicUserResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	University string `json:"university"`
	Verified   bool   `json:"verified"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		University: u.University,
		Verified:   u.Verified,
		Admin:      u.Moderator,
		CreatedAt:  formatTime(u.CreatedAt),
	}
}

func toPublicUser(u *model.User) *PublicUserResponse {
	if u == nil {
		return nil
	}
	return &PublicUserResponse{
		ID:         u.ID,
		Name:       u.Name,
		University: u.University,
		Verified:   u.Verified,
		CreatedAt:  formatTime(u.CreatedAt),
	}
}

func (h *UserHandler) Profile(c echo.Context) error {
	u, err := h.identity.Profile(c.Request().Context(), middleware.Principal(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]UserResponse{"user": toUserResponse(u)})
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req service.UpdateProfileInput
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	u, err := h.identity.UpdateProfile(c.Request().Context(), middleware.Principal(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    toUserResponse(u),
	})
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	u, err := h.identity.PublicProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]*PublicUserResponse{"user": toPublicUser(u)})
}

// Items lists a user's approved items.
func (h *UserHandler) Items(c echo.Context) error {
	items, err := h.items.ListBySeller(c.Request().Context(), c.Param("id"), true)
	if err != nil {
		return writeError(c, err)
	}
	resp, err := withSellers(c.Request().Context(), h.items, items...)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]ItemResponse{"items": resp})
}

// DeleteAccount acknowledges the request; accounts are not removed in-band.
func (h *UserHandler) DeleteAccount(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:  "accepted",
		Message: "Account deletion requested. An administrator will process it.",
	})
}
