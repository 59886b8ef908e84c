package handler

import (
	"net/http"

	"github.com/campusolx/backend/internal/middleware"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/service"
	"github.com/labstack/echo/v4"
)

// AdminHandler serves /api/admin. Routes sit behind middleware.RequireModerator
// and the services check the capability again.
type AdminHandler struct {
	moderation service.ModerationService
	items      service.ItemService
}

func NewAdminHandler(moderation service.ModerationService, items service.ItemService) *AdminHandler {
	return &AdminHandler{moderation: moderation, items: items}
}

type StatsResponse struct {
	PendingItems  int64          `json:"pendingItems"`
	TotalUsers    int64          `json:"totalUsers"`
	VerifiedUsers int64          `json:"verifiedUsers"`
	TotalItems    int64          `json:"totalItems"`
	RecentItems   []ItemResponse `json:"recentItems"`
}

type ScreeningResponse struct {
	ItemID    uint64 `json:"itemId"`
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

type moderationRequest struct {
	Message string `json:"message"`
}

func (h *AdminHandler) Stats(c echo.Context) error {
	st, err := h.moderation.Stats(c.Request().Context(), middleware.Principal(c))
	if err != nil {
		return writeError(c, err)
	}
	recent, err := withSellers(c.Request().Context(), h.items, st.RecentItems...)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]StatsResponse{"stats": {
		PendingItems:  st.PendingItems,
		TotalUsers:    st.TotalUsers,
		VerifiedUsers: st.VerifiedUsers,
		TotalItems:    st.TotalItems,
		RecentItems:   recent,
	}})
}

func (h *AdminHandler) PendingItems(c echo.Context) error {
	return h.listItems(c, model.ItemStatusPending)
}

func (h *AdminHandler) Items(c echo.Context) error {
	return h.listItems(c, model.ItemStatus(c.QueryParam("status")))
}

func (h *AdminHandler) listItems(c echo.Context, status model.ItemStatus) error {
	items, err := h.moderation.Items(c.Request().Context(), middleware.Principal(c), status)
	if err != nil {
		return writeError(c, err)
	}
	resp, err := withSellers(c.Request().Context(), h.items, items...)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]ItemResponse{"items": resp})
}

func (h *AdminHandler) Approve(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req moderationRequest
	if c.Request().ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			return writeError(c, err)
		}
	}
	item, err := h.items.Approve(c.Request().Context(), middleware.Principal(c), id, req.Message)
	if err != nil {
		return writeError(c, err)
	}
	resp, err := withSeller(c.Request().Context(), h.items, item)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Item approved successfully",
		"item":    resp,
	})
}

func (h *AdminHandler) Reject(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req moderationRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	item, err := h.items.Reject(c.Request().Context(), middleware.Principal(c), id, req.Message)
	if err != nil {
		return writeError(c, err)
	}
	resp, err := withSeller(c.Request().Context(), h.items, item)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Item rejected",
		"item":    resp,
	})
}

func (h *AdminHandler) DeleteItem(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.items.Delete(c.Request().Context(), middleware.Principal(c), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "ok", Message: "Item deleted successfully"})
}

func (h *AdminHandler) Screening(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.moderation.Screen(c.Request().Context(), middleware.Principal(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ScreeningResponse{ItemID: id, Score: res.Score, Rationale: res.Rationale})
}

func (h *AdminHandler) Users(c echo.Context) error {
	users, err := h.moderation.Users(c.Request().Context(), middleware.Principal(c))
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	return c.JSON(http.StatusOK, map[string][]UserResponse{"users": resp})
}

func (h *AdminHandler) VerifyUser(c echo.Context) error {
	u, err := h.moderation.VerifyUser(c.Request().Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "User verified", "user": toUserResponse(u)})
}

func (h *AdminHandler) PromoteUser(c echo.Context) error {
	u, err := h.moderation.PromoteUser(c.Request().Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "User promoted to admin", "user": toUserResponse(u)})
}
