package handler

import (
	"net/http"
	"strconv"

	"github.com/campusolx/backend/internal/middleware"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/service"
	"github.com/labstack/echo/v4"
)

type NotificationHandler struct {
	svc service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type NotificationResponse struct {
	ID        uint64  `json:"id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	ItemID    *uint64 `json:"itemId,omitempty"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"createdAt"`
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		ItemID:    n.ItemID,
		Read:      n.ReadAt != nil,
		CreatedAt: formatTime(n.CreatedAt),
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	unreadOnly := c.QueryParam("unread_only") == "true"
	limit := 20
	if lStr := c.QueryParam("limit"); lStr != "" {
		if lParsed, err := strconv.Atoi(lStr); err == nil && lParsed > 0 && lParsed <= 100 {
			limit = lParsed
		}
	}
	list, unreadCount, err := h.svc.List(c.Request().Context(), middleware.Principal(c).UserID, unreadOnly, limit)
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		resp = append(resp, toNotificationResponse(n))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"notifications": resp,
		"unreadCount":   unreadCount,
	})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	if err := h.svc.MarkAllRead(c.Request().Context(), middleware.Principal(c).UserID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}
