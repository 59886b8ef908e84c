package handler

import (
	"net/http"

	"github.com/campusolx/backend/internal/middleware"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/service"
	"github.com/labstack/echo/v4"
)

type ConversationHandler struct {
	svc service.ConversationService
}

func NewConversationHandler(svc service.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type ConversationResponse struct {
	ID        uint64 `json:"id"`
	ItemID    uint64 `json:"itemId"`
	BuyerID   string `json:"buyerId"`
	SellerID  string `json:"sellerId"`
	CreatedAt string `json:"createdAt"`
}

type MessageResponse struct {
	ID           uint64              `json:"id"`
	ChatID       uint64              `json:"chatId"`
	SenderID     string              `json:"senderId"`
	Sender       *PublicUserResponse `json:"sender,omitempty"`
	Content      string              `json:"content"`
	IsOwnMessage bool                `json:"isOwnMessage"`
	CreatedAt    string              `json:"createdAt"`
}

type ConversationSummaryResponse struct {
	ConversationResponse
	Item         *ItemResponse       `json:"item,omitempty"`
	OtherUser    *PublicUserResponse `json:"otherUser,omitempty"`
	LastMessage  *MessageResponse    `json:"lastMessage,omitempty"`
	MessageCount int64               `json:"messageCount"`
}

type ConversationDetailResponse struct {
	ConversationResponse
	Item      *ItemResponse       `json:"item,omitempty"`
	OtherUser *PublicUserResponse `json:"otherUser,omitempty"`
	Messages  []MessageResponse   `json:"messages"`
}

type createConversationRequest struct {
	ItemID   uint64 `json:"itemId"`
	SellerID string `json:"sellerId"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func toConversationResponse(cv *model.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        cv.ID,
		ItemID:    cv.ItemID,
		BuyerID:   cv.BuyerID,
		SellerID:  cv.SellerID,
		CreatedAt: formatTime(cv.CreatedAt),
	}
}

func toMessageResponse(m *service.MessageView) MessageResponse {
	return MessageResponse{
		ID:           m.ID,
		ChatID:       m.ConversationID,
		SenderID:     m.SenderID,
		Sender:       toPublicUser(m.Sender),
		Content:      m.Content,
		IsOwnMessage: m.IsOwn,
		CreatedAt:    formatTime(m.CreatedAt),
	}
}

func itemResponsePtr(item *model.Item) *ItemResponse {
	if item == nil {
		return nil
	}
	r := toItemResponse(item)
	return &r
}

func (h *ConversationHandler) List(c echo.Context) error {
	p := middleware.Principal(c)
	summaries, err := h.svc.ListForUser(c.Request().Context(), p)
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]ConversationSummaryResponse, 0, len(summaries))
	for i := range summaries {
		s := &summaries[i]
		r := ConversationSummaryResponse{
			ConversationResponse: toConversationResponse(&s.Conversation),
			Item:                 itemResponsePtr(s.Item),
			OtherUser:            toPublicUser(s.Other),
			MessageCount:         s.MessageCount,
		}
		if s.LastMessage != nil {
			m := toMessageResponse(&service.MessageView{Message: *s.LastMessage, IsOwn: s.LastMessage.SenderID == p.UserID})
			r.LastMessage = &m
		}
		resp = append(resp, r)
	}
	return c.JSON(http.StatusOK, map[string][]ConversationSummaryResponse{"chats": resp})
}

func (h *ConversationHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	detail, err := h.svc.Get(c.Request().Context(), middleware.Principal(c), id)
	if err != nil {
		return writeError(c, err)
	}
	msgs := make([]MessageResponse, 0, len(detail.Messages))
	for i := range detail.Messages {
		msgs = append(msgs, toMessageResponse(&detail.Messages[i]))
	}
	return c.JSON(http.StatusOK, map[string]ConversationDetailResponse{"chat": {
		ConversationResponse: toConversationResponse(&detail.Conversation),
		Item:                 itemResponsePtr(detail.Item),
		OtherUser:            toPublicUser(detail.Other),
		Messages:             msgs,
	}})
}

// Create answers 409 with chatId when the conversation already exists.
func (h *ConversationHandler) Create(c echo.Context) error {
	var req createConversationRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	cv, err := h.svc.Create(c.Request().Context(), middleware.Principal(c), req.ItemID, req.SellerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"message": "Chat created successfully",
		"chat":    toConversationResponse(cv),
	})
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req sendMessageRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	msg, err := h.svc.SendMessage(c.Request().Context(), middleware.Principal(c), id, req.Content)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]MessageResponse{"message": toMessageResponse(msg)})
}

func (h *ConversationHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.svc.Delete(c.Request().Context(), middleware.Principal(c), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "ok", Message: "Chat deleted successfully"})
}
