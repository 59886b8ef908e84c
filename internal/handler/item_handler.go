package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/campusolx/backend/internal/middleware"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ItemHandler struct {
	svc service.ItemService
}

func NewItemHandler(svc service.ItemService) *ItemHandler {
	return &ItemHandler{svc: svc}
}

type ItemResponse struct {
	ID          uint64      `json:"id"`
	SellerID    string      `json:"sellerId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Category    string      `json:"category"`
	Status      string      `json:"status"`
	Images      []string    `json:"images"`
	CreatedAt   string      `json:"createdAt"`
	UpdatedAt   string      `json:"updatedAt"`

	Seller *PublicUserResponse `json:"seller,omitempty"`
}

type ItemListResponse struct {
	Items []ItemResponse `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// createItemRequest binds from multipart form fields or JSON.
type createItemRequest struct {
	Title       string      `json:"title" form:"title"`
	Description string      `json:"description" form:"description"`
	Price       json.Number `json:"price" form:"price"`
	Category    string      `json:"category" form:"category"`
}

type updateItemRequest struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Price       *json.Number `json:"price"`
	Category    *string      `json:"category"`
}

func toItemResponse(item *model.Item) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		SellerID:    item.SellerID,
		Title:       item.Title,
		Description: item.Description,
		Price:       json.Number(item.Price.StringFixed(2)),
		Category:    item.Category,
		Status:      string(item.Status),
		Images:      item.ImageURLs(),
		CreatedAt:   formatTime(item.CreatedAt),
		UpdatedAt:   formatTime(item.UpdatedAt),
	}
}

// withSellers renders items together with each seller's public profile.
func withSellers(ctx context.Context, svc service.ItemService, items ...model.Item) ([]ItemResponse, error) {
	sellers, err := svc.Sellers(ctx, items...)
	if err != nil {
		return nil, err
	}
	out := make([]ItemResponse, 0, len(items))
	for i := range items {
		r := toItemResponse(&items[i])
		if u, ok := sellers[items[i].SellerID]; ok {
			r.Seller = toPublicUser(&u)
		}
		out = append(out, r)
	}
	return out, nil
}

func withSeller(ctx context.Context, svc service.ItemService, item *model.Item) (ItemResponse, error) {
	out, err := withSellers(ctx, svc, *item)
	if err != nil {
		return ItemResponse{}, err
	}
	return out[0], nil
}

func parsePrice(field, raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, service.Validation("invalid "+field, service.FieldError{Field: field, Message: "Must be a number"})
	}
	return &d, nil
}

func (h *ItemHandler) Create(c echo.Context) error {
	var req createItemRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	price, err := parsePrice("price", req.Price.String())
	if err != nil {
		return writeError(c, err)
	}
	if price == nil {
		return writeError(c, service.Validation("validation failed",
			service.FieldError{Field: "price", Message: "This field is required"}))
	}

	var uploads []service.ImageUpload
	if form, err := c.MultipartForm(); err == nil {
		for _, fh := range form.File["images"] {
			uploads = append(uploads, service.ImageUpload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(echo.HeaderContentType),
				Size:        fh.Size,
				Open:        func() (io.ReadCloser, error) { return fh.Open() },
			})
		}
	}

	item, err := h.svc.Create(c.Request().Context(), middleware.Principal(c), service.CreateItemInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       *price,
		Category:    req.Category,
	}, uploads)
	if err != nil {
		return writeError(c, err)
	}
	resp, err := withSeller(c.Request().Context(), h.svc, item)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"message": "Item created successfully and is pending approval",
		"item":    resp,
	})
}

func (h *ItemHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	item, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	resp, err := withSeller(c.Request().Context(), h.svc, item)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]ItemResponse{"item": resp})
}

func (h *ItemHandler) List(c echo.Context) error {
	minPrice, err := parsePrice("minPrice", c.QueryParam("minPrice"))
	if err != nil {
		return writeError(c, err)
	}
	maxPrice, err := parsePrice("maxPrice", c.QueryParam("maxPrice"))
	if err != nil {
		return writeError(c, err)
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	res, err := h.svc.List(c.Request().Context(), service.ListItemsInput{
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	items, err := withSellers(c.Request().Context(), h.svc, res.Items...)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ItemListResponse{
		Items: items,
		Total: res.Total,
		Page:  res.Page,
		Limit: res.Limit,
	})
}

func (h *ItemHandler) ListMine(c echo.Context) error {
	items, err := h.svc.ListBySeller(c.Request().Context(), middleware.Principal(c).UserID, false)
	if err != nil {
		return writeError(c, err)
	}
	resp, err := withSellers(c.Request().Context(), h.svc, items...)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]ItemResponse{"items": resp})
}

func (h *ItemHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req updateItemRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	in := service.UpdateItemInput{Title: req.Title, Description: req.Description, Category: req.Category}
	if req.Price != nil {
		p, err := parsePrice("price", req.Price.String())
		if err != nil {
			return writeError(c, err)
		}
		in.Price = p
	}
	item, err := h.svc.Update(c.Request().Context(), middleware.Principal(c), id, in)
	if err != nil {
		return writeError(c, err)
	}
	resp, err := withSeller(c.Request().Context(), h.svc, item)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Item updated successfully",
		"item":    resp,
	})
}

func (h *ItemHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.svc.Delete(c.Request().Context(), middleware.Principal(c), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "ok", Message: "Item deleted successfully"})
}

func (h *ItemHandler) MarkSold(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	item, err := h.svc.MarkSold(c.Request().Context(), middleware.Principal(c), id)
	if err != nil {
		return writeError(c, err)
	}
	resp, err := withSeller(c.Request().Context(), h.svc, item)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Item marked as sold",
		"item":    resp,
	})
}
