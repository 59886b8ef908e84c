package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/campusolx/backend/internal/logger"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/repository"
	"github.com/campusolx/backend/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 50
	maxNoteLength    = 500
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// ImageUpload is one file of a multipart listing upload.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type CreateItemInput struct {
	Title       string          `json:"title" validate:"required,min=3,max=100"`
	Description string          `json:"description" validate:"max=1000"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Category    string          `json:"category" validate:"required,oneof=Books Electronics Furniture Clothing Sports Other"`
}

type UpdateItemInput struct {
	Title       *string          `json:"title" validate:"omitempty,min=3,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=1000"`
	Price       *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	Category    *string          `json:"category" validate:"omitempty,oneof=Books Electronics Furniture Clothing Sports Other"`
}

type ListItemsInput struct {
	Category string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     int
	Limit    int
}

type ItemPage struct {
	Items []model.Item
	Total int64
	Page  int
	Limit int
}

type ItemService interface {
	Create(ctx context.Context, seller Principal, in CreateItemInput, images []ImageUpload) (*model.Item, error)
	Get(ctx context.Context, id uint64) (*model.Item, error)
	List(ctx context.Context, in ListItemsInput) (*ItemPage, error)
	ListBySeller(ctx context.Context, sellerID string, approvedOnly bool) ([]model.Item, error)
	// Sellers returns the sellers of items keyed by user id. Sellers that no
	// longer exist are absent from the map.
	Sellers(ctx context.Context, items ...model.Item) (map[string]model.User, error)
	Update(ctx context.Context, actor Principal, id uint64, in UpdateItemInput) (*model.Item, error)
	Delete(ctx context.Context, actor Principal, id uint64) error
	MarkSold(ctx context.Context, actor Principal, id uint64) (*model.Item, error)
	Approve(ctx context.Context, actor Principal, id uint64, note string) (*model.Item, error)
	Reject(ctx context.Context, actor Principal, id uint64, reason string) (*model.Item, error)
}

type ItemServiceConfig struct {
	MaxImages   int
	MaxFileSize int64
}

type itemService struct {
	repo     repository.ItemRepository
	users    repository.UserRepository
	store    storage.ObjectStore
	notifier Notifier
	cfg      ItemServiceConfig
	now      func() time.Time
}

func NewItemService(repo repository.ItemRepository, users repository.UserRepository, store storage.ObjectStore, notifier Notifier, cfg ItemServiceConfig) ItemService {
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 5
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 << 20
	}
	return &itemService{repo: repo, users: users, store: store, notifier: notifier, cfg: cfg, now: time.Now}
}

func (s *itemService) Create(ctx context.Context, seller Principal, in CreateItemInput, images []ImageUpload) (*model.Item, error) {
	if seller.Anonymous() {
		return nil, ErrMissingToken
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := s.checkImages(images); err != nil {
		return nil, err
	}

	item := &model.Item{
		SellerID:    seller.UserID,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price.Round(2),
		Category:    in.Category,
		Status:      model.ItemStatusPending,
	}
	for _, img := range images {
		url, err := s.upload(ctx, seller.UserID, img)
		if err != nil {
			logger.FromContext(ctx).Warn("image upload failed, skipping",
				zap.String("filename", img.Filename), zap.Error(err))
			continue
		}
		item.Images = append(item.Images, model.ItemImage{Position: len(item.Images), ImageURL: url})
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *itemService) checkImages(images []ImageUpload) error {
	if len(images) > s.cfg.MaxImages {
		return Validation("too many images",
			FieldError{Field: "images", Message: fmt.Sprintf("At most %d images are allowed", s.cfg.MaxImages)})
	}
	for _, img := range images {
		if !allowedImageTypes[strings.ToLower(img.ContentType)] {
			return Validation("unsupported image type",
				FieldError{Field: "images", Message: "Only JPEG, PNG and WebP images are allowed"})
		}
		if img.Size > s.cfg.MaxFileSize {
			return Validation("file too large",
				FieldError{Field: "images", Message: fmt.Sprintf("Each image must be at most %d bytes", s.cfg.MaxFileSize)})
		}
	}
	return nil
}

func (s *itemService) upload(ctx context.Context, sellerID string, img ImageUpload) (string, error) {
	rc, err := img.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	key := fmt.Sprintf("items/%s/%d_%s", sellerID, s.now().UnixMilli(), objectName(img.Filename))
	return s.store.Put(ctx, key, rc, img.Size, img.ContentType)
}

func objectName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}

func (s *itemService) Get(ctx context.Context, id uint64) (*model.Item, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("item not found")
		}
		return nil, err
	}
	return item, nil
}

// List returns approved items only. page and limit are clamped rather than rejected.
func (s *itemService) List(ctx context.Context, in ListItemsInput) (*ItemPage, error) {
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return nil, Validation("invalid price range",
			FieldError{Field: "minPrice", Message: "Must not exceed maxPrice"})
	}
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	switch {
	case limit < 1:
		limit = defaultPageLimit
	case limit > maxPageLimit:
		limit = maxPageLimit
	}
	items, total, err := s.repo.List(ctx, repository.ItemFilter{
		Status:   model.ItemStatusApproved,
		Category: strings.TrimSpace(in.Category),
		Search:   in.Search,
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	return &ItemPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *itemService) ListBySeller(ctx context.Context, sellerID string, approvedOnly bool) ([]model.Item, error) {
	var status model.ItemStatus
	if approvedOnly {
		status = model.ItemStatusApproved
	}
	return s.repo.ListBySeller(ctx, sellerID, status)
}

func (s *itemService) Sellers(ctx context.Context, items ...model.Item) (map[string]model.User, error) {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.SellerID]; ok {
			continue
		}
		seen[it.SellerID] = struct{}{}
		ids = append(ids, it.SellerID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load sellers: %w", err)
	}
	return users, nil
}

func canEdit(actor Principal, item *model.Item) bool {
	return !actor.Anonymous() && (item.SellerID == actor.UserID || Authorize(actor, CapabilityModerator))
}

// Update changes content fields only. It is allowed in any status.
func (s *itemService) Update(ctx context.Context, actor Principal, id uint64, in UpdateItemInput) (*model.Item, error) {
	fields := map[string]any{}
	if in.Title != nil {
		v := strings.TrimSpace(*in.Title)
		in.Title, fields["title"] = &v, v
	}
	if in.Description != nil {
		v := strings.TrimSpace(*in.Description)
		in.Description, fields["description"] = &v, v
	}
	if in.Category != nil {
		v := strings.TrimSpace(*in.Category)
		in.Category, fields["category"] = &v, v
	}
	if in.Price != nil {
		fields["price"] = in.Price.Round(2)
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEdit(actor, item) {
		return nil, Forbidden("not authorized to update this item")
	}
	if len(fields) == 0 {
		return item, nil
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *itemService) Delete(ctx context.Context, actor Principal, id uint64) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(actor, item) {
		return Forbidden("not authorized to delete this item")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFound("item not found")
		}
		return err
	}
	return nil
}

func (s *itemService) MarkSold(ctx context.Context, actor Principal, id uint64) (*model.Item, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Anonymous() || item.SellerID != actor.UserID {
		return nil, Forbidden("only the seller can mark an item as sold")
	}
	return s.transition(ctx, item, model.ItemStatusSold)
}

func (s *itemService) Approve(ctx context.Context, actor Principal, id uint64, note string) (*model.Item, error) {
	note = strings.TrimSpace(note)
	if err := checkNote(note); err != nil {
		return nil, err
	}
	item, err := s.moderate(ctx, actor, id, model.ItemStatusApproved)
	if err != nil {
		return nil, err
	}
	if note == "" {
		note = fmt.Sprintf("Your item %q is now live.", item.Title)
	}
	s.notifier.Notify(ctx, item.SellerID, model.NotificationItemApproved, "Item approved", note, uint64Ptr(item.ID))
	return item, nil
}

func (s *itemService) Reject(ctx context.Context, actor Principal, id uint64, reason string) (*model.Item, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, Validation("rejection reason required",
			FieldError{Field: "message", Message: "This field is required"})
	}
	if err := checkNote(reason); err != nil {
		return nil, err
	}
	item, err := s.moderate(ctx, actor, id, model.ItemStatusRejected)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, item.SellerID, model.NotificationItemRejected, "Item rejected", reason, uint64Ptr(item.ID))
	return item, nil
}

func checkNote(note string) error {
	if len([]rune(note)) > maxNoteLength {
		return Validation("message too long",
			FieldError{Field: "message", Message: fmt.Sprintf("Must be at most %d characters", maxNoteLength)})
	}
	return nil
}

func (s *itemService) moderate(ctx context.Context, actor Principal, id uint64, to model.ItemStatus) (*model.Item, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Authorize(actor, CapabilityModerator) {
		return nil, Forbidden("moderator access required")
	}
	return s.transition(ctx, item, to)
}

// transition applies a conditional status update. A concurrent change that
// lands first makes this one fail with InvalidTransition.
func (s *itemService) transition(ctx context.Context, item *model.Item, to model.ItemStatus) (*model.Item, error) {
	if !item.Status.CanTransitionTo(to) {
		return nil, InvalidTransition(fmt.Sprintf("cannot move item from %s to %s", item.Status, to))
	}
	ok, err := s.repo.TransitionStatus(ctx, item.ID, item.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		cur, err := s.Get(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		return nil, InvalidTransition(fmt.Sprintf("cannot move item from %s to %s", cur.Status, to))
	}
	logger.FromContext(ctx).Info("item status changed",
		zap.Uint64("item_id", item.ID), zap.String("from", string(item.Status)), zap.String("to", string(to)))
	return s.Get(ctx, item.ID)
}
