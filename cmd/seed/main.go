package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/campusolx/backend/internal/auth"
	"github.com/campusolx/backend/internal/config"
	"github.com/campusolx/backend/internal/db"
	"github.com/campusolx/backend/internal/logger"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/repository"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type seedUser struct {
	Email      string
	Name       string
	University string
	Moderator  bool
}

type seedItem struct {
	Title       string
	Description string
	Price       string
	Category    string
	Status      model.ItemStatus
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	zl := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = zl.Sync() }()

	gdb, err := db.Connect(cfg, zl)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	users := repository.NewUserRepository(gdb)
	items := repository.NewItemRepository(gdb)

	total, err := items.Count(ctx, "")
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	if total > 0 && !strings.EqualFold(os.Getenv("FORCE_SEED"), "true") {
		zl.Info("items already exist; skipping seed (set FORCE_SEED=true to override)", zap.Int64("items", total))
		return nil
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "campusolx-demo"
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	var sellers []string
	for _, su := range seedUsers() {
		id, err := ensureUser(ctx, users, su, hash)
		if err != nil {
			return err
		}
		if !su.Moderator {
			sellers = append(sellers, id)
		}
	}

	for idx, it := range seedItems() {
		item := &model.Item{
			SellerID:    sellers[idx%len(sellers)],
			Title:       it.Title,
			Description: it.Description,
			Price:       decimal.RequireFromString(it.Price),
			Category:    it.Category,
			Status:      it.Status,
			Images: []model.ItemImage{{
				Position: 0,
				ImageURL: picsumURL(it.Category, idx+1),
			}},
		}
		if err := items.Create(ctx, item); err != nil {
			return fmt.Errorf("insert item %q: %w", it.Title, err)
		}
	}

	zl.Info("seed complete", zap.Int("users", len(seedUsers())), zap.Int("items", len(seedItems())))
	return nil
}

func ensureUser(ctx context.Context, repo repository.UserRepository, su seedUser, hash string) (string, error) {
	existing, err := repo.FindByEmail(ctx, su.Email)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("find user %s: %w", su.Email, err)
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        su.Email,
		Name:         su.Name,
		University:   su.University,
		PasswordHash: hash,
		Verified:     true,
		Moderator:    su.Moderator,
	}
	if err := repo.Create(ctx, u); err != nil {
		return "", fmt.Errorf("create user %s: %w", su.Email, err)
	}
	return u.ID, nil
}

func seedUsers() []seedUser {
	return []seedUser{
		{Email: "admin@campusolx.com", Name: "CampusOLX Admin", University: "CampusOLX", Moderator: true},
		{Email: "priya@stanford.edu", Name: "Priya Raman", University: "Stanford University"},
		{Email: "tom@mit.edu", Name: "Tom Becker", University: "Massachusetts Institute of Technology"},
		{Email: "lena@berkeley.edu", Name: "Lena Ortiz", University: "UC Berkeley"},
	}
}

func seedItems() []seedItem {
	return []seedItem{
		{"Calculus: Early Transcendentals", "8th edition, a few highlighted pages.", "35.00", "Books", model.ItemStatusApproved},
		{"Organic Chemistry Model Kit", "Complete set, used for one semester.", "18.50", "Books", model.ItemStatusApproved},
		{"TI-84 Plus Calculator", "Works perfectly, includes cover.", "60.00", "Electronics", model.ItemStatusApproved},
		{"Noise Cancelling Headphones", "Great for the library. Charging cable included.", "120.00", "Electronics", model.ItemStatusApproved},
		{"27in Monitor", "1440p, one HDMI cable.", "150.00", "Electronics", model.ItemStatusPending},
		{"IKEA Desk Lamp", "Warm white bulb included.", "10.00", "Furniture", model.ItemStatusApproved},
		{"Mini Fridge", "Fits under a dorm desk. Pick up only.", "75.00", "Furniture", model.ItemStatusPending},
		{"Ergonomic Desk Chair", "Adjustable height and armrests.", "85.00", "Furniture", model.ItemStatusApproved},
		{"University Hoodie (M)", "Worn twice.", "25.00", "Clothing", model.ItemStatusApproved},
		{"Winter Jacket (L)", "Waterproof shell with liner.", "55.00", "Clothing", model.ItemStatusPending},
		{"Tennis Racket", "Restrung last month.", "40.00", "Sports", model.ItemStatusApproved},
		{"Yoga Mat", "6mm, barely used.", "12.00", "Sports", model.ItemStatusApproved},
		{"Bike Lock", "U-lock with two keys.", "15.00", "Other", model.ItemStatusApproved},
		{"Graduation Gown", "Black, fits 5'8\"-6'0\".", "30.00", "Other", model.ItemStatusPending},
	}
}

func picsumURL(category string, idx int) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s-%d/600/600", strings.ToLower(category), idx)
}
