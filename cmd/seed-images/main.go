// Command seed-images copies placeholder listing photos into the configured
// object store and points item_images rows at the stored copies.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/campusolx/backend/internal/config"
	"github.com/campusolx/backend/internal/db"
	"github.com/campusolx/backend/internal/logger"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type options struct {
	TimeoutSeconds int  `env:"TIMEOUT_SECONDS" envDefault:"300"`
	Force          bool `env:"FORCE_SEED" envDefault:"false"`
}

const placeholderPrefix = "https://picsum.photos/%"

func main() {
	_ = godotenv.Load()

	var opts options
	if err := env.Parse(&opts); err != nil {
		log.Fatalf("failed to parse env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	zl := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(opts.TimeoutSeconds)*time.Second)
	defer cancel()

	if err := run(ctx, cfg, opts, zl); err != nil {
		zl.Fatal("seed-images failed", zap.Error(err))
	}
	zl.Info("seed-images completed")
}

func run(ctx context.Context, cfg *config.Config, opts options, zl *zap.Logger) error {
	gdb, err := db.Connect(cfg, zl)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if _, disabled := store.(storage.DisabledStore); disabled {
		return fmt.Errorf("STORAGE_DRIVER must be gcs or minio")
	}

	var images []model.ItemImage
	q := gdb.WithContext(ctx).Model(&model.ItemImage{})
	if !opts.Force {
		q = q.Where("image_url LIKE ?", placeholderPrefix)
	}
	if err := q.Find(&images).Error; err != nil {
		return err
	}
	zl.Info("rehosting images", zap.Int("targets", len(images)), zap.Bool("force", opts.Force))

	var done int
	for _, img := range images {
		l := zl.With(zap.Uint64("item_id", img.ItemID), zap.Uint64("image_id", img.ID))
		if err := rehost(ctx, gdb, store, img); err != nil {
			l.Warn("rehost failed", zap.Error(err))
			continue
		}
		done++
	}
	zl.Info("rehost finished", zap.Int("rehosted", done), zap.Int("failed", len(images)-done))
	return nil
}

func rehost(ctx context.Context, gdb *gorm.DB, store storage.ObjectStore, img model.ItemImage) error {
	data, contentType, err := fetch(ctx, img.ImageURL)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("items/sample/%d_%d.jpg", img.ItemID, img.Position)
	url, err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return gdb.WithContext(ctx).Model(&model.ItemImage{}).
		Where("id = ?", img.ID).
		Update("image_url", url).Error
}

func fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("placeholder status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return data, ct, nil
}
