package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/campusolx/backend/internal/config"
	"github.com/campusolx/backend/internal/handler"
	"github.com/campusolx/backend/internal/logger"
	appmw "github.com/campusolx/backend/internal/middleware"
	"github.com/campusolx/backend/internal/realtime"
	"github.com/campusolx/backend/internal/repository"
	"github.com/campusolx/backend/internal/service"
	"github.com/campusolx/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP server is assembled from. Google,
// Screener and Fixtures are optional and their routes are off when nil.
// Store and Broker fall back to a disabled store and an in-process broker.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Logger   *zap.Logger
	Store    storage.ObjectStore
	Broker   realtime.Broker
	Tokens   service.TokenIssuer
	Google   service.GoogleVerifier
	Screener service.Screener
	Fixtures service.PrincipalResolver
}

type Server struct {
	e *echo.Echo
}

func New(d Deps) *Server {
	cfg := d.Config
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	store := d.Store
	if store == nil {
		store = storage.DisabledStore{}
	}
	broker := d.Broker
	if broker == nil {
		broker = realtime.NewMemoryBroker()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = !cfg.IsProduction()
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	allowOrigin := originMatcher(cfg.CORSAllowedOrigins)
	e.Use(middleware.RequestID())
	e.Use(logger.EchoMiddleware(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc:  func(origin string) (bool, error) { return allowOrigin(origin), nil },
	}))
	e.Use(middleware.BodyLimit(bodyLimit(cfg.Upload)))

	userRepo := repository.NewUserRepository(d.DB)
	itemRepo := repository.NewItemRepository(d.DB)
	convRepo := repository.NewConversationRepository(d.DB)
	notifRepo := repository.NewNotificationRepository(d.DB)

	opts := []service.IdentityOption{
		service.WithAdminEmail(cfg.Auth.AdminEmail),
		service.WithAllowedDomains(cfg.Auth.AllowedEmailDomains),
	}
	if d.Fixtures != nil {
		opts = append(opts, service.WithFixtureResolver(d.Fixtures))
	}
	if d.Google != nil {
		opts = append(opts, service.WithGoogleVerifier(d.Google))
	}
	identitySvc := service.NewIdentityService(userRepo, d.Tokens, opts...)
	notifSvc := service.NewNotificationService(notifRepo)
	itemSvc := service.NewItemService(itemRepo, userRepo, store, notifSvc, service.ItemServiceConfig{
		MaxImages:   cfg.Upload.MaxImages,
		MaxFileSize: cfg.Upload.MaxFileSize,
	})
	convSvc := service.NewConversationService(convRepo, itemRepo, userRepo, broker)
	modSvc := service.NewModerationService(itemRepo, userRepo, d.Screener)

	authMw := appmw.NewAuthMiddleware(identitySvc)
	authHandler := handler.NewAuthHandler(identitySvc)
	userHandler := handler.NewUserHandler(identitySvc, itemSvc)
	itemHandler := handler.NewItemHandler(itemSvc)
	convHandler := handler.NewConversationHandler(convSvc)
	notifHandler := handler.NewNotificationHandler(notifSvc)
	adminHandler := handler.NewAdminHandler(modSvc, itemSvc)
	rtHandler := handler.NewRealtimeHandler(convSvc, broker, func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowOrigin(origin) || sameHost(origin, r.Host)
	})

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	if identitySvc.GoogleEnabled() {
		authGroup.POST("/google", authHandler.Google)
	}
	authGroup.GET("/verify", authHandler.Verify, authMw.RequireAuth)
	authGroup.POST("/logout", authHandler.Logout)

	users := api.Group("/users")
	users.GET("/profile", userHandler.Profile, authMw.RequireAuth)
	users.PUT("/profile", userHandler.UpdateProfile, authMw.RequireAuth)
	users.DELETE("/account", userHandler.DeleteAccount, authMw.RequireAuth)
	users.GET("/:id", userHandler.GetPublic)
	users.GET("/:id/items", userHandler.Items)

	items := api.Group("/items")
	items.GET("", itemHandler.List, authMw.OptionalAuth)
	items.GET("/mine", itemHandler.ListMine, authMw.RequireAuth)
	items.GET("/:id", itemHandler.Get, authMw.OptionalAuth)
	items.POST("", itemHandler.Create, authMw.RequireAuth)
	items.PUT("/:id", itemHandler.Update, authMw.RequireAuth)
	items.DELETE("/:id", itemHandler.Delete, authMw.RequireAuth)
	items.POST("/:id/mark-sold", itemHandler.MarkSold, authMw.RequireAuth)

	chats := api.Group("/chats", authMw.RequireAuth)
	chats.GET("", convHandler.List)
	chats.GET("/:id", convHandler.Get)
	chats.POST("", convHandler.Create)
	chats.POST("/:id/messages", convHandler.SendMessage)
	chats.DELETE("/:id", convHandler.Delete)

	notifications := api.Group("/notifications", authMw.RequireAuth)
	notifications.GET("", notifHandler.List)
	notifications.POST("/read", notifHandler.MarkAllRead)

	admin := api.Group("/admin", authMw.RequireAuth, appmw.RequireModerator)
	admin.GET("/stats", adminHandler.Stats)
	admin.GET("/items", adminHandler.Items)
	admin.GET("/items/pending", adminHandler.PendingItems)
	admin.POST("/items/:id/approve", adminHandler.Approve)
	admin.POST("/items/:id/reject", adminHandler.Reject)
	admin.DELETE("/items/:id", adminHandler.DeleteItem)
	if modSvc.ScreeningEnabled() {
		admin.GET("/items/:id/screening", adminHandler.Screening)
	}
	admin.GET("/users", adminHandler.Users)
	admin.POST("/users/:id/verify", adminHandler.VerifyUser)
	admin.POST("/users/:id/make-admin", adminHandler.PromoteUser)

	e.GET("/ws/chats/:id", rtHandler.Chat, authMw.RequireAuthWS)

	return &Server{e: e}
}

// Handler exposes the router for in-process use.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// originMatcher accepts local development origins and the configured list.
func originMatcher(allowed []string) func(string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return func(origin string) bool {
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return false
		}
		switch u.Hostname() {
		case "localhost", "127.0.0.1":
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}

func sameHost(origin, host string) bool {
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, host)
}

// bodyLimit leaves room for a full set of images plus form fields.
func bodyLimit(cfg config.UploadConfig) string {
	total := cfg.MaxFileSize*int64(max(cfg.MaxImages, 1)) + 1<<20
	return fmt.Sprintf("%dK", total/1024+1)
}
