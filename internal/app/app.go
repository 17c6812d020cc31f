package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/marketplace/internal/config"
	"github.com/templui/marketplace/internal/db"
	"github.com/templui/marketplace/internal/middleware"
	"github.com/templui/marketplace/internal/repository"
	"github.com/templui/marketplace/internal/service"
	"github.com/templui/marketplace/internal/storage"
)

type App struct {
	Cfg         *config.Config
	DB          *sqlx.DB
	Attachments storage.AttachmentStore
	AuthService *service.AuthService
	ItemService *service.ItemService
	BuyLimiter  *middleware.RateLimiter
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Storage
	attachments, err := storage.New(ctx, cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return NewWithDeps(cfg, database, attachments), nil
}

// NewWithDeps wires the services around an open database and attachment store.
func NewWithDeps(cfg *config.Config, database *sqlx.DB, attachments storage.AttachmentStore) *App {
	// Repositories
	itemRepository := repository.NewItemRepository(database, attachments)

	// Services
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	itemService := service.NewItemService(itemRepository, attachments)

	return &App{
		Cfg:         cfg,
		DB:          database,
		Attachments: attachments,
		AuthService: authService,
		ItemService: itemService,
		BuyLimiter:  middleware.NewRateLimiter(cfg.RateLimitBuy, cfg.RateLimitWindow),
	}
}

func (a *App) Close() error {
	if a.BuyLimiter != nil {
		a.BuyLimiter.Stop()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
