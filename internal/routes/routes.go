package routes

import (
	"net/http"

	"github.com/templui/marketplace/internal/app"
	"github.com/templui/marketplace/internal/handler"
	"github.com/templui/marketplace/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	items := handler.NewItemHandler(app.ItemService)
	health := handler.NewHealthHandler(app.DB)

	buyRateLimit := middleware.RateLimit(app.BuyLimiter)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /items", items.ListVisible)
	mux.HandleFunc("GET /items/{id}", items.Get)

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	mux.HandleFunc("GET /items/mine", middleware.RequireAuth(items.ListMine))
	mux.HandleFunc("POST /items", middleware.RequireAuth(items.Create))
	mux.HandleFunc("PATCH /items/{id}", middleware.RequireAuth(items.Update))
	mux.HandleFunc("DELETE /items/{id}", middleware.RequireAuth(items.Delete))
	mux.HandleFunc("POST /items/{id}/attachment", middleware.RequireAuth(items.Attach))
	mux.HandleFunc("POST /items/{id}/buy", buyRateLimit(middleware.RequireAuth(items.Buy)))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/", handler.NotFound)

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.RequestLogging, // outside auth so rejected tokens are logged too
		middleware.CORS(app.Cfg.CORSAllowOrigin), // answers preflight before auth
		middleware.SecurityHeaders,
		middleware.AuthMiddleware(app.AuthService),
	)

	return handler
}
