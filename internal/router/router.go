package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/config"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/handler"
	"github.com/cafe-pos/api/internal/inventory"
	mw "github.com/cafe-pos/api/internal/middleware"
	"github.com/cafe-pos/api/internal/observability"
	"github.com/cafe-pos/api/internal/service"
)

// New creates a Chi router with all application routes wired up, wrapped
// in OpenTelemetry HTTP instrumentation. Applies authentication and
// role-based middleware as needed.
func New(cfg *config.Config, pool service.Pool, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	queries := database.New(pool)

	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, logger)
	paymentService := service.NewPaymentService(pool, func(db database.DBTX) service.PaymentStore {
		return database.New(db)
	}, cfg.HouseOperatorID, cfg.PriceTolerance, logger)
	ticketService := service.NewTicketService(pool, func(db database.DBTX) service.TicketStore {
		return database.New(db)
	}, inventory.NewLedger(logger), logger)
	inventoryService := service.NewInventoryService(pool, func(db database.DBTX) service.InventoryStore {
		return database.New(db)
	}, logger)
	reportService := service.NewSalesReportService(pool, func(db database.DBTX) service.SalesReportStore {
		return database.New(db)
	}, logger)

	orderHandler := handler.NewOrderHandler(orderService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)
	supplyHandler := handler.NewSupplyHandler(inventoryService, logger)
	productHandler := handler.NewProductHandler(queries, logger)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"` + observability.ServiceVersion + `"}`)) //nolint:errcheck
	})

	handler.NewAuthHandler(queries, cfg.JWTSecret, logger).RegisterRoutes(r)

	// Storefront menu and pre-order intake (no token, throttled per client IP)
	limiter := mw.NewIPRateLimiter(cfg.PublicRateLimitRPS, cfg.PublicRateBurst)
	r.Route("/public", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Route("/orders", orderHandler.RegisterPublicRoutes)
		r.Route("/products", productHandler.RegisterPublicRoutes)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Reads for any staff, per-route role guards on writes
		r.Route("/tickets", handler.NewTicketHandler(ticketService, logger).RegisterRoutes)
		r.Route("/products", func(r chi.Router) {
			productHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin))
				handler.NewRecipeHandler(inventoryService, logger).RegisterRoutes(r)
			})
		})

		// Register operations
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleCashier, enum.UserRoleAdmin))

			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r)
				paymentHandler.RegisterOrderRoutes(r)
			})
			r.Route("/sales", paymentHandler.RegisterSaleRoutes)
		})

		// Staff accounts, ledger maintenance and reports
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))

			r.Route("/supplies", supplyHandler.RegisterRoutes)
			r.Route("/movements", supplyHandler.RegisterMovementRoutes)
			r.Route("/users", handler.NewUserHandler(queries, logger).RegisterRoutes)
			r.Route("/reports", handler.NewReportsHandler(inventoryService, reportService, logger).RegisterRoutes)
		})
	})

	logger.Info("router initialized")
	return otelhttp.NewHandler(r, observability.ServiceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
