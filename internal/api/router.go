package api

import (
	"bookstore-service/internal/config"
	"bookstore-service/internal/metrics"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"net/http"
	"time"
)

type Handlers struct {
	Auth   *AuthHandler
	Books  *BookHandler
	Users  *UserHandler
	Orders *OrderHandler
}

func rateLimiter(cfg config.ServerConfig) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     cfg.RateBurst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "rate limit identifier missing"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		},
	})
}

// NewRouter wires every route under /api/v1 plus /health and /metrics.
func NewRouter(cfg *config.Config, h Handlers, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = HTTPErrorHandler

	// Middleware
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(rateLimiter(cfg.Server))

	requireAuth := JWTMiddleware(cfg.Auth.JWTSecret)

	// Routes
	v1 := e.Group("/api/v1")

	v1.POST("/auth/register", h.Auth.Register)
	v1.POST("/auth/login", h.Auth.Login)

	v1.GET("/books", h.Books.ListBooks)
	v1.GET("/books/warmup-cache", h.Books.WarmCache, requireAuth)
	v1.GET("/books/:id", h.Books.GetBook)
	v1.POST("/books", h.Books.CreateBook, requireAuth)
	v1.PATCH("/books/:id", h.Books.UpdateBook, requireAuth)
	v1.DELETE("/books/:id", h.Books.DeleteBook, requireAuth)

	v1.GET("/user", h.Users.ListUsers)
	v1.POST("/user", h.Users.CreateUser)
	v1.GET("/user/:id", h.Users.GetUser)
	v1.PATCH("/user/:id", h.Users.UpdateUser)
	v1.DELETE("/user/:id", h.Users.DeleteUser)

	orders := v1.Group("/orders", requireAuth)
	orders.GET("", h.Orders.ListOrders)
	orders.POST("", h.Orders.PlaceOrder)
	orders.GET("/:order_id", h.Orders.GetOrder)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"service": "bookstore-service",
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	if cfg.Server.StaticDir != "" {
		e.Static("/", cfg.Server.StaticDir)
	}

	return e
}
