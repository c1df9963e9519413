package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Lixing-Zhang/storefront/internal/auth"
	"github.com/Lixing-Zhang/storefront/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes collects everything the storefront router serves
type Routes struct {
	Health         *HealthHandler
	Products       *ProductHandler
	Orders         *OrderHandler
	Static         *StaticHandler
	Authorizer     auth.Authorizer
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

// NewRouter wires middleware, the public API, the admin API behind Basic auth
// and the static/front-end fallback
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(rt.Logger))
	r.Use(chimiddleware.Recoverer)
	if rt.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(rt.RequestTimeout))
	}

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Register health check endpoint
	r.Get("/health", rt.Health.ServeHTTP)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Public catalog and ordering
		r.Get("/products", rt.Products.ListProducts)
		r.Get("/product/{productId}", rt.Products.GetProduct)
		r.Post("/orders", rt.Orders.CreateOrder)

		// Catalog management
		r.Group(func(r chi.Router) {
			r.Use(middleware.BasicAuth(rt.Authorizer, rt.Logger))

			r.Post("/products", rt.Products.CreateProduct)
			r.Put("/products/{productId}", rt.Products.UpdateProduct)
			r.Delete("/products/{productId}", rt.Products.DeleteProduct)

			r.Get("/admin/products", rt.Products.ListAllProducts)
			r.Get("/admin/orders", rt.Orders.ListOrders)
		})
	})

	r.Get("/static/uploads/{filename}", rt.Static.Upload)

	// Everything else is the front-end bundle
	r.NotFound(rt.Static.Frontend)

	return r
}
