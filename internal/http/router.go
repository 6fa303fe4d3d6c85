package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/EdrumVIOT/Back-End/internal/auth"
)

// NewRouter assembles the REST surface. Cart routes accept both guest and
// authenticated callers; order and admin routes require a token.
func NewRouter(
	verifier *auth.Verifier,
	cart *CartHandler,
	checkout *CheckoutHandler,
	orders *OrdersHandler,
	products *ProductHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusOK, "ok")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(OptionalAuth(verifier))
				r.Get("/", cart.GetCart)
				r.Delete("/", cart.ClearCart)
				r.Post("/items", cart.AddItem)
				r.Delete("/items/{product_id}", cart.RemoveItem)
			})
			r.Group(func(r chi.Router) {
				r.Use(RequireAuth(verifier))
				r.Post("/assign", cart.AssignCart)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/guest/request-otp", checkout.RequestGuestOtp)
			r.Post("/guest/verify", checkout.VerifyGuestOrder)

			r.Group(func(r chi.Router) {
				r.Use(RequireAuth(verifier))
				r.Post("/", checkout.MakeOrder)
				r.Get("/", orders.ListMyOrders)
				r.Patch("/{order_id}/status", orders.UpdateStatus)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.List)
			r.Get("/{product_id}", products.Get)

			r.Group(func(r chi.Router) {
				r.Use(RequireAuth(verifier))
				r.Post("/", products.Create)
				r.Put("/{product_id}", products.Update)
				r.Delete("/{product_id}", products.Delete)
			})
		})
	})

	return otelhttp.NewHandler(r, "store-api")
}
