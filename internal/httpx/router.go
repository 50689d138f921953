package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(AttachRequestMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handler.Health)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", handler.GetCart)
		r.Delete("/", handler.ClearCart)
		r.Post("/items", handler.AddItem)
		r.Patch("/items/{id}", handler.UpdateItemQuantity)
		r.Delete("/items/{id}", handler.RemoveItem)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", handler.BeginCheckout)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.GetCheckout)
			r.Delete("/", handler.AbandonCheckout)
			r.Put("/customer", handler.SetCustomerInfo)
			r.Put("/payment", handler.SelectPayment)
			r.Post("/coupon", handler.ApplyCoupon)
			r.Delete("/coupon", handler.RemoveCoupon)
			r.Post("/next", handler.NextStep)
			r.Post("/back", handler.BackStep)
			r.Post("/confirm", handler.Confirm)
		})
	})

	return r
}
