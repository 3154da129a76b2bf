package invoices

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/stats", h.Stats)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/status", h.UpdateStatus)
			r.Post("/items", h.AddItem)
			r.Delete("/items/{itemID}", h.RemoveItem)
			r.Get("/payments", h.ListPayments)
			r.Post("/payments", h.ApplyPayment)
			r.Delete("/payments/{paymentID}", h.RemovePayment)
			r.Get("/export", h.Export)
		})
	})
}
