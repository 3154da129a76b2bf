package quotations

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quotations", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/next-number", h.NextNumber)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/status", h.UpdateStatus)
			r.Post("/items", h.AddItem)
			r.Delete("/items/{itemID}", h.RemoveItem)
			r.Post("/convert", h.Convert)
		})
	})
}
