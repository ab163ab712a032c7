package journals

import "github.com/go-chi/chi/v5"

// MountRoutes registers read routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entries", h.List)
	r.Get("/entries/{id}", h.Get)
}

// MountWriteRoutes registers posting routes.
func (h *Handler) MountWriteRoutes(r chi.Router) {
	r.Post("/entries", h.Create)
	r.Post("/entries/{id}/reverse", h.Reverse)
}
