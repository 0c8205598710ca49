package handlers

import (
	"github.com/go-chi/chi"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Get("/", h.HomeHandler)
	r.Get("/health", h.HealthHandler)

	r.Post("/scan", h.ScanHandler)
	r.Get("/recent", h.RecentHandler)
	r.Post("/recent/clear", h.ClearRecentHandler)

	r.Get("/tasklists", h.TasklistsHandler)
	r.Post("/tasklists/select", h.SelectTasklistHandler)

	r.Post("/ocr", h.OCRHandler)

	r.Get("/ws", h.FeedHandler)
}
