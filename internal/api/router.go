package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// GET /assets/{name} stays public so the editor can show uploaded images.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/assets/{name}", h.ServeAsset)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Card state.
		r.Get("/card", h.GetCard)
		r.Put("/card", h.UpdateCard)
		r.Get("/card/runs", h.CardRuns)
		r.Get("/card/preview.png", h.Preview)

		// Markup.
		r.Post("/markup/parse", h.ParseMarkup)

		// Assets.
		r.Get("/assets", h.ListAssets)
		r.Post("/assets", h.UploadAsset)
		r.Delete("/assets/{name}", h.DeleteAsset)

		// Export.
		r.Post("/export/still", h.ExportStill)
		r.Post("/export/animated", h.ExportAnimated)

		// SSE endpoint (protected by same auth middleware).
		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
