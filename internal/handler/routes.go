package handler

import (
	"github.com/go-chi/chi/v5"
)

// Routes assembles the /api surface.
func Routes(sessions *SessionHandler, transfers *TransferHandler) chi.Router {
	r := chi.NewRouter()

	r.Post("/session", sessions.Create)
	r.Post("/resolve", sessions.Resolve)
	r.Post("/upload", transfers.Upload)
	r.Get("/download/{sessionID}", transfers.Download)

	return r
}
