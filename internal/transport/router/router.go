package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/Rahul2570089/mp4-2-mp3/internal/transport/handler"
)

func NewRouter(h *handler.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.Login)
	r.Post("/upload", h.Upload)
	r.Get("/download", h.Download)

	return r
}
