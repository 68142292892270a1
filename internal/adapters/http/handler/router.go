package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter はユーザー API のルーティングを構築します。
func NewRouter(users *UserHandler, auth *Authenticator, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(logger))
	r.Use(Recover(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", users.Register)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Delete("/me", users.DeleteMe)
			r.Patch("/me", users.UpdateMe)
		})
		r.Get("/{userId}", users.GetByID)
	})

	return r
}
