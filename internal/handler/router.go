package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/auralabs/aura/backend/internal/handler/chat"
	safetyHandler "github.com/auralabs/aura/backend/internal/handler/safety"
	middlewarePkg "github.com/auralabs/aura/backend/internal/middleware"
	"github.com/auralabs/aura/backend/internal/service/orchestrator"
	"github.com/auralabs/aura/backend/internal/service/session"
	"github.com/auralabs/aura/backend/internal/store"
	"github.com/auralabs/aura/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. pipeline may be nil when no
// chat model is configured.
func NewRouter(pipeline *orchestrator.Pipeline, sessions *session.Manager, st store.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chatH := chatHandler.New(pipeline, sessions, st.Conversations(), st.Messages())
	safetyH := safetyHandler.New(st.Alerts())

	r.Route("/api", func(api chi.Router) {
		chatH.RegisterRoutes(api)
		safetyH.RegisterRoutes(api)
	})

	return r
}
