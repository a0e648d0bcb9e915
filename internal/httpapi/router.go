package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/think-in-universe/nearai-cloud-server/internal/middleware"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

const pingMessage = "NEAR AI Cloud Server"

// Router builds the HTTP handler with every route and the global middleware
// chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recovery(s.isDev))
	r.Use(middleware.Metrics(s.metrics))

	r.Get("/", s.handlePing)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// The OpenAI-compatible routes answer with and without the /v1 prefix.
	r.Group(s.openAIRoutes)
	r.Route("/v1", s.openAIRoutes)

	r.Route("/user", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Session)
			r.Post("/register", s.handle(s.registerUser))
			r.Get("/info", s.handle(s.getUser))
		})
		r.Group(func(r chi.Router) {
			r.Use(s.auth.ServiceAccount)
			r.Post("/manage", s.handle(s.manageUser))
			r.Get("/list", s.handle(s.listUsers))
		})
	})

	r.Route("/key", func(r chi.Router) {
		r.With(s.auth.Admin).Post("/service-account/generate", s.handle(s.generateServiceAccountKey))

		r.Group(func(r chi.Router) {
			r.Use(s.auth.User)
			r.Post("/generate", s.handle(s.generateKey))
			r.Post("/update", s.handle(s.updateKey))
			r.Post("/delete", s.handle(s.deleteKey))
			r.Get("/info", s.handle(s.getKey))
			r.Get("/list", s.handle(s.listKeys))
			r.Get("/usage", s.handle(s.getSpendLogs))
		})
	})

	r.Route("/model", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.auth.ServiceAccount)
			r.Post("/new", s.handle(s.createModel))
			r.Post("/update", s.handle(s.updateModel))
			r.Post("/delete", s.handle(s.deleteModel))
		})
		r.Group(func(r chi.Router) {
			r.Use(s.auth.User)
			r.Get("/details", s.handle(s.getModel))
			r.Get("/list", s.handle(s.listModels))
		})
	})

	r.Route("/credential", func(r chi.Router) {
		r.Use(s.auth.ServiceAccount)
		r.Post("/new", s.handle(s.createCredential))
		r.Post("/update", s.handle(s.updateCredential))
		r.Get("/list", s.handle(s.listCredentials))
	})

	r.Route("/stats", func(r chi.Router) {
		r.Use(s.auth.ServiceAccount)
		r.Get("/user/daily/activity", s.handle(s.getUserDailyActivity))
		r.Get("/tag/daily/activity", s.handle(s.getTagDailyActivity))
	})

	if s.deadLetters != nil {
		r.Route("/signature-queue/dead-letters", func(r chi.Router) {
			r.Use(s.auth.ServiceAccount)
			r.Get("/", s.handle(s.listDeadLetters))
			r.Post("/retry", s.handle(s.retryDeadLetter))
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, utils.NotFound("", nil), s.isDev)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, utils.NewHTTPError(http.StatusMethodNotAllowed, "", nil), s.isDev)
	})

	return r
}

func (s *Server) openAIRoutes(r chi.Router) {
	r.Use(s.auth.Key)
	r.Post("/chat/completions", s.handleChatCompletions)
	r.Get("/models", s.handle(s.listOpenAIModels))
	r.Get("/attestation/report", s.handle(s.attestationReport))
	r.Get("/signature/{chat_id}", s.handle(s.signature))
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(pingMessage))
}
