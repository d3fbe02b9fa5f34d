package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/promptcompliance/internal/api/handlers"
	"github.com/nikhilbhutani/promptcompliance/internal/api/middleware"
	"github.com/nikhilbhutani/promptcompliance/internal/auth"
	"github.com/nikhilbhutani/promptcompliance/internal/config"
)

// Services are the components behind the HTTP routes. Queue may be nil.
type Services struct {
	Evaluations handlers.EvaluationService
	Prompts     handlers.PromptService
	Versions    handlers.VersionLookup
	Queue       handlers.ReevaluationQueue
	Analyses    handlers.AnalysisLookup
	Chat        handlers.ChatService
	Documents   handlers.DocumentIngester
	Extractor   handlers.GuidelineExtractor
	Health      map[string]handlers.Pinger
}

type Router struct {
	mux     *chi.Mux
	cfg     *config.Config
	svc     Services
	limiter *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, svc Services) *Router {
	return &Router{
		mux:     chi.NewRouter(),
		cfg:     cfg,
		svc:     svc,
		limiter: middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
}

// Limiter exposes the rate limiter so the caller can run its cleanup loop.
func (rt *Router) Limiter() *middleware.RateLimiter {
	return rt.limiter
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))
	r.Use(middleware.Metrics)

	health := handlers.NewHealthHandler(rt.svc.Health)
	r.Get("/", health.Root)
	r.Get("/health", health.Health)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rt.limiter.Limit)
		if rt.cfg.Auth.JWTSecret != "" {
			r.Use(auth.NewJWTMiddleware(rt.cfg.Auth.JWTSecret).Authenticate)
		}

		evalH := handlers.NewEvaluationHandler(rt.svc.Evaluations)
		r.Route("/evaluation", func(r chi.Router) {
			r.Post("/run", evalH.Run)
			r.Get("/recent", evalH.Recent)
		})

		promptH := handlers.NewPromptHandler(rt.svc.Prompts, rt.svc.Versions, rt.svc.Queue)
		r.Route("/prompts", func(r chi.Router) {
			r.Get("/history", promptH.History)
			r.Post("/improve", promptH.Improve)
			r.Post("/versions/{id}/reevaluate", promptH.Reevaluate)
		})

		complianceH := handlers.NewComplianceHandler(rt.svc.Analyses)
		r.Get("/compliance/{id}", complianceH.Get)

		chatH := handlers.NewChatHandler(rt.svc.Chat, rt.svc.Documents, rt.svc.Extractor)
		r.Route("/chat", func(r chi.Router) {
			r.Post("/message", chatH.Message)
			r.Post("/upload-document", chatH.UploadDocument)
			r.Post("/extract-guidelines", chatH.ExtractGuidelines)
		})
	})

	return r
}
