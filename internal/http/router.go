package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stellr/server/internal/auth"
	"github.com/stellr/server/internal/http/handlers"
	"github.com/stellr/server/internal/metrics"
	"github.com/stellr/server/internal/middleware"
	"github.com/stellr/server/internal/repo"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	authHandler *handlers.AuthHandler,
	courseHandler *handlers.CourseHandler,
	jwtService *auth.JWTService,
	identityRepo repo.IdentityRepo,
	gatherer prometheus.Gatherer,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)
	r.Method("GET", "/metrics", metrics.Handler(gatherer))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/send-otp", authHandler.HandleSendOtp)
		r.Post("/verify-otp", authHandler.HandleVerifyOtp)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// Protected routes (require valid session token)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(jwtService, identityRepo))
		r.Get("/me", authHandler.HandleMe)
		r.Patch("/me", authHandler.HandleUpdateMe)
		r.Post("/courses/{id}/enroll", courseHandler.HandleEnroll)
		r.Post("/progress/lessons/{id}/complete", courseHandler.HandleCompleteLesson)
		r.Get("/progress/courses/{id}", courseHandler.HandleCourseProgress)
		r.Get("/progress", courseHandler.HandleUserProgress)
	})

	return r
}
