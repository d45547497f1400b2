package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/treechat-dev/treechat/internal/middleware"
	"github.com/treechat-dev/treechat/internal/middleware/metrics"
	rl "github.com/treechat-dev/treechat/internal/middleware/ratelimiter"
	"github.com/treechat-dev/treechat/internal/setup"
)

// New builds the chi router with all routes and per-endpoint rate limits.
// Limiters attached with Use apply to every endpoint of that group combined.
func New(deps *setup.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:8081"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	h := deps.Handler
	authMw := deps.AuthMiddleware

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Confirmation links arrive from mail clients without any session; the
	// IP limiter is the brute-force guard for code guessing.
	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit(rl.NewUserRateLimiter(1, 5, 1*time.Hour), mw.GetIP))
		r.Get("/api/utility/task/confirm/{code}/{email}/{action}", h.Confirm)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Mail-sending endpoints: one begin per minute per mailbox,
			// plus a per-IP backstop.
			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimit(rl.OnceInMinute, mw.GetEmailFromBody))
				r.Use(mw.RateLimit(rl.NewUserRateLimiter(1.0/10, 2, 1*time.Hour), mw.GetIP))
				r.Post("/register", h.Register)
				r.Post("/restore_password", h.RestorePassword)
			})

			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimit(rl.OnceInSecond, mw.GetIP))
				r.Post("/login", h.Login)
			})

			r.Post("/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(authMw.NeedAuth())
				r.Post("/change_password", h.ChangePassword)
				r.Post("/change_email", h.ChangeEmail)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authMw.NeedAuth())
			r.Post("/messages", h.SendMessage)
			r.Post("/messages/schedule", h.ScheduleMessage)
			r.Delete("/messages/scheduled/{id}", h.CancelScheduledMessage)
		})
	})

	return r
}
