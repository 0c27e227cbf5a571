// Package marketplace собирает HTTP‑приложение маркетплейса: хранилище, кэш,
// сервисы токенов и пользователей, фоновую сверку подписок и маршруты.
package marketplace

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/auth/confirmemail"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/auth/refresh"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/auth/resetpassword"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/cache/clear"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/catalogue/software"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/catalogue/subscriptiontype"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/health"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/subscription/add"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/user/bysequence"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/user/lockout"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/user/me"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/user/roles"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/user/subscriptions"
	"github.com/magabrotheeeer/software-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	authservice "github.com/magabrotheeeer/software-marketplace/internal/services/auth"
	userservice "github.com/magabrotheeeer/software-marketplace/internal/services/user"
)

// Deps — всё, что нужно маршрутам.
type Deps struct {
	Log     *slog.Logger
	Auth    *authservice.Service
	Users   *userservice.Service
	Clock   clock.Clock
	Limiter *rate.Limiter
	Checks  map[string]health.Checker
	Metrics http.Handler
}

// RegisterRoutes регистрирует все маршруты приложения.
//
// Защищённые маршруты проходят цепочку: проверка токена, затем блокировка
// по свежей записи пользователя, затем роль из claims токена.
func RegisterRoutes(r chi.Router, d Deps) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	if d.Metrics == nil {
		d.Metrics = promhttp.Handler()
	}

	gate := func(req middlewarectx.Requirement) func(r chi.Router) {
		return func(r chi.Router) {
			r.Use(middlewarectx.AuthMiddleware(d.Auth, d.Log))
			r.Use(middlewarectx.LockoutMiddleware(d.Users, d.Clock, d.Log))
			r.Use(middlewarectx.SubscriptionStatusMiddleware(req, d.Log))
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(d.Limiter, d.Log))
			r.Post("/user/register", register.New(d.Log, d.Auth).ServeHTTP)
			r.Post("/user/login", login.New(d.Log, d.Auth).ServeHTTP)
			r.Post("/user/refresh", refresh.New(d.Log, d.Auth).ServeHTTP)
			r.Post("/user/confirm-email", confirmemail.New(d.Log, d.Auth).ServeHTTP)
			r.Post("/user/reset-password", resetpassword.New(d.Log, d.Auth).ServeHTTP)
		})

		r.Group(func(r chi.Router) {
			gate(middlewarectx.RequireAuthenticated)(r)
			r.Get("/user/me", me.New(d.Log, d.Users, d.Clock).ServeHTTP)
			r.Get("/user/{sequenceID}", bysequence.New(d.Log, d.Users, d.Clock).ServeHTTP)
		})

		r.Group(func(r chi.Router) {
			gate(middlewarectx.RequireSubscriber)(r)
			r.Get("/user/subscriptions", subscriptions.New(d.Log, d.Users, d.Clock).ServeHTTP)
		})

		r.Group(func(r chi.Router) {
			gate(middlewarectx.RequireAdmin)(r)
			r.Post("/user/{userID}/lockout", lockout.New(d.Log, d.Users).ServeHTTP)
			r.Put("/user/{userID}/roles", roles.New(d.Log, d.Users).ServeHTTP)
			r.Post("/subscription", add.New(d.Log, d.Users, d.Clock).ServeHTTP)
			r.Post("/cache/clear", clear.New(d.Log, d.Users).ServeHTTP)
			r.Post("/software", software.New(d.Log, d.Users).ServeHTTP)
			r.Post("/software/{softwareID}/subscription-types", subscriptiontype.New(d.Log, d.Users).ServeHTTP)
		})
	})

	r.Get("/health", health.New(d.Log, d.Checks).ServeHTTP)
	r.Handle("/metrics", d.Metrics)
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
