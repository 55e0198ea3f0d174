package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
	"github.com/aryan0dhankhar/projecthub/internal/security/audit"
	"github.com/aryan0dhankhar/projecthub/internal/security/auth"
	"github.com/aryan0dhankhar/projecthub/internal/security/middleware"
	"github.com/aryan0dhankhar/projecthub/internal/security/ratelimit"
)

// RouterDeps carries everything the API routes need
type RouterDeps struct {
	Members      *MemberHandler
	Projects     *ProjectHandler
	Auth         *AuthHandler
	Health       *HealthHandler
	Tokens       *auth.TokenManager
	Resolver     middleware.MemberResolver
	LoginLimiter *ratelimit.Limiter
	Proxies      *middleware.TrustedProxies
	Audit        *audit.Logger
	Metrics      http.Handler
	Logger       *slog.Logger
}

// NewRouter registers every route on a fresh ServeMux.
func NewRouter(d RouterDeps) *http.ServeMux {
	mux := http.NewServeMux()

	authenticated := func(h http.HandlerFunc) http.Handler {
		return middleware.Authenticate(d.Tokens, d.Resolver, d.Logger)(middleware.Audit(d.Audit)(h))
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return middleware.Authenticate(d.Tokens, d.Resolver, d.Logger)(
			middleware.RequireRole(domain.RoleAdmin, d.Audit)(middleware.Audit(d.Audit)(h)),
		)
	}
	public := func(h http.HandlerFunc) http.Handler {
		return middleware.Audit(d.Audit)(h)
	}

	mux.Handle("POST /api/members", public(d.Members.Create))
	mux.Handle("GET /api/members", public(d.Members.List))
	mux.Handle("GET /api/members/{id}", public(d.Members.Get))
	mux.Handle("PUT /api/members/{id}", public(d.Members.Update))
	mux.Handle("DELETE /api/members/{id}", public(d.Members.Delete))

	login := http.Handler(http.HandlerFunc(d.Auth.Login))
	if d.LoginLimiter != nil {
		login = middleware.RateLimit(d.LoginLimiter, d.Proxies, d.Logger)(login)
	}
	mux.Handle("POST /api/auth/login", login)

	mux.Handle("POST /api/projects", adminOnly(d.Projects.Create))
	mux.Handle("GET /api/projects", authenticated(d.Projects.List))
	mux.Handle("GET /api/projects/{id}", authenticated(d.Projects.Get))
	mux.Handle("PUT /api/projects/{id}", adminOnly(d.Projects.Update))
	mux.Handle("DELETE /api/projects/{id}", adminOnly(d.Projects.Delete))

	if d.Health != nil {
		mux.HandleFunc("GET /healthz", d.Health.Health)
		mux.HandleFunc("GET /readyz", d.Health.Ready)
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	return mux
}
