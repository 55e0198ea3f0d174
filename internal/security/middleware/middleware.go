package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
	"github.com/aryan0dhankhar/projecthub/internal/observability/metrics"
	"github.com/aryan0dhankhar/projecthub/internal/security"
	"github.com/aryan0dhankhar/projecthub/internal/security/audit"
	"github.com/aryan0dhankhar/projecthub/internal/security/auth"
	"github.com/aryan0dhankhar/projecthub/internal/security/ratelimit"
)

type MemberContextKey struct{}

// MemberResolver loads the member named by a token subject
type MemberResolver interface {
	ResolveMember(ctx context.Context, id string) (*domain.Member, error)
}

// Authenticate verifies the bearer token and stores the resolved member in the request context.
// Missing, invalid or orphaned tokens are rejected with 401 before the handler runs.
func Authenticate(tm *auth.TokenManager, resolver MemberResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := auth.ExtractToken(r.Header.Get("Authorization"))
			if err != nil {
				metrics.ObserveAuthFailure("missing_token")
				writeJSONError(w, http.StatusUnauthorized, "No token, authorization denied")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				metrics.ObserveAuthFailure("invalid_token")
				log.Debug("token rejected", slog.String("error", err.Error()))
				writeJSONError(w, http.StatusUnauthorized, "Token is not valid")
				return
			}

			member, err := resolver.ResolveMember(r.Context(), claims.MemberID())
			switch {
			case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidIdentifier):
				metrics.ObserveAuthFailure("identity_not_found")
				log.Info("token subject no longer exists", slog.String("member_id", claims.MemberID()))
				writeJSONError(w, http.StatusUnauthorized, "Member not found")
				return
			case err != nil:
				log.Error("failed to resolve token subject",
					slog.String("member_id", claims.MemberID()),
					slog.String("error", err.Error()),
				)
				writeJSONError(w, http.StatusInternalServerError, "Server error")
				return
			}

			ctx := context.WithValue(r.Context(), MemberContextKey{}, member)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated members that do not hold role.
func RequireRole(role domain.Role, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member := MemberFromContext(r.Context())
			if !security.HasRole(member, role) {
				memberID := ""
				if member != nil {
					memberID = member.ID
				}
				auditLog.LogDenied(r.Context(), memberID, "requires role "+string(role))
				writeJSONError(w, http.StatusForbidden, "Access denied: Admins only.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit throttles requests per client address, as resolved by ClientIP.
func RateLimit(limiter *ratelimit.Limiter, trusted *TrustedProxies, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, trusted)
			if !limiter.Allow(ip) {
				metrics.ObserveAuthFailure("rate_limited")
				log.Warn("rate limit exceeded", slog.String("client_ip", ip), slog.String("path", r.URL.Path))
				writeJSONError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Audit records every mutating request together with the acting member.
// It must sit inside Authenticate on a routed handler so the member and path id are visible.
func Audit(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			memberID := ""
			if m := MemberFromContext(r.Context()); m != nil {
				memberID = m.ID
			}
			status := "succeeded"
			if ww.status >= http.StatusBadRequest {
				status = "failed"
			}
			auditLog.LogAction(r.Context(), audit.Event{
				MemberID:   memberID,
				Action:     actionFor(r.Method),
				Resource:   resourceFor(r.URL.Path),
				ResourceID: r.PathValue("id"),
				Status:     status,
				StatusCode: ww.status,
			})
		})
	}
}

// RequestID propagates X-Request-ID, minting one when the client sent none.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(audit.WithRequestID(r.Context(), id)))
	})
}

// MemberFromContext returns the authenticated member, or nil on public routes.
func MemberFromContext(ctx context.Context) *domain.Member {
	if m, ok := ctx.Value(MemberContextKey{}).(*domain.Member); ok {
		return m
	}
	return nil
}

// ContextWithMember is used by tests and internal callers that authenticate out of band.
func ContextWithMember(ctx context.Context, m *domain.Member) context.Context {
	return context.WithValue(ctx, MemberContextKey{}, m)
}

// TrustedProxies holds the peers whose X-Forwarded-For header is believed.
// A nil *TrustedProxies trusts nobody.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies accepts single addresses and CIDR ranges.
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	tp := &TrustedProxies{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			tp.prefixes = append(tp.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		tp.prefixes = append(tp.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return tp, nil
}

func (tp *TrustedProxies) contains(addr netip.Addr) bool {
	if tp == nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range tp.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address per-client limits are keyed on. It is the TCP peer unless
// the peer is a trusted proxy; then X-Forwarded-For is read right to left and the first
// hop that is not a trusted proxy wins. Client-supplied hops left of it are ignored.
func ClientIP(r *http.Request, trusted *TrustedProxies) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !trusted.contains(peer) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	client := host
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			break
		}
		client = addr.Unmap().String()
		if !trusted.contains(addr) {
			break
		}
	}
	return client
}

func actionFor(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return strings.ToLower(method)
}

func resourceFor(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/projects"):
		return "project"
	case strings.HasPrefix(path, "/api/members"):
		return "member"
	case strings.HasPrefix(path, "/api/auth"):
		return "session"
	}
	return "api"
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestLogger writes one log line per request once the response is done.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			log.Info("request completed",
				slog.String("request_id", audit.RequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
