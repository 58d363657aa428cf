package httpapi

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yourflock/ingestd/internal/logger"
)

type adminCtxKey struct{}

// AdminClaims identifies the caller RequireAdmin let through.
type AdminClaims struct {
	Role string
}

// requireAdmin accepts either the raw auth_password as a bearer token
// (shared-secret mode, the default) or, when jwtSecret is set, an
// HMAC-signed JWT with a role claim of admin/owner. Ported from the
// teacher's services/owl_api/middleware/admin.go::RequireAdmin.
func requireAdmin(authPassword, jwtSecret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			forbidden(w)
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if jwtSecret != "" {
			claims := jwt.MapClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !parsed.Valid {
				forbidden(w)
				return
			}
			role, _ := claims["role"].(string)
			if role != "owner" && role != "admin" {
				forbidden(w)
				return
			}
			ctx := context.WithValue(r.Context(), adminCtxKey{}, AdminClaims{Role: role})
			next(w, r.WithContext(ctx))
			return
		}

		if authPassword == "" || subtle.ConstantTimeCompare([]byte(token), []byte(authPassword)) != 1 {
			forbidden(w)
			return
		}
		ctx := context.WithValue(r.Context(), adminCtxKey{}, AdminClaims{Role: "admin"})
		next(w, r.WithContext(ctx))
	}
}

func forbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
}

// securityHeaders sets the baseline header set applied repo-wide.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type requestIDCtxKey struct{}

// requestTracking assigns a request ID (from X-Request-Id if present) and
// threads a request-scoped logger through the context, the way the
// teacher's logger.WithContext/logger.FromContext pair is used elsewhere.
func requestTracking(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)

		ctx := context.WithValue(r.Context(), requestIDCtxKey{}, reqID)
		ctx = logger.WithContext(ctx, base.With("request_id", reqID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
