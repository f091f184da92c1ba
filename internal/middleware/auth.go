package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merchantpay/billing-service/internal/auth"
)

// Auth authenticates merchant API requests with a Bearer JWT and places the
// merchant id on the request context.
type Auth struct {
	jwtManager *auth.JWTManager
	logger     *zap.Logger
}

// NewAuth creates auth middleware backed by the given JWT manager
func NewAuth(jwtManager *auth.JWTManager, logger *zap.Logger) *Auth {
	return &Auth{
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// Handler wraps next with JWT authentication
func (a *Auth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			a.unauthorized(w, "missing authorization header")
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			a.unauthorized(w, "authorization header must be a Bearer token")
			return
		}

		claims, err := a.jwtManager.ValidateToken(token)
		if err != nil {
			a.logger.Warn("Rejected invalid token",
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			a.unauthorized(w, "invalid or expired token")
			return
		}

		ctx := auth.WithMerchantID(r.Context(), claims.MerchantID)
		ctx = auth.WithRequestID(ctx, requestID(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

// SecurityHeaders sets standard security headers on every response
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
