package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/edurewards/edurewards-backend/api/responses"
	pkgAuth "github.com/edurewards/edurewards-backend/pkg/auth"
	"github.com/edurewards/edurewards-backend/pkg/config"
	pkgerrors "github.com/edurewards/edurewards-backend/pkg/errors"
	"github.com/edurewards/edurewards-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
			ctx = context.WithValue(ctx, ctxRole, string(claims.Role))
			if claims.SchoolID != "" {
				ctx = context.WithValue(ctx, ctxSchoolID, claims.SchoolID)
			}

			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID)
				ctx = logg.WithActorRole(ctx, string(claims.Role))
				if claims.SchoolID != "" {
					ctx = logg.WithField(ctx, "school_id", claims.SchoolID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
