package auth

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Middleware returns an HTTP middleware that verifies bearer tokens and adds
// the Tenant to the request context. Requests to /health pass through.
func (v *Verifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := zerolog.Ctx(ctx)

			tokenString := extractBearerToken(r)
			if tokenString == "" {
				logger.Warn().Msg("Missing Authorization header")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tenant, err := v.Verify(tokenString)
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to verify JWT")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("org_id", tenant.OrgID.String()).Str("user_id", tenant.UserID.String())
			})

			next.ServeHTTP(w, r.WithContext(WithTenant(ctx, tenant)))
		})
	}
}
