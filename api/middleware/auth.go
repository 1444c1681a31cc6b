package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/soundpost/soundpost-backend/api/responses"
	pkgAuth "github.com/soundpost/soundpost-backend/pkg/auth"
	"github.com/soundpost/soundpost-backend/pkg/config"
	pkgerrors "github.com/soundpost/soundpost-backend/pkg/errors"
	"github.com/soundpost/soundpost-backend/pkg/logger"
)

// Auth validates a bearer token when one is present and seeds the request
// context with the caller identity. Requests without credentials pass
// through anonymously; posting does not require an account. A token that
// is present but invalid is still rejected.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r)
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
			if claims.UserID == 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user id"))
				return
			}

			ctx := WithUser(r.Context(), claims.UserID, claims.Admin)
			if logg != nil {
				ctx = logg.WithUserID(ctx, strconv.FormatUint(uint64(claims.UserID), 10))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
