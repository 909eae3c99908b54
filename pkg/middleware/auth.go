package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Asdisarson/ss/pkg/httputil"
)

type subjectKey struct{}

// SubjectFromContext returns the token subject stored by BearerAuth, or "".
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// BearerAuth returns middleware that requires an HMAC-signed JWT in the
// Authorization header. Tokens must carry an expiry. The "sub" claim is
// stored in the request context. An empty secret disables the check.
func BearerAuth(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	if secret == "" {
		return func(next http.Handler) http.Handler { return next }
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	)
	key := func(*jwt.Token) (any, error) { return []byte(secret), nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || raw == "" {
				httputil.WriteMessage(w, r, http.StatusUnauthorized, "missing bearer token")
				return
			}

			var claims jwt.RegisteredClaims
			if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, key); err != nil {
				logger.WarnContext(r.Context(), "rejected bearer token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				httputil.WriteMessage(w, r, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
