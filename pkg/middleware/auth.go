package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/servicehub/pkg/httputil"
	"github.com/utafrali/servicehub/pkg/logger"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the caller resolved from a bearer token: an account id and the
// kind of account it belongs to.
type Identity struct {
	Subject string
	Kind    string
}

// String returns "kind:subject", the form used in logs and event keys.
func (i Identity) String() string {
	return i.Kind + ":" + i.Subject
}

// TokenValidator resolves a raw bearer token to an Identity.
type TokenValidator func(token string) (*Identity, error)

// Auth rejects requests without a valid bearer token with 401 and stores the
// resolved Identity in the context. The request-scoped logger is enriched
// with the caller.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeStatus(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				writeStatus(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
				return
			}

			id, err := validate(strings.TrimSpace(token))
			if err != nil || id == nil {
				writeStatus(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			ctx := WithIdentity(r.Context(), *id)
			ctx = logger.WithUserID(ctx, id.String())
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", id.String())))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller stored by Auth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	httputil.WriteJSON(w, status, httputil.Response{Error: &httputil.ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}})
}
