package http

import (
	"net/http"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/pkg/httputil"
	"github.com/utafrali/servicehub/pkg/logger"
	"github.com/utafrali/servicehub/pkg/middleware"
)

// ownerFromRequest resolves the authenticated caller set by middleware.Auth.
// It writes a 401 and returns false when there is none.
func ownerFromRequest(w http.ResponseWriter, r *http.Request) (domain.Owner, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if ok {
		owner, err := domain.ParseOwner(id.Subject, id.Kind)
		if err == nil {
			return owner, true
		}
	}
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{Error: &httputil.ErrorResponse{
		Code:      "UNAUTHORIZED",
		Message:   "user not authenticated",
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}})
	return domain.Owner{}, false
}
