package handlers

import (
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/appointly/libs/auth"
	"github.com/md-rashed-zaman/appointly/libs/httpx"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps err to a status code. Internal errors are logged with their
// cause and answered with an opaque body.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		logger.ErrorContext(r.Context(), "request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	httpx.WriteJSON(w, kind.HTTPStatus(), errorResponse{Error: apperr.PublicMessage(err), Code: kind.String()})
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: apperr.Validation.String()})
}

// principalFrom derives the caller from the verified token in the context.
func principalFrom(r *http.Request) (model.Principal, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || id.UserID == "" {
		return model.Principal{}, false
	}
	persisted, err := model.ParseRole(id.Role)
	if err != nil {
		return model.Principal{}, false
	}
	role := model.Persisted(persisted)
	if id.ActingRole != "" {
		acting, err := model.ParseRole(id.ActingRole)
		if err != nil {
			return model.Principal{}, false
		}
		if role, err = role.SwitchTo(acting); err != nil {
			return model.Principal{}, false
		}
	}
	return model.Principal{UserID: id.UserID, Role: role}, true
}

// withPrincipal rejects requests whose token does not describe a valid principal.
func withPrincipal(next func(http.ResponseWriter, *http.Request, model.Principal)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r)
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid principal")
			return
		}
		next(w, r, p)
	}
}
