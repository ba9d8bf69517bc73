package handlers

import (
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/appointly/libs/auth"
	"github.com/md-rashed-zaman/appointly/libs/httpx"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/apperr"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

// SessionHandler re-issues tokens with a temporarily lowered role. The
// persisted role travels unchanged in the token next to the acting one.
type SessionHandler struct {
	signer *auth.Signer
	logger *slog.Logger
}

func NewSessionHandler(signer *auth.Signer, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{signer: signer, logger: logger}
}

func (h *SessionHandler) Register(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	mux.Handle("POST /api/v1/session/role", authn(withPrincipal(h.SwitchRole)))
}

type switchRoleRequest struct {
	Role model.Role `json:"role"`
}

type switchRoleResponse struct {
	Token         string     `json:"token"`
	Role          model.Role `json:"role"`
	PersistedRole model.Role `json:"persisted_role"`
}

func (h *SessionHandler) SwitchRole(w http.ResponseWriter, r *http.Request, p model.Principal) {
	var req switchRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	next, err := p.Role.SwitchTo(req.Role)
	if err != nil {
		writeError(w, r, h.logger, apperr.Wrap(apperr.PermissionDenied, err, "cannot switch from %s to %s", p.Role.Persisted(), req.Role))
		return
	}

	id := auth.Identity{UserID: p.UserID, Role: next.Persisted().String()}
	if next.IsDowngraded() {
		id.ActingRole = next.Current().String()
	}
	token, err := h.signer.Issue(id)
	if err != nil {
		writeError(w, r, h.logger, apperr.Wrap(apperr.Internal, err, "issue token"))
		return
	}

	h.logger.InfoContext(r.Context(), "role switched", "user_id", p.UserID, "persisted_role", next.Persisted().String(), "role", next.Current().String())
	httpx.WriteJSON(w, http.StatusOK, switchRoleResponse{Token: token, Role: next.Current(), PersistedRole: next.Persisted()})
}
