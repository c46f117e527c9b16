package http

import (
	"log/slog"
	"net/http"

	"github.com/Strob0t/sitecms/internal/domain/user"
	"github.com/Strob0t/sitecms/internal/middleware"
)

// SignInAnonymously handles POST /api/v1/auth/anonymous
func (h *Handlers) SignInAnonymously(w http.ResponseWriter, _ *http.Request) {
	resp, err := h.Auth.SignInAnonymously()
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SignInWithToken handles POST /api/v1/auth/token
func (h *Handlers) SignInWithToken(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.SignInRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	resp, err := h.Auth.SignInWithToken(req)
	if err != nil {
		slog.Debug("token sign-in failed", "error", err)
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Me handles GET /api/v1/auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, id)
}
