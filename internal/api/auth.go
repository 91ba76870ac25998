package api

import (
	"net/http"

	"github.com/ccs-amsterdam/annotinder-server/internal/auth"
	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
)

// login authenticates a user by email/password against the locally
// stored bcrypt hash and returns a bearer token, mirroring the session
// cookie it also sets for the admin dashboard.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.Repo.FindUserByEmail(r.Context(), body.Email)
	if err != nil {
		writeError(w, apierror.AuthorizationDenied("invalid email or password"))
		return
	}
	if user.PasswordHash == nil || !auth.CheckPassword(*user.PasswordHash, body.Password) {
		writeError(w, apierror.AuthorizationDenied("invalid email or password"))
		return
	}

	token, err := h.Issuer.Mint(user.ID, user.Name, user.IsAdmin, user.RestrictedJob)
	if err != nil {
		writeError(w, apierror.Internal(err))
		return
	}
	if user.IsAdmin {
		if err := h.Sessions.SetUser(w, r, user.ID); err != nil {
			writeError(w, apierror.Internal(err))
			return
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Token string `json:"token"`
	}{token})
}

// logout clears the admin dashboard's session cookie.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Clear(w, r); err != nil {
		writeError(w, apierror.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
