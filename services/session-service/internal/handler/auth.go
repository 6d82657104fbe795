package handler

import (
	"net/http"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/payload"
	"github.com/patcharinz/healthmate-api/shared/utilities"
)

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req payload.SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.authManager.SignUp(r.Context(), req.Email, req.Password, req.Metadata)
	if err != nil {
		h.respondOperationError(w, err, "failed to sign up")
		return
	}

	h.respond(w, http.StatusCreated, result)
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req payload.SignInRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := utilities.WithDeviceInfo(r.Context(), utilities.DeviceInfoFromRequest(r))

	session, err := h.authManager.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		h.respondOperationError(w, err, "failed to sign in")
		return
	}

	h.respond(w, http.StatusOK, session)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.authManager.SignOut(r.Context()); err != nil {
		h.respondOperationError(w, err, "failed to sign out")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authManager.Logout(r.Context()); err != nil {
		h.respondOperationError(w, err, "failed to log out")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

func (h *Handler) ManualLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.authManager.ManualLogout(r.Context()); err != nil {
		h.respondOperationError(w, err, "failed to log out")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

// redirectRecorder collects the route the logout flow navigated to so it
// can be returned to the mobile client.
type redirectRecorder struct {
	route string
}

func (n *redirectRecorder) NavigateTo(route string) error {
	n.route = route
	return nil
}

func (h *Handler) LogoutAndRedirect(w http.ResponseWriter, r *http.Request) {
	nav := &redirectRecorder{}
	if err := h.authManager.LogoutAndRedirect(r.Context(), nav); err != nil {
		h.respondOperationError(w, err, "failed to log out")
		return
	}

	h.respond(w, http.StatusOK, map[string]string{"redirect_to": nav.route})
}

func (h *Handler) IsLoggedIn(w http.ResponseWriter, r *http.Request) {
	loggedIn, err := h.authManager.IsLoggedIn(r.Context())
	if err != nil {
		h.respondOperationError(w, err, "failed to check login state")
		return
	}

	h.respond(w, http.StatusOK, payload.LoggedInResponse{LoggedIn: loggedIn})
}

func (h *Handler) InitializeAuth(w http.ResponseWriter, r *http.Request) {
	state, err := h.authManager.InitializeAuth(r.Context())
	if err != nil {
		h.respondOperationError(w, err, "failed to initialize auth state")
		return
	}

	h.respond(w, http.StatusOK, state)
}

func (h *Handler) RefreshAuthState(w http.ResponseWriter, r *http.Request) {
	session, err := h.authManager.RefreshAuthState(r.Context())
	if err != nil {
		h.respondOperationError(w, err, "failed to refresh auth state")
		return
	}

	h.respond(w, http.StatusOK, session)
}

func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.authManager.GetCurrentUser(r.Context())
	if err != nil {
		h.respondOperationError(w, err, "failed to fetch current user")
		return
	}

	h.respond(w, http.StatusOK, user)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.authManager.GetSession(r.Context())
	if err != nil {
		h.respondOperationError(w, err, "failed to fetch session")
		return
	}

	h.respond(w, http.StatusOK, session)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req payload.ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authManager.ResetPassword(r.Context(), req.Email); err != nil {
		h.respondOperationError(w, err, "failed to request password reset")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req payload.ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authManager.ChangePassword(r.Context(), req.NewPassword); err != nil {
		h.respondOperationError(w, err, "failed to change password")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req payload.UpdateEmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authManager.UpdateEmail(r.Context(), req.Email); err != nil {
		h.respondOperationError(w, err, "failed to update email")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

func (h *Handler) UpdatePhone(w http.ResponseWriter, r *http.Request) {
	var req payload.UpdatePhoneRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authManager.UpdatePhone(r.Context(), req.Phone); err != nil {
		h.respondOperationError(w, err, "failed to update phone")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

func (h *Handler) SetAutoLogin(w http.ResponseWriter, r *http.Request) {
	var req payload.AutoLoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authManager.SetAutoLogin(r.Context(), req.Enabled); err != nil {
		h.respondOperationError(w, err, "failed to set auto login")
		return
	}

	h.respond(w, http.StatusOK, nil)
}
