package handler

import (
	"net/http"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/model"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/payload"
	"github.com/patcharinz/healthmate-api/shared/middleware"
)

func (h *Handler) SendEmailVerification(w http.ResponseWriter, r *http.Request) {
	if err := h.authManager.SendEmailVerification(r.Context()); err != nil {
		h.respondOperationError(w, err, "failed to send email verification")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

func (h *Handler) SendPhoneVerification(w http.ResponseWriter, r *http.Request) {
	var req payload.SendPhoneVerificationRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authManager.SendPhoneVerification(r.Context(), req.Phone); err != nil {
		h.respondOperationError(w, err, "failed to send phone verification")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

func (h *Handler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req payload.VerifyPhoneRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authManager.VerifyPhone(r.Context(), req.Phone, req.Code); err != nil {
		h.respondOperationError(w, err, "failed to verify phone")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

// IssueVerificationToken stores an app-level one-time code for the
// authenticated user and a channel. When the channel is email and an
// address is given, a generated code is also delivered by mail;
// otherwise the provided token is stored as-is.
func (h *Handler) IssueVerificationToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.Subject == "" {
		h.respondError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req payload.IssueVerificationTokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Channel == model.ChannelEmail && req.Email != "" {
		if err := h.verification.IssueEmailToken(r.Context(), claims.Subject, req.Email); err != nil {
			h.respondOperationError(w, err, "failed to issue verification token")
			return
		}
		h.respond(w, http.StatusCreated, nil)
		return
	}

	if req.Token == "" {
		h.respondError(w, http.StatusBadRequest, "token is required when no email address is given")
		return
	}

	if err := h.verification.StoreVerificationToken(r.Context(), claims.Subject, req.Channel, req.Token); err != nil {
		h.respondOperationError(w, err, "failed to store verification token")
		return
	}

	h.respond(w, http.StatusCreated, nil)
}

func (h *Handler) VerifyVerificationToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.Subject == "" {
		h.respondError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req payload.VerifyVerificationTokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.verification.VerifyToken(r.Context(), claims.Subject, req.Channel, req.Token); err != nil {
		h.respondOperationError(w, err, "failed to verify token")
		return
	}

	h.respond(w, http.StatusOK, nil)
}
