package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/gateway"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/store"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/usecase"
	sharedauth "github.com/patcharinz/healthmate-api/shared/auth"
	"github.com/patcharinz/healthmate-api/shared/middleware"
	"github.com/patcharinz/healthmate-api/shared/validation"
)

// Handler serves the session subsystem's HTTP surface. Every response is
// a {data, error} pair; errors are never thrown across the boundary.
type Handler struct {
	authManager  usecase.AuthManager
	tracker      usecase.SessionTracker
	verification usecase.VerificationService
	validate     *validator.Validate
	trans        ut.Translator
	jwtAuth      sharedauth.JWTAuthenticator
	jwtSecret    string
	logger       *zerolog.Logger
}

// New creates a Handler.
func New(
	authManager usecase.AuthManager,
	tracker usecase.SessionTracker,
	verification usecase.VerificationService,
	jwtAuth sharedauth.JWTAuthenticator,
	jwtSecret string,
	logger *zerolog.Logger,
) (*Handler, error) {
	validate, trans, err := validation.New()
	if err != nil {
		return nil, err
	}

	return &Handler{
		authManager:  authManager,
		tracker:      tracker,
		verification: verification,
		validate:     validate,
		trans:        trans,
		jwtAuth:      jwtAuth,
		jwtSecret:    jwtSecret,
		logger:       logger,
	}, nil
}

// RegisterRoutes mounts the subsystem's routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.SignUp)
			r.Post("/signin", h.SignIn)
			r.Post("/signout", h.SignOut)
			r.Post("/logout", h.Logout)
			r.Post("/logout/manual", h.ManualLogout)
			r.Post("/logout/redirect", h.LogoutAndRedirect)
			r.Get("/status", h.IsLoggedIn)
			r.Post("/init", h.InitializeAuth)
			r.Post("/refresh", h.RefreshAuthState)
			r.Get("/me", h.GetCurrentUser)
			r.Get("/session", h.GetSession)
			r.Post("/password/reset", h.ResetPassword)
			r.Post("/auto-login", h.SetAutoLogin)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(h.jwtAuth, h.jwtSecret))
				r.Post("/password/change", h.ChangePassword)
				r.Put("/email", h.UpdateEmail)
				r.Put("/phone", h.UpdatePhone)
			})
		})

		r.Route("/verification", func(r chi.Router) {
			r.Post("/email/send", h.SendEmailVerification)
			r.Post("/phone/send", h.SendPhoneVerification)
			r.Post("/phone/verify", h.VerifyPhone)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(h.jwtAuth, h.jwtSecret))
				r.Post("/token", h.IssueVerificationToken)
				r.Post("/token/verify", h.VerifyVerificationToken)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.jwtAuth, h.jwtSecret))
			r.Get("/sessions", h.GetUserSessions)
		})
	})
}

type errorBody struct {
	Message string `json:"message"`
}

type envelope struct {
	Data  any        `json:"data"`
	Error *errorBody `json:"error"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: &errorBody{Message: message}}); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode error response")
	}
}

// decode parses and validates a JSON request body.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, validation.Translate(err, h.trans))
		return false
	}

	return true
}

// respondOperationError maps subsystem errors onto HTTP statuses. Backend
// rejections surface the backend's literal message.
func (h *Handler) respondOperationError(w http.ResponseWriter, err error, logMsg string) {
	h.logger.Error().Err(err).Msg(logMsg)

	switch {
	case errors.Is(err, usecase.ErrTokenNotFound):
		h.respondError(w, http.StatusNotFound, "verification token not found")
	case errors.Is(err, usecase.ErrTokenExpired):
		h.respondError(w, http.StatusUnauthorized, "verification token has expired")
	case errors.Is(err, usecase.ErrTokenMismatch):
		h.respondError(w, http.StatusBadRequest, "verification token does not match")
	case errors.Is(err, usecase.ErrNoActiveSession):
		h.respondError(w, http.StatusConflict, "no active session")
	default:
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			status := gwErr.Status
			if status < http.StatusBadRequest {
				status = http.StatusBadGateway
			}
			h.respondError(w, status, gwErr.Message)
			return
		}

		var stErr *store.Error
		if errors.As(err, &stErr) {
			h.respondError(w, http.StatusInternalServerError, "local storage failure")
			return
		}

		h.respondError(w, http.StatusInternalServerError, "something went wrong")
	}
}
