// Package httpapi exposes the authentication service over HTTP:
//
//	POST /auth/send-code   {email}        -> {success, message, expires_in}
//	POST /auth/verify      {email, code}  -> {access_token, token_type}
//	POST /auth/register    {email, code}  -> {access_token, token_type} (auto-creates the user)
//	GET  /auth/me          Bearer token   -> {email}
//
// The routing layer is thin plumbing: every lifecycle rule (rate limiting,
// attempt limiting, single use) lives in the service, and responses never
// disclose remaining attempts or whether a code ever existed.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/passwordless/emailauth"
)

var validate = validator.New()

type sendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// AuthHandler serves the authentication endpoints.
type AuthHandler struct {
	svc *emailauth.Service
}

// NewAuthHandler returns a handler over the given service.
func NewAuthHandler(svc *emailauth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// NewRouter builds the application router with request-ID, recoverer and
// per-IP rate-limit middleware applied to the public auth endpoints.
func NewRouter(svc *emailauth.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// 5 requests/second, burst of 10 — applied to the public auth endpoints.
	sensitiveRL := NewRateLimiter(5, 10)

	h := NewAuthHandler(svc)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)
			r.Post("/send-code", h.SendCode)
			r.Post("/verify", h.Verify)
			r.Post("/register", h.Register)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(svc))
			r.Get("/me", h.Me)
		})
	})

	return r
}

// SendCode handles POST /auth/send-code.
func (h *AuthHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	result, err := h.svc.SendVerificationCode(r.Context(), req.Email)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SendCodeEnvelope{
		Success:   true,
		Message:   "code sent to email",
		ExpiresIn: int(result.ExpiresIn.Seconds()),
	})
}

// Verify handles POST /auth/verify. Unknown users are rejected unless the
// service is configured to auto-create them.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, false)
}

// Register handles POST /auth/register: verification with user auto-creation.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, true)
}

func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request, register bool) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email or empty code")
		return
	}

	var (
		token string
		err   error
	)
	if register {
		token, err = h.svc.RegisterAndVerify(r.Context(), req.Email, req.Code)
	} else {
		token, err = h.svc.VerifyCode(r.Context(), req.Email, req.Code)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenEnvelope{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	email, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no identity in context")
		return
	}
	writeJSON(w, http.StatusOK, IdentityEnvelope{Email: email})
}

func (h *AuthHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, emailauth.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid email address")
	case errors.Is(err, emailauth.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
	case errors.Is(err, emailauth.ErrDeliveryFailed):
		writeError(w, http.StatusBadGateway, "failed to send verification code")
	case errors.Is(err, emailauth.ErrCodeNotFound),
		errors.Is(err, emailauth.ErrInvalidCode),
		errors.Is(err, emailauth.ErrTooManyAttempts):
		// One message for the whole family; no attempt counts, no hint
		// whether a code exists.
		writeError(w, http.StatusBadRequest, "invalid or expired code")
	case errors.Is(err, emailauth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user does not exist")
	case errors.Is(err, emailauth.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
