package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/getsentry/sentry-go"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetRequestBody struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type changeRoleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type userResponse struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	Role       string  `json:"role"`
	IsActive   bool    `json:"is_active"`
	IsVerified bool    `json:"is_verified"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
}

func userResponseOf(user User) userResponse {
	return userResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       string(user.Role),
		IsActive:   user.IsActive,
		IsVerified: user.IsVerified,
		AvatarURL:  user.AvatarURL,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(body.Email)); err != nil {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}
	if len(body.Password) < 8 || len(body.Password) > 200 {
		writeError(w, http.StatusBadRequest, "password must be between 8 and 200 characters")
		return
	}

	user, err := h.service.Register(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			writeError(w, http.StatusConflict, "email already registered")
		case errors.Is(err, ErrDispatchFailure):
			// Account is committed; only the email failed.
			sentry.CaptureException(err)
			writeError(w, http.StatusBadGateway, "failed to send verification email")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to register")
		}
		return
	}

	writeJSON(w, http.StatusCreated, userResponseOf(user))
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyVerified):
			writeError(w, http.StatusBadRequest, "user already verified")
		case errors.Is(err, ErrInvalidCredential), errors.Is(err, ErrUnknownIdentity):
			writeError(w, http.StatusBadRequest, "invalid or expired token")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to verify email")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "email successfully verified"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	tokens, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "incorrect email or password")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	tokens, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := h.service.Logout(r.Context(), body.RefreshToken); err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			writeError(w, http.StatusBadRequest, "invalid refresh token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body resetRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), body.Email); err != nil {
		if errors.Is(err, ErrDispatchFailure) {
			sentry.CaptureException(err)
			writeError(w, http.StatusBadGateway, "failed to send reset email")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to request password reset")
		return
	}

	// Same body whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]string{"message": "if the account exists, a reset email has been sent"})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if len(body.NewPassword) < 8 || len(body.NewPassword) > 200 {
		writeError(w, http.StatusBadRequest, "password must be between 8 and 200 characters")
		return
	}

	if err := h.service.ResetPassword(r.Context(), strings.TrimSpace(body.Token), body.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredential), errors.Is(err, ErrUnknownIdentity):
			writeError(w, http.StatusBadRequest, "invalid or expired token")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to reset password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset successful"})
}

func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var body changeRoleRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	role, ok := ParseRole(strings.TrimSpace(body.Role))
	if !ok {
		writeError(w, http.StatusBadRequest, "role must be user or admin")
		return
	}

	if err := h.service.ChangeRole(r.Context(), body.Email, role); err != nil {
		switch {
		case errors.Is(err, ErrUnknownIdentity):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to change role")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "role updated"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}
	// The reset timestamp is resolver-internal; it stays out of responses.
	writeJSON(w, http.StatusOK, userResponse{
		ID:         snapshot.ID,
		Username:   snapshot.Username,
		Email:      snapshot.Email,
		Role:       string(snapshot.Role),
		IsActive:   snapshot.IsActive,
		IsVerified: snapshot.IsVerified,
		AvatarURL:  snapshot.AvatarURL,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
