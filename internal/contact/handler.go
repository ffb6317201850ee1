package contact

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type contactRequest struct {
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	Birthday       *string `json:"birthday,omitempty"`
	AdditionalInfo *string `json:"additional_info,omitempty"`
}

func (b contactRequest) toContact() (Contact, string) {
	firstName := strings.TrimSpace(b.FirstName)
	lastName := strings.TrimSpace(b.LastName)
	phone := strings.TrimSpace(b.Phone)

	if firstName == "" || lastName == "" {
		return Contact{}, "first_name and last_name are required"
	}
	if phone == "" {
		return Contact{}, "phone is required"
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(b.Email)); err != nil {
		return Contact{}, "email format is invalid"
	}

	contact := Contact{
		FirstName:      firstName,
		LastName:       lastName,
		Email:          strings.TrimSpace(b.Email),
		Phone:          phone,
		AdditionalInfo: b.AdditionalInfo,
	}

	if b.Birthday != nil && strings.TrimSpace(*b.Birthday) != "" {
		birthday, err := time.Parse("2006-01-02", strings.TrimSpace(*b.Birthday))
		if err != nil {
			return Contact{}, "birthday must be YYYY-MM-DD"
		}
		contact.Birthday = &birthday
	}

	return contact, ""
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body contactRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	contact, problem := body.toContact()
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	created, err := h.repo.Create(r.Context(), contact)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create contact")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	contact, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "contact not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load contact")
		return
	}

	writeJSON(w, http.StatusOK, contact)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var body contactRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	contact, problem := body.toContact()
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}
	contact.ID = r.PathValue("id")

	if err := h.repo.Update(r.Context(), contact); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "contact not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update contact")
		return
	}

	writeJSON(w, http.StatusOK, contact)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "contact not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete contact")
		return
	}

	w.WriteHeader(http.StatusNoContent)
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

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
