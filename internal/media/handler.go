package media

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/getsentry/sentry-go"

	"contacts-api/internal/auth"
)

const maxUploadSizeBytes = 10 << 20

// AvatarUploader is the blob-storage collaborator contract.
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, file io.Reader, identifier string) (string, error)
}

// AvatarHandler uploads the caller's avatar and persists the resulting URL
// on the account.
type AvatarHandler struct {
	uploader AvatarUploader
	service  *auth.Service
}

func NewAvatarHandler(uploader AvatarUploader, service *auth.Service) *AvatarHandler {
	return &AvatarHandler{uploader: uploader, service: service}
}

func (h *AvatarHandler) Upload(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSizeBytes)
	if err := r.ParseMultipartForm(maxUploadSizeBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	avatarURL, err := h.uploader.UploadAvatar(r.Context(), file, snapshot.ID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "failed to upload avatar")
		return
	}

	updated, err := h.service.SetAvatar(r.Context(), snapshot.ID, snapshot.Email, avatarURL)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownIdentity) {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to save avatar")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         updated.ID,
		"username":   updated.Username,
		"email":      updated.Email,
		"avatar_url": updated.AvatarURL,
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
