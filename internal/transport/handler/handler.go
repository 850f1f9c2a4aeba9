package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/Rahul2570089/mp4-2-mp3/internal/auth"
	"github.com/Rahul2570089/mp4-2-mp3/internal/blobstore"
	"github.com/Rahul2570089/mp4-2-mp3/internal/config"
	use_case "github.com/Rahul2570089/mp4-2-mp3/internal/use-case"
)

type UseCase interface {
	Upload(ctx context.Context, file io.Reader, owner string) (blobstore.ID, error)
	Download(ctx context.Context, id blobstore.ID) ([]byte, string, error)
}

type Auth interface {
	Login(ctx context.Context, email, password string) (string, error)
	Validate(token string) (auth.Claims, error)
}

type Handler struct {
	useCase UseCase
	auth    Auth
	cfg     *config.Config
}

func New(useCase UseCase, authSvc Auth, cfg *config.Config) *Handler {
	return &Handler{
		useCase: useCase,
		auth:    authSvc,
		cfg:     cfg,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if !ok {
		writeJSONError(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.auth.Login(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			writeJSONError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		sentry.CaptureException(err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(token))
}

// authorize checks the bearer token and requires the admin capability,
// which both pipeline endpoints are gated on.
func (h *Handler) authorize(r *http.Request) (auth.Claims, error) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		return auth.Claims{}, auth.ErrUnauthorized
	}
	claims, err := h.auth.Validate(raw)
	if err != nil {
		return auth.Claims{}, err
	}
	if !claims.Admin {
		return auth.Claims{}, auth.ErrUnauthorized
	}
	return claims, nil
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authorize(r)
	if err != nil {
		writeJSONError(w, "not authorized", http.StatusUnauthorized)
		return
	}

	maxBody := h.cfg.Upload.MaxRequestBodyMB
	if maxBody <= 0 {
		maxBody = 512
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody<<20)

	maxMultipartMem := h.cfg.Upload.MaxMultipartMemoryMB
	if maxMultipartMem <= 0 {
		maxMultipartMem = 32
	}
	if err := r.ParseMultipartForm(maxMultipartMem << 20); err != nil {
		writeMultipartError(w, err)
		return
	}

	files := 0
	var fileField string
	for field, headers := range r.MultipartForm.File {
		files += len(headers)
		fileField = field
	}
	if files != 1 {
		writeJSONError(w, "exactly 1 file required", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile(fileField)
	if err != nil {
		writeJSONError(w, "an error occurred while uploading the file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if _, err := h.useCase.Upload(r.Context(), file, claims.Username); err != nil {
		if errors.Is(err, use_case.ErrUnsupportedMedia) {
			writeJSONError(w, "unsupported file type, expected a video", http.StatusBadRequest)
			return
		}
		sentry.CaptureException(err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authorize(r); err != nil {
		writeJSONError(w, "not authorized", http.StatusUnauthorized)
		return
	}

	fid := r.URL.Query().Get("fid")
	if fid == "" {
		writeJSONError(w, "fid is required", http.StatusBadRequest)
		return
	}

	data, contentType, err := h.useCase.Download(r.Context(), blobstore.ID(fid))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			writeJSONError(w, "not found", http.StatusNotFound)
			return
		}
		sentry.CaptureException(err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fid+".mp3"))
	_, _ = w.Write(data)
}
