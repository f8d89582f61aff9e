package upload

import (
	"errors"
	"io"
	"net/http"

	"techwire-be/internal/admin"
	"techwire-be/internal/logger"
	"techwire-be/internal/transport"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxZipBytes = 50 << 20

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router, g transport.Guards) {
	adminOnly := transport.OrPass(g.Admin)

	r.Route("/api/uploads", func(r chi.Router) {
		r.With(adminOnly, transport.OrPass(g.Super)).Post("/zip", h.submit)
		r.With(adminOnly).Get("/jobs", h.list)
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	by, ok := admin.FromContext(r.Context())
	if !ok {
		transport.Error(w, http.StatusInternalServerError, "Could not identify admin user.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxZipBytes+1<<20)
	file, header, err := r.FormFile("zipfile")
	if err != nil {
		transport.Error(w, http.StatusBadRequest, "No ZIP file uploaded.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxZipBytes+1))
	if err != nil {
		transport.Error(w, http.StatusBadRequest, "Could not read the uploaded file.")
		return
	}
	if len(data) > maxZipBytes {
		transport.Error(w, http.StatusRequestEntityTooLarge, "ZIP file exceeds 50 MB.")
		return
	}
	if !isZip(data) {
		transport.Error(w, http.StatusBadRequest, "Invalid file type. Only ZIP files are allowed.")
		return
	}

	job, err := h.service.Submit(r.Context(), data, header.Filename, by)
	if errors.Is(err, ErrInvalidArchive) {
		transport.Error(w, http.StatusBadRequest, "Invalid file type. Only ZIP files are allowed.")
		return
	}
	if err != nil {
		logger.FromCtx(r.Context()).Error("failed to submit upload job", zap.Error(err))
		transport.Error(w, http.StatusInternalServerError, "Could not start the upload job.")
		return
	}

	transport.Respond(w, http.StatusAccepted, map[string]any{
		"message":  "File received. The ZIP file is being processed. You will receive an email notification with a link to the report once completed.",
		"filename": header.Filename,
		"job":      job,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		logger.FromCtx(r.Context()).Error("failed to list upload jobs", zap.Error(err))
		transport.Error(w, http.StatusInternalServerError, "Could not fetch upload jobs.")
		return
	}
	transport.Respond(w, http.StatusOK, jobs)
}

// isZip also accepts zip-based formats mimetype reports more specifically.
func isZip(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}
