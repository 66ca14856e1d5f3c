package api

import (
	"bytes"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/cloudbox/filename"
	"github.com/jmcleod/cloudbox/web"
)

// Home handles GET /: the upload form and the stored files.
func (a *API) Home(w http.ResponseWriter, r *http.Request) {
	files, err := a.files.ListFiles(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if err := a.pages.Home(w, web.HomePage{
		User:  usernameFromContext(r.Context()),
		Files: files,
	}); err != nil {
		a.writeInternalError(w, r, err)
	}
}

// Upload handles POST /upload with a multipart "file" field.
func (a *API) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := usernameFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			a.audit.logFailure(AuditUploadRejected, r, "too large",
				slog.String("username", username))
			http.Error(w, msgFileTooLarge, http.StatusRequestEntityTooLarge)
		case errors.Is(err, http.ErrMissingFile) && hasEmptyFileField(r):
			// Browsers submit an empty filename when nothing was chosen;
			// the multipart reader files that under values, not files.
			http.Error(w, msgNoFileSelected, http.StatusBadRequest)
		default:
			http.Error(w, msgNoFilePart, http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	if header.Filename == "" {
		http.Error(w, msgNoFileSelected, http.StatusBadRequest)
		return
	}

	name, err := a.files.Store(ctx, tokenFromContext(ctx), header.Filename, file)
	if err != nil {
		if errors.Is(err, filename.ErrRejected) {
			a.audit.logFailure(AuditUploadRejected, r, err.Error(),
				slog.String("username", username))
		}
		a.mapError(w, r, err)
		return
	}

	a.audit.logEvent(AuditFileUploaded, r, username,
		slog.String("file", name),
		slog.Int64("size", header.Size))
	http.Redirect(w, r, "/", http.StatusFound)
}

func hasEmptyFileField(r *http.Request) bool {
	if r.MultipartForm == nil {
		return false
	}
	_, ok := r.MultipartForm.Value["file"]
	return ok
}

// Download handles GET /download/{name}, sending the file as an attachment.
func (a *API) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	data, err := a.files.Retrieve(ctx, tokenFromContext(ctx), name)
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	a.audit.logEvent(AuditFileDownloaded, r, usernameFromContext(ctx),
		slog.String("file", name))
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

// ListFiles handles GET /files.
func (a *API) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := a.files.ListFiles(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		a.mapJSONError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FilesResponse{Files: files})
}
