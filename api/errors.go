package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/cloudbox/filename"
	"github.com/jmcleod/cloudbox/gateway"
	"github.com/jmcleod/cloudbox/storage"
)

// Plain-text bodies for the browser-facing routes.
const (
	msgNoFilePart     = "No file part"
	msgNoFileSelected = "No file selected"
	msgTypeNotAllowed = "File type not allowed"
	msgFileTooLarge   = "File too large"
	msgFileNotFound   = "File not found"
	msgInternalError  = "Internal server error"
	msgUnauthorized   = "Unauthorized"
	msgInvalidLogin   = "❌ Invalid username or password"
	msgMalformedLogin = "Malformed login form"
	msgSessionFailure = "Could not start session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusFound)
}

// mapError answers a failed gateway call on a browser-facing route.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		redirectToLogin(w, r)
	case errors.Is(err, filename.ErrRejected):
		http.Error(w, msgTypeNotAllowed, http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, msgFileNotFound, http.StatusNotFound)
	default:
		a.writeInternalError(w, r, err)
	}
}

// mapJSONError answers a failed gateway call on a JSON route.
func (a *API) mapJSONError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, msgFileNotFound)
	default:
		a.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}

// writeInternalError logs err and sends a generic 500 so internal details
// never reach the client.
func (a *API) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.ErrorContext(r.Context(), "request failed",
		"method", r.Method, "path", r.URL.Path, "error", err)
	http.Error(w, msgInternalError, http.StatusInternalServerError)
}
