package api

// FilesResponse is returned from GET /files. Order follows the storage
// directory and is not guaranteed to be sorted.
type FilesResponse struct {
	Files []string `json:"files"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
