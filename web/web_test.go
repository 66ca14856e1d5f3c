package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func TestLogin(t *testing.T) {
	r := newRenderer(t)

	rec := httptest.NewRecorder()
	require.NoError(t, r.Login(rec, http.StatusOK, LoginPage{}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<form method="POST" action="/login">`)
	assert.NotContains(t, rec.Body.String(), `class="error"`)
}

func TestLogin_ErrorAndEscaping(t *testing.T) {
	r := newRenderer(t)

	rec := httptest.NewRecorder()
	page := LoginPage{Error: "❌ Invalid username or password", Username: `"><script>`}
	require.NoError(t, r.Login(rec, http.StatusTooManyRequests, page))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "❌ Invalid username or password")
	assert.NotContains(t, body, "<script>")
}

func TestHome(t *testing.T) {
	r := newRenderer(t)

	rec := httptest.NewRecorder()
	require.NoError(t, r.Home(rec, HomePage{User: "admin", Files: []string{"report.pdf", "a b#.txt"}}))
	body := rec.Body.String()
	assert.Contains(t, body, "Welcome, admin")
	assert.Contains(t, body, `href="/download/report.pdf"`)
	assert.Contains(t, body, `href="/download/a%20b%23.txt"`)
	assert.NotContains(t, body, "No files uploaded yet.")
}

func TestHome_Empty(t *testing.T) {
	r := newRenderer(t)

	rec := httptest.NewRecorder()
	require.NoError(t, r.Home(rec, HomePage{User: "yam"}))
	assert.Contains(t, rec.Body.String(), "No files uploaded yet.")
}
