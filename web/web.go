// Package web renders the server's HTML pages from embedded templates.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
)

//go:embed templates/*.html
var content embed.FS

// LoginPage is the data for the login form.
type LoginPage struct {
	Error    string
	Username string
}

// HomePage is the data for the file list and upload form.
type HomePage struct {
	User  string
	Files []string
}

// Renderer executes the embedded page templates.
type Renderer struct {
	login *template.Template
	home  *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{"pathEscape": url.PathEscape}
	login, err := template.New("login.html").Funcs(funcs).ParseFS(content, "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("parsing login template: %w", err)
	}
	home, err := template.New("home.html").Funcs(funcs).ParseFS(content, "templates/home.html")
	if err != nil {
		return nil, fmt.Errorf("parsing home template: %w", err)
	}
	return &Renderer{login: login, home: home}, nil
}

// Login writes the login form with the given status code.
func (r *Renderer) Login(w http.ResponseWriter, status int, page LoginPage) error {
	return render(w, status, r.login, page)
}

// Home writes the file list page.
func (r *Renderer) Home(w http.ResponseWriter, page HomePage) error {
	return render(w, http.StatusOK, r.home, page)
}

// render executes into a buffer first so a template failure never leaves a
// half-written 200 behind.
func render(w http.ResponseWriter, status int, t *template.Template, data any) error {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}
