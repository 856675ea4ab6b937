// Package web serves the BFF's minimal HTML surfaces: the login page, the
// forbidden page and the admin landing page, plus their static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed dist/*.html dist/static/*
var content embed.FS

// Page names.
const (
	Login     = "login.html"
	Forbidden = "forbidden.html"
	Admin     = "admin.html"
)

// PageData is the view model shared by every page.
type PageData struct {
	Lang      string
	Title     string
	Message   string
	Action    string
	CSRFToken string
	Principal any
}

// Pages renders the embedded templates.
type Pages struct {
	tmpl *template.Template
}

// NewPages parses the embedded templates.
func NewPages() (*Pages, error) {
	tmpl, err := template.ParseFS(content, "dist/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing embedded pages: %w", err)
	}
	return &Pages{tmpl: tmpl}, nil
}

// Render writes page with status. The page is rendered to a buffer first so
// a template error never leaves a half-written response.
func (p *Pages) Render(w http.ResponseWriter, status int, page string, data PageData) error {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, page, data); err != nil {
		return fmt.Errorf("rendering %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// Static returns a handler serving the embedded assets under /static/.
func Static() (http.Handler, error) {
	fsys, err := fs.Sub(content, "dist")
	if err != nil {
		return nil, fmt.Errorf("loading embedded web assets: %w", err)
	}
	return http.FileServer(http.FS(fsys)), nil
}
