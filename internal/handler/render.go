package handler

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gorilla/csrf"

	"universidad/internal/apperr"
	"universidad/internal/entity"
	"universidad/internal/middleware"
	"universidad/internal/session"
	"universidad/internal/templates"
)

type page struct {
	Title     string
	Session   *entity.StudentSession
	Flashes   []session.Flash
	CSRFField template.HTML
}

type errorPage struct {
	page
	Message string
}

type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() *Renderer {
	funcMap := template.FuncMap{
		"gradesPath": middleware.GradesPath,
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"dashboard.html", "notas.html", "error.html"} {
		pages[name] = template.Must(template.New(name).
			Funcs(funcMap).
			ParseFS(templates.FS, "layout.html", name))
	}

	return &Renderer{pages: pages}
}

// Render executes the page into a buffer first so a template error never
// leaves a half written response.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := rd.pages[name]
	if !ok {
		middleware.LoggerFrom(r.Context()).Error("unknown template", "template", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		middleware.LoggerFrom(r.Context()).Error("failed to render template", "template", name, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// ServerError logs err with its detail and shows a generic error page.
func (rd *Renderer) ServerError(w http.ResponseWriter, r *http.Request, err error) {
	middleware.LoggerFrom(r.Context()).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"kind", apperr.KindOf(err).String(),
		"err", err,
	)
	rd.Render(w, r, http.StatusInternalServerError, "error.html", errorPage{
		page:    page{Title: "Error"},
		Message: apperr.UserMessage(err),
	})
}

func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.Render(w, r, http.StatusNotFound, "error.html", errorPage{
		page:    page{Title: "No encontrado"},
		Message: "La página solicitada no existe.",
	})
}

// CSRFFailure answers a form POST whose token is missing or invalid.
func (rd *Renderer) CSRFFailure(w http.ResponseWriter, r *http.Request) {
	middleware.LoggerFrom(r.Context()).Warn("csrf check failed",
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"reason", csrf.FailureReason(r),
	)
	rd.Render(w, r, http.StatusForbidden, "error.html", errorPage{
		page:    page{Title: "Solicitud rechazada"},
		Message: "La solicitud no es válida. Recarga la página e intenta nuevamente.",
	})
}
