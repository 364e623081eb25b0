package handler

import (
	"net/http"

	"github.com/gorilla/csrf"

	"universidad/internal/middleware"
)

type DashboardHandler struct {
	sessions SessionStore
	render   *Renderer
}

func NewDashboardHandler(sessions SessionStore, render *Renderer) *DashboardHandler {
	return &DashboardHandler{sessions: sessions, render: render}
}

// Dashboard shows the login form, or sends a logged in student to their grades.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if sess := h.sessions.Current(r); sess != nil {
		http.Redirect(w, r, middleware.GradesPath(sess.EstudianteID), http.StatusSeeOther)
		return
	}

	h.render.Render(w, r, http.StatusOK, "dashboard.html", page{
		Title:     "Inicio",
		Flashes:   h.sessions.Flashes(w, r),
		CSRFField: csrf.TemplateField(r),
	})
}
