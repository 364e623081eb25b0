package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/csrf"

	"universidad/internal/apperr"
	"universidad/internal/entity"
	"universidad/internal/middleware"
	"universidad/internal/repository"
	"universidad/internal/session"
)

type notasPage struct {
	page
	Estudiante     *entity.Estudiante
	Calificaciones []entity.Calificacion
	Horarios       []entity.Horario
	Resumen        entity.ResumenNotas
}

// NotasHandler serves a student's own records. Its routes sit behind
// middleware.RequireOwner.
type NotasHandler struct {
	students       StudentReader
	calificaciones GradeReader
	horarios       ScheduleReader
	auth           Authenticator
	sessions       SessionStore
	render         *Renderer
}

func NewNotasHandler(
	students StudentReader,
	calificaciones GradeReader,
	horarios ScheduleReader,
	auth Authenticator,
	sessions SessionStore,
	render *Renderer,
) *NotasHandler {
	return &NotasHandler{
		students:       students,
		calificaciones: calificaciones,
		horarios:       horarios,
		auth:           auth,
		sessions:       sessions,
		render:         render,
	}
}

// estudiante loads the session's student. It writes the error response and
// returns nil when that fails.
func (h *NotasHandler) estudiante(w http.ResponseWriter, r *http.Request) *entity.Estudiante {
	sess := middleware.SessionFrom(r.Context())
	if sess == nil {
		h.render.ServerError(w, r, errors.New("ownership guard missing on route"))
		return nil
	}

	est, err := h.students.GetByID(r.Context(), sess.EstudianteID)
	if errors.Is(err, repository.ErrNotFound) {
		h.render.NotFound(w, r)
		return nil
	}
	if err != nil {
		h.render.ServerError(w, r, apperr.Store(err, "load student"))
		return nil
	}
	return est
}

func (h *NotasHandler) Notas(w http.ResponseWriter, r *http.Request) {
	est := h.estudiante(w, r)
	if est == nil {
		return
	}

	cals, err := h.calificaciones.ListByEstudiante(r.Context(), est.ID)
	if err != nil {
		h.render.ServerError(w, r, apperr.Store(err, "list grades"))
		return
	}
	hs, err := h.horarios.ListByEstudiante(r.Context(), est.ID)
	if err != nil {
		h.render.ServerError(w, r, apperr.Store(err, "list schedule"))
		return
	}

	h.render.Render(w, r, http.StatusOK, "notas.html", notasPage{
		page: page{
			Title:     "Mis notas",
			Session:   middleware.SessionFrom(r.Context()),
			Flashes:   h.sessions.Flashes(w, r),
			CSRFField: csrf.TemplateField(r),
		},
		Estudiante:     est,
		Calificaciones: cals,
		Horarios:       hs,
		Resumen:        entity.Resumir(cals),
	})
}

func (h *NotasHandler) CambiarClave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		id, _ := middleware.RequestedID(r)
		http.Redirect(w, r, middleware.GradesPath(id), http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Solicitud inválida", http.StatusBadRequest)
		return
	}

	est := h.estudiante(w, r)
	if est == nil {
		return
	}

	err := h.auth.ChangePassword(r.Context(), est,
		r.PostFormValue("actual"),
		r.PostFormValue("nueva1"),
		r.PostFormValue("nueva2"),
	)
	switch {
	case err == nil:
		h.flash(w, r, session.LevelSuccess, "Contraseña actualizada correctamente.")
	case apperr.KindOf(err) == apperr.KindValidation:
		h.flash(w, r, session.LevelError, apperr.UserMessage(err))
	default:
		h.render.ServerError(w, r, fmt.Errorf("failed to change password: %w", err))
		return
	}

	http.Redirect(w, r, middleware.GradesPath(est.ID), http.StatusSeeOther)
}

func (h *NotasHandler) flash(w http.ResponseWriter, r *http.Request, level session.Level, text string) {
	if err := h.sessions.AddFlash(w, r, level, text); err != nil {
		middleware.LoggerFrom(r.Context()).Error("failed to save flash", "err", err)
	}
}
