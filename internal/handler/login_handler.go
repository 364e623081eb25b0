package handler

import (
	"fmt"
	"net/http"
	"strings"

	"universidad/internal/apperr"
	"universidad/internal/middleware"
	"universidad/internal/session"
)

type LoginHandler struct {
	auth     Authenticator
	sessions SessionStore
	render   *Renderer
}

func NewLoginHandler(auth Authenticator, sessions SessionStore, render *Renderer) *LoginHandler {
	return &LoginHandler{
		auth:     auth,
		sessions: sessions,
		render:   render,
	}
}

func (h *LoginHandler) flash(w http.ResponseWriter, r *http.Request, level session.Level, text string) {
	if err := h.sessions.AddFlash(w, r, level, text); err != nil {
		middleware.LoggerFrom(r.Context()).Error("failed to save flash", "err", err)
	}
}

// Login handles the landing page form. Anything but POST goes back to the
// landing page untouched.
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Solicitud inválida", http.StatusBadRequest)
		return
	}

	matricula := strings.TrimSpace(r.PostFormValue("matricula"))
	clave := r.PostFormValue("clave")

	est, err := h.auth.Login(r.Context(), ClientAddr(r), matricula, clave)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindRateLimited, apperr.KindValidation:
			h.flash(w, r, session.LevelError, apperr.UserMessage(err))
			http.Redirect(w, r, "/", http.StatusSeeOther)
		default:
			h.render.ServerError(w, r, err)
		}
		return
	}

	if _, err := h.sessions.Issue(w, r, est); err != nil {
		h.render.ServerError(w, r, fmt.Errorf("failed to issue session: %w", err))
		return
	}

	h.flash(w, r, session.LevelSuccess, fmt.Sprintf("Bienvenido, %s!", est.Nombre))
	http.Redirect(w, r, middleware.GradesPath(est.ID), http.StatusSeeOther)
}

func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	nombre := "Estudiante"
	if sess := h.sessions.Current(r); sess != nil {
		nombre = sess.Nombre
		middleware.LoggerFrom(r.Context()).Info("student logged out", "estudiante_id", sess.EstudianteID)
	}

	if err := h.sessions.Clear(w, r); err != nil {
		h.render.ServerError(w, r, fmt.Errorf("failed to clear session: %w", err))
		return
	}

	h.flash(w, r, session.LevelSuccess, fmt.Sprintf("Sesión cerrada. Hasta luego, %s!", nombre))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
