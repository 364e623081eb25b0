package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"universidad/internal/middleware"
)

type Deps struct {
	Sessions       SessionStore
	Auth           Authenticator
	Students       StudentReader
	Calificaciones GradeReader
	Horarios       ScheduleReader
	DB             Pinger
	Logger         *slog.Logger
	// CSRFKey signs form tokens; SecureCookies also turns on Origin checks.
	CSRFKey       []byte
	SecureCookies bool
}

// NewRouter registers the portal routes. Every route carrying a student id
// goes through the ownership guard, and every form POST needs a CSRF token.
func NewRouter(d Deps) *mux.Router {
	render := NewRenderer()
	dashboard := NewDashboardHandler(d.Sessions, render)
	login := NewLoginHandler(d.Auth, d.Sessions, render)
	notas := NewNotasHandler(d.Students, d.Calificaciones, d.Horarios, d.Auth, d.Sessions, render)
	health := NewHealthHandler(d.DB)

	r := mux.NewRouter().StrictSlash(true)
	r.Use(middleware.RequestID(d.Logger))
	r.Use(middleware.CSRF(d.CSRFKey, d.SecureCookies, http.HandlerFunc(render.CSRFFailure)))
	r.NotFoundHandler = middleware.RequestID(d.Logger)(http.HandlerFunc(render.NotFound))

	r.HandleFunc("/", dashboard.Dashboard).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", health.Health).Methods(http.MethodGet)

	r.HandleFunc("/notas/login/", login.Login)
	r.HandleFunc("/notas/logout/", login.Logout)

	owned := r.PathPrefix("/notas/{pk}").Subrouter()
	owned.Use(middleware.RequireOwner(d.Sessions))
	owned.HandleFunc("/", notas.Notas).Methods(http.MethodGet, http.MethodHead)
	owned.HandleFunc("/cambiar-clave/", notas.CambiarClave)

	return r
}
