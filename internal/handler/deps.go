package handler

import (
	"context"
	"net"
	"net/http"

	"universidad/internal/entity"
	"universidad/internal/session"
)

type SessionStore interface {
	Issue(w http.ResponseWriter, r *http.Request, est *entity.Estudiante) (*entity.StudentSession, error)
	Current(r *http.Request) *entity.StudentSession
	Clear(w http.ResponseWriter, r *http.Request) error
	AddFlash(w http.ResponseWriter, r *http.Request, level session.Level, text string) error
	Flashes(w http.ResponseWriter, r *http.Request) []session.Flash
}

type Authenticator interface {
	Login(ctx context.Context, addr, matricula, clave string) (*entity.Estudiante, error)
	ChangePassword(ctx context.Context, est *entity.Estudiante, actual, nueva1, nueva2 string) error
}

type StudentReader interface {
	GetByID(ctx context.Context, id int64) (*entity.Estudiante, error)
}

type GradeReader interface {
	ListByEstudiante(ctx context.Context, estudianteID int64) ([]entity.Calificacion, error)
}

type ScheduleReader interface {
	ListByEstudiante(ctx context.Context, estudianteID int64) ([]entity.Horario, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// ClientAddr is the address login attempts are counted against.
func ClientAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return r.RemoteAddr
	}
	return host
}
