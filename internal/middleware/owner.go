package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"universidad/internal/entity"
	"universidad/internal/session"
)

const MsgLoginRequired = "Debes iniciar sesión como estudiante."

// GradesPath is the grade view of a student.
func GradesPath(id int64) string {
	return fmt.Sprintf("/notas/%d/", id)
}

// Decision is the outcome of an ownership check. When Allow is false the
// request must be redirected to Redirect, showing Message when it is set.
type Decision struct {
	Allow    bool
	Redirect string
	Message  string
}

// Authorize lets a student through only to their own records. A student asking
// for someone else's records is sent back to their own grade view without a message.
func Authorize(sess *entity.StudentSession, requestedID int64) Decision {
	if sess == nil {
		return Decision{Redirect: "/", Message: MsgLoginRequired}
	}
	if sess.EstudianteID != requestedID {
		return Decision{Redirect: GradesPath(sess.EstudianteID)}
	}
	return Decision{Allow: true}
}

type SessionStore interface {
	Current(r *http.Request) *entity.StudentSession
	AddFlash(w http.ResponseWriter, r *http.Request, level session.Level, text string) error
}

type sessionKey struct{}

// SessionFrom returns the session stored by RequireOwner.
func SessionFrom(ctx context.Context) *entity.StudentSession {
	sess, _ := ctx.Value(sessionKey{}).(*entity.StudentSession)
	return sess
}

// RequestedID returns the student id of the {pk} route variable.
func RequestedID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["pk"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// RequireOwner guards routes carrying a {pk} student id. It runs before the
// wrapped handler touches any data.
func RequireOwner(sessions SessionStore) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := RequestedID(r)
			if !ok {
				http.NotFound(w, r)
				return
			}

			sess := sessions.Current(r)
			d := Authorize(sess, id)
			if !d.Allow {
				if d.Message != "" {
					if err := sessions.AddFlash(w, r, session.LevelError, d.Message); err != nil {
						LoggerFrom(r.Context()).Error("failed to save flash", "err", err)
					}
				}
				LoggerFrom(r.Context()).Info("ownership check denied",
					"requested_id", id,
					"redirect", d.Redirect,
				)
				http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
