// Package session keeps the authenticated student identity and flash messages
// in an encrypted client-side cookie.
package session

import (
	"encoding/gob"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"universidad/internal/config"
	"universidad/internal/entity"
)

const (
	CookieName = "universidad_session"
	// TTL is the fixed lifetime of a login, counted from the moment it was issued.
	TTL = time.Hour

	keyEstudianteID = "estudiante_id"
	keyNombre       = "estudiante_nombre"
	keyIssuedAt     = "issued_at"
	keyExpiresAt    = "expires_at"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level Level
	Text  string
}

func init() {
	gob.Register(Flash{})
}

type Store struct {
	cookies *sessions.CookieStore
	now     func() time.Time
}

type Option func(*Store)

// WithClock replaces the time source used for issuing and expiring sessions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(hashKey, blockKey []byte, secure bool, opts ...Option) *Store {
	var keyPairs [][]byte
	if len(blockKey) > 0 {
		keyPairs = [][]byte{hashKey, blockKey}
	} else {
		keyPairs = [][]byte{hashKey}
	}

	cookies := sessions.NewCookieStore(keyPairs...)
	cookies.MaxAge(int(TTL.Seconds()))
	cookies.Options.Path = "/"
	cookies.Options.HttpOnly = true
	cookies.Options.Secure = secure
	cookies.Options.SameSite = http.SameSiteLaxMode

	s := &Store{cookies: cookies, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig builds a Store from configured keys. Outside production a
// missing key is replaced by a random one, which invalidates sessions on restart.
func NewFromConfig(cfg *config.Config) *Store {
	hashKey := []byte(cfg.SessionHashKey)
	if len(hashKey) == 0 {
		slog.Warn("SESSION_HASH_KEY not set, using a random key")
		hashKey = securecookie.GenerateRandomKey(64)
	}

	blockKey := []byte(cfg.SessionBlockKey)
	if len(blockKey) == 0 {
		slog.Warn("SESSION_BLOCK_KEY not set, using a random key")
		blockKey = securecookie.GenerateRandomKey(32)
	}

	return NewStore(hashKey, blockKey, cfg.SessionSecureCookie)
}

// CSRFKey returns the configured CSRF token key, or a random one outside
// production.
func CSRFKey(cfg *config.Config) []byte {
	if cfg.CSRFKey != "" {
		return []byte(cfg.CSRFKey)
	}
	slog.Warn("CSRF_KEY not set, using a random key")
	return securecookie.GenerateRandomKey(32)
}

func (s *Store) get(r *http.Request) *sessions.Session {
	sess, err := s.cookies.Get(r, CookieName)
	if err != nil {
		// A tampered, stale or foreign cookie yields a fresh empty session.
		slog.Debug("discarding undecodable session cookie", "err", err)
	}
	return sess
}

// Issue replaces whatever the session held with a new student login.
func (s *Store) Issue(w http.ResponseWriter, r *http.Request, est *entity.Estudiante) (*entity.StudentSession, error) {
	sess := s.get(r)
	for k := range sess.Values {
		delete(sess.Values, k)
	}

	now := s.now()
	out := &entity.StudentSession{
		EstudianteID: est.ID,
		Nombre:       est.FullName(),
		IssuedAt:     now,
		ExpiresAt:    now.Add(TTL),
	}

	sess.Values[keyEstudianteID] = out.EstudianteID
	sess.Values[keyNombre] = out.Nombre
	sess.Values[keyIssuedAt] = out.IssuedAt.Unix()
	sess.Values[keyExpiresAt] = out.ExpiresAt.Unix()
	sess.Options.MaxAge = int(TTL.Seconds())

	if err := sess.Save(r, w); err != nil {
		return nil, err
	}
	return out, nil
}

// Current returns the logged in student, or nil when there is no valid,
// unexpired login.
func (s *Store) Current(r *http.Request) *entity.StudentSession {
	sess := s.get(r)

	id, ok := sess.Values[keyEstudianteID].(int64)
	if !ok || id <= 0 {
		return nil
	}
	issued, ok := sess.Values[keyIssuedAt].(int64)
	if !ok {
		return nil
	}
	expires, ok := sess.Values[keyExpiresAt].(int64)
	if !ok {
		return nil
	}
	nombre, _ := sess.Values[keyNombre].(string)

	out := &entity.StudentSession{
		EstudianteID: id,
		Nombre:       nombre,
		IssuedAt:     time.Unix(issued, 0),
		ExpiresAt:    time.Unix(expires, 0),
	}
	if out.Expired(s.now()) {
		return nil
	}
	return out
}

// Clear drops the student identity. Pending flashes survive so the next
// page can show them.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) error {
	sess := s.get(r)
	delete(sess.Values, keyEstudianteID)
	delete(sess.Values, keyNombre)
	delete(sess.Values, keyIssuedAt)
	delete(sess.Values, keyExpiresAt)
	return sess.Save(r, w)
}

func (s *Store) AddFlash(w http.ResponseWriter, r *http.Request, level Level, text string) error {
	sess := s.get(r)
	sess.AddFlash(Flash{Level: level, Text: text})
	return sess.Save(r, w)
}

// Flashes pops all pending flash messages.
func (s *Store) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess := s.get(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}

	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}

	if err := sess.Save(r, w); err != nil {
		slog.Error("failed to save session after reading flashes", "err", err)
	}
	return out
}
