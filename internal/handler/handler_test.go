package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"universidad/internal/auth"
	"universidad/internal/entity"
	"universidad/internal/middleware"
	"universidad/internal/ratelimit"
	"universidad/internal/repository"
	"universidad/internal/security"
	"universidad/internal/session"
)

type fakeStudents struct {
	mu   sync.Mutex
	byID map[int64]*entity.Estudiante
}

func (f *fakeStudents) GetByID(_ context.Context, id int64) (*entity.Estudiante, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStudents) GetByMatricula(_ context.Context, matricula string) (*entity.Estudiante, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.byID {
		if e.Matricula == matricula {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStudents) UpdateClave(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Clave = hash
	return nil
}

type fakeGrades struct {
	mu     sync.Mutex
	byID   map[int64][]entity.Calificacion
	asked  []int64
	failed error
}

func (f *fakeGrades) requested() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.asked...)
}

func (f *fakeGrades) ListByEstudiante(_ context.Context, id int64) ([]entity.Calificacion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, id)
	if f.failed != nil {
		return nil, f.failed
	}
	return f.byID[id], nil
}

type fakeSchedule struct {
	byID map[int64][]entity.Horario
}

func (f *fakeSchedule) ListByEstudiante(_ context.Context, id int64) ([]entity.Horario, error) {
	return f.byID[id], nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type downStore struct{}

func (downStore) Count(context.Context, string) (int, error) { return 0, errors.New("store down") }
func (downStore) Increment(context.Context, string, time.Duration) (int, error) {
	return 0, errors.New("store down")
}
func (downStore) Reset(context.Context, string) error { return errors.New("store down") }

type portal struct {
	server   *httptest.Server
	students *fakeStudents
	grades   *fakeGrades
	attempts ratelimit.AttemptStore
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	h, err := security.NewBcryptHasher(bcrypt.MinCost).Hash(plain)
	require.NoError(t, err)
	return h
}

func newPortal(t *testing.T, attempts ratelimit.AttemptStore, db Pinger) *portal {
	t.Helper()

	students := &fakeStudents{byID: map[int64]*entity.Estudiante{
		1: {ID: 1, Nombre: "Ana", Apellido: "Pérez", Matricula: "A001", Carrera: "Ingeniería", Clave: mustHash(t, "secret123")},
		2: {ID: 2, Nombre: "Beto", Apellido: "Gómez", Matricula: "A002", Carrera: "Derecho", Clave: mustHash(t, "otraclave")},
	}}
	calculo := entity.Asignatura{ID: 1, Codigo: "MAT101", Nombre: "Cálculo I", Creditos: 6, Profesor: "Dr. Ruiz"}
	grades := &fakeGrades{byID: map[int64][]entity.Calificacion{
		1: {
			{ID: 1, EstudianteID: 1, Asignatura: calculo, Nota: decimal.RequireFromString("85.50")},
			{ID: 2, EstudianteID: 1, Asignatura: entity.Asignatura{ID: 2, Codigo: "PRG101", Nombre: "Programación", Creditos: 4}, Nota: decimal.RequireFromString("60")},
			{ID: 3, EstudianteID: 1, Asignatura: entity.Asignatura{ID: 3, Codigo: "QUI101", Nombre: "Química", Creditos: 5}, Nota: decimal.RequireFromString("59.99")},
		},
		2: {
			{ID: 4, EstudianteID: 2, Asignatura: calculo, Nota: decimal.RequireFromString("99")},
		},
	}}
	schedule := &fakeSchedule{byID: map[int64][]entity.Horario{
		1: {{ID: 1, Asignatura: calculo, Dia: entity.Lunes, Hora: time.Date(0, 1, 1, 8, 0, 0, 0, time.UTC), Aula: "A-101"}},
	}}

	if attempts == nil {
		attempts = ratelimit.NewMemoryAttemptStore()
	}
	if db == nil {
		db = fakePinger{}
	}

	limiter := ratelimit.NewLimiter(attempts, ratelimit.DefaultMaxAttempts, ratelimit.DefaultWindow)
	svc := auth.NewService(students, security.NewBcryptHasher(bcrypt.MinCost), limiter, nil)
	sessions := session.NewStore([]byte("0123456789abcdef0123456789abcdef"), []byte("abcdef0123456789"), false)

	router := NewRouter(Deps{
		Sessions:       sessions,
		Auth:           svc,
		Students:       students,
		Calificaciones: grades,
		Horarios:       schedule,
		DB:             db,
		CSRFKey:        []byte("fedcba9876543210fedcba9876543210"),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &portal{server: srv, students: students, grades: grades, attempts: attempts}
}

var csrfFieldRe = regexp.MustCompile(`name="` + middleware.CSRFFieldName + `" value="([^"]+)"`)

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
	token  string
}

func (p *portal) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: p.server.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) (int, string, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	if m := csrfFieldRe.FindSubmatch(body); m != nil {
		b.token = string(m[1])
	}
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func (b *browser) get(path string) (int, string, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

// post submits form the way the rendered page would, with its CSRF token.
func (b *browser) post(path string, form url.Values) (int, string, string) {
	b.t.Helper()
	if b.token == "" {
		b.get("/")
		require.NotEmpty(b.t, b.token, "login page carries a csrf token")
	}
	signed := url.Values{middleware.CSRFFieldName: {b.token}}
	for k, v := range form {
		signed[k] = v
	}
	return b.submit(path, signed, "")
}

// submit posts form as is, optionally from a foreign Origin.
func (b *browser) submit(path string, form url.Values, origin string) (int, string, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return b.do(req)
}

func (b *browser) login(matricula, clave string) (int, string) {
	b.t.Helper()
	code, loc, _ := b.post("/notas/login/", url.Values{"matricula": {matricula}, "clave": {clave}})
	return code, loc
}

func TestDashboardShowsLoginForm(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)

	code, _, body := b.get("/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `action="/notas/login/"`)
	assert.Contains(t, body, `name="matricula"`)
}

func TestLoginSuccess(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)

	code, loc := b.login("A001", "secret123")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/notas/1/", loc)

	code, _, body := b.get("/notas/1/")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Bienvenido, Ana!")
	assert.Contains(t, body, "Ana Pérez")
	assert.Contains(t, body, "MAT101")
	assert.Contains(t, body, "Promedio: 68.50")
	assert.Contains(t, body, "Aprobadas: 2")
	assert.Contains(t, body, "Reprobadas: 1")
	assert.Contains(t, body, "Créditos: 15")
	assert.Contains(t, body, "Lunes")

	_, _, body = b.get("/notas/1/")
	assert.NotContains(t, body, "Bienvenido, Ana!", "flash shown once")

	code, loc, _ = b.get("/")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/notas/1/", loc)
}

func TestLoginInvalidCredentials(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)

	for _, creds := range [][2]string{{"A001", "wrong"}, {"Z999", "secret123"}, {"", ""}} {
		code, loc := b.login(creds[0], creds[1])
		assert.Equal(t, http.StatusSeeOther, code)
		assert.Equal(t, "/", loc)

		_, _, body := b.get("/")
		assert.Contains(t, body, "Matrícula o contraseña inválidas.")
	}

	n, err := p.attempts.Count(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLoginRateLimited(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)

	for i := 0; i < 5; i++ {
		b.login("A001", "wrong")
	}

	code, loc := b.login("A001", "secret123")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/", loc)

	_, _, body := b.get("/")
	assert.Contains(t, body, "Demasiados intentos fallidos. Por favor, intenta nuevamente en 5 minutos.")

	code, loc, _ = b.get("/notas/1/")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/", loc, "no session was issued")
}

func TestLoginRequiresPost(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)

	resp, err := b.client.Get(p.server.URL + "/notas/login/?matricula=A001&clave=secret123")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	for _, c := range resp.Cookies() {
		assert.NotEqual(t, session.CookieName, c.Name, "no session issued")
	}
}

func TestLoginRejectsCrossSitePost(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)

	code, _, body := b.submit("/notas/login/", url.Values{"matricula": {"A001"}, "clave": {"secret123"}}, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Contains(t, body, "La solicitud no es válida.")

	b.get("/")
	code, _, _ = b.submit("/notas/login/", url.Values{"matricula": {"A001"}, "clave": {"secret123"}}, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, code, "csrf cookie alone is not enough")

	code, loc, _ := b.get("/notas/1/")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/", loc, "no session was issued")

	n, err := p.attempts.Count(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, n, "rejected before authentication")
}

func TestLoginAttemptStoreDown(t *testing.T) {
	p := newPortal(t, downStore{}, nil)
	b := p.browser(t)

	code, _, body := b.post("/notas/login/", url.Values{"matricula": {"A001"}, "clave": {"secret123"}})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body, "Ha ocurrido un error. Intenta nuevamente.")
	assert.NotContains(t, body, "store down")
}

func TestGuardRedirectsAnonymous(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)

	code, loc, _ := b.get("/notas/1/")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/", loc)
	assert.Empty(t, p.grades.requested())

	_, _, body := b.get("/")
	assert.Contains(t, body, "Debes iniciar sesión como estudiante.")
}

func TestGuardRedirectsToOwnRecords(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)
	b.login("A001", "secret123")
	b.get("/notas/1/")

	code, loc, _ := b.get("/notas/2/")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/notas/1/", loc)

	code, loc, _ = b.post("/notas/2/cambiar-clave/", url.Values{"actual": {"otraclave"}, "nueva1": {"hackeado1"}, "nueva2": {"hackeado1"}})
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/notas/1/", loc)
	assert.NotContains(t, p.grades.requested(), int64(2))

	code, _, body := b.get("/notas/1/")
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, `class="flash`, "redirect to own records is silent")

	beto := p.browser(t)
	code, loc = beto.login("A002", "otraclave")
	assert.Equal(t, "/notas/2/", loc, "other student's password unchanged")
	assert.Equal(t, http.StatusSeeOther, code)
}

func TestGuardUnknownID(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)
	b.login("A001", "secret123")

	code, _, _ := b.get("/notas/abc/")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCambiarClave(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)
	b.login("A001", "secret123")
	b.get("/notas/1/")

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"wrong current", url.Values{"actual": {"wrong"}, "nueva1": {"nuevaclave"}, "nueva2": {"nuevaclave"}}, "La contraseña actual no es válida."},
		{"too short", url.Values{"actual": {"secret123"}, "nueva1": {"corta"}, "nueva2": {"corta"}}, "La contraseña debe tener al menos 8 caracteres."},
		{"mismatch", url.Values{"actual": {"secret123"}, "nueva1": {"nuevaclave"}, "nueva2": {"nuevaclav3"}}, "Las contraseñas nuevas no coinciden."},
		{"success", url.Values{"actual": {"secret123"}, "nueva1": {"nuevaclave"}, "nueva2": {"nuevaclave"}}, "Contraseña actualizada correctamente."},
	}

	// Steps share one browser session, so they run in order on the parent test.
	for _, tt := range tests {
		code, loc, _ := b.post("/notas/1/cambiar-clave/", tt.form)
		assert.Equal(t, http.StatusSeeOther, code, tt.name)
		assert.Equal(t, "/notas/1/", loc, tt.name)

		_, _, body := b.get("/notas/1/")
		assert.Contains(t, body, tt.want, tt.name)
	}

	other := p.browser(t)
	_, loc := other.login("A001", "secret123")
	assert.Equal(t, "/", loc, "old password no longer works")
	_, loc = other.login("A001", "nuevaclave")
	assert.Equal(t, "/notas/1/", loc)

	code, _, _ := b.get("/notas/1/")
	assert.Equal(t, http.StatusOK, code, "existing session stays valid")
}

func TestCambiarClaveRejectsCrossSitePost(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)
	b.login("A001", "secret123")

	form := url.Values{"actual": {"secret123"}, "nueva1": {"hackeado1"}, "nueva2": {"hackeado1"}}
	code, _, body := b.submit("/notas/1/cambiar-clave/", form, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Contains(t, body, "La solicitud no es válida.")

	form.Set(middleware.CSRFFieldName, "bm90LWEtdG9rZW4=")
	code, _, _ = b.submit("/notas/1/cambiar-clave/", form, "")
	assert.Equal(t, http.StatusForbidden, code, "forged token")

	other := p.browser(t)
	_, loc := other.login("A001", "secret123")
	assert.Equal(t, "/notas/1/", loc, "password unchanged")
}

func TestCambiarClaveRequiresPost(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)
	b.login("A001", "secret123")

	code, loc, _ := b.get("/notas/1/cambiar-clave/")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/notas/1/", loc)
}

func TestLogout(t *testing.T) {
	p := newPortal(t, nil, nil)
	b := p.browser(t)
	b.login("A001", "secret123")

	code, loc, _ := b.get("/notas/logout/")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/", loc)

	code, _, body := b.get("/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Sesión cerrada. Hasta luego, Ana Pérez!")

	code, loc, _ = b.get("/notas/1/")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/", loc)
}

func TestGradeStoreFailure(t *testing.T) {
	p := newPortal(t, nil, nil)
	p.grades.failed = errors.New("connection refused")
	b := p.browser(t)
	b.login("A001", "secret123")

	code, _, body := b.get("/notas/1/")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotContains(t, body, "connection refused")
}

func TestHealth(t *testing.T) {
	p := newPortal(t, nil, nil)
	code, _, body := p.browser(t).get("/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	p = newPortal(t, nil, fakePinger{err: errors.New("down")})
	code, _, body = p.browser(t).get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"status":"unavailable"}`, body)
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"1.1.1.1:5050", "1.1.1.1"},
		{"[::1]:8080", "::1"},
		{"203.0.113.9", "203.0.113.9"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remote
		assert.Equal(t, tt.want, ClientAddr(r))
	}
}
