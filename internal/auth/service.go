// Package auth implements student login and password management.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"universidad/internal/apperr"
	"universidad/internal/entity"
	"universidad/internal/ratelimit"
	"universidad/internal/repository"
	"universidad/internal/security"
)

const MinPasswordLength = 8

// User-facing messages.
const (
	MsgRateLimited            = "Demasiados intentos fallidos. Por favor, intenta nuevamente en 5 minutos."
	MsgInvalidCredentials     = "Matrícula o contraseña inválidas."
	MsgCurrentPasswordInvalid = "La contraseña actual no es válida."
	MsgPasswordTooShort       = "La contraseña debe tener al menos 8 caracteres."
	MsgPasswordMismatch       = "Las contraseñas nuevas no coinciden."
	MsgPasswordTooLong        = "La contraseña es demasiado larga."
)

type StudentRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Estudiante, error)
	GetByMatricula(ctx context.Context, matricula string) (*entity.Estudiante, error)
	UpdateClave(ctx context.Context, id int64, hash string) error
}

type Service struct {
	students StudentRepository
	hasher   security.Hasher
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

func NewService(students StudentRepository, hasher security.Hasher, limiter *ratelimit.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		students: students,
		hasher:   hasher,
		limiter:  limiter,
		logger:   logger.With("component", "auth"),
	}
}

// Login verifies a student code and password submitted from addr.
//
// Failures come back as *apperr.Error: KindRateLimited when addr is blocked,
// KindValidation wrapping apperr.ErrInvalidCredentials for any credential
// problem, and KindStore when the student or attempt store fails.
func (s *Service) Login(ctx context.Context, addr, matricula, clave string) (*entity.Estudiante, error) {
	allowed, err := s.limiter.CheckAllowed(ctx, addr)
	if err != nil {
		return nil, apperr.Store(err, "check login attempts")
	}
	if !allowed {
		s.logger.WarnContext(ctx, "login rate limit exceeded", "addr", addr, "window", s.limiter.Window())
		return nil, apperr.New(apperr.KindRateLimited, apperr.ErrRateLimited, MsgRateLimited)
	}

	est, err := s.authenticate(ctx, matricula, clave)
	if apperr.KindOf(err) == apperr.KindStore {
		return nil, err
	}

	if err != nil {
		n, rerr := s.limiter.RecordFailure(ctx, addr)
		if rerr != nil {
			return nil, apperr.Store(rerr, "record login failure")
		}
		s.logger.WarnContext(ctx, "login failed",
			"addr", addr,
			"matricula", matricula,
			"reason", err.Error(),
			"attempt", n,
		)
		return nil, apperr.Validation(fmt.Errorf("%w: %w", apperr.ErrInvalidCredentials, err), MsgInvalidCredentials)
	}

	if err := s.limiter.RecordSuccess(ctx, addr); err != nil {
		return nil, apperr.Store(err, "reset login attempts")
	}

	s.logger.InfoContext(ctx, "student logged in",
		"estudiante_id", est.ID,
		"matricula", est.Matricula,
		"addr", addr,
	)
	return est, nil
}

// authenticate returns the student, or the reason the credentials were
// rejected. Store failures come back as apperr.KindStore.
func (s *Service) authenticate(ctx context.Context, matricula, clave string) (*entity.Estudiante, error) {
	if matricula == "" || clave == "" {
		return nil, apperr.ErrMissingFields
	}

	est, err := s.students.GetByMatricula(ctx, matricula)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrNoSuchStudent
	}
	if err != nil {
		return nil, apperr.Store(err, "load student")
	}

	if !est.HasClave() {
		return nil, apperr.ErrNoPassword
	}
	if !s.hasher.Verify(clave, est.Clave) {
		return nil, apperr.ErrWrongPassword
	}

	return est, nil
}

// VerifyPassword reports whether plaintext matches the student's stored hash.
// It is always false for a student without a password.
func (s *Service) VerifyPassword(est *entity.Estudiante, plaintext string) bool {
	if !est.HasClave() {
		return false
	}
	return s.hasher.Verify(plaintext, est.Clave)
}

// SetPassword hashes plaintext and stores it for the student.
func (s *Service) SetPassword(ctx context.Context, estudianteID int64, plaintext string) error {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}

	if err := s.students.UpdateClave(ctx, estudianteID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return apperr.Store(err, "update password")
	}
	return nil
}

// ChangePassword replaces the student's password after checking, in order, the
// current password, the minimum length and that both new entries match.
// Other sessions of the same student stay valid.
func (s *Service) ChangePassword(ctx context.Context, est *entity.Estudiante, actual, nueva1, nueva2 string) error {
	if !s.VerifyPassword(est, actual) {
		return apperr.Validation(apperr.ErrCurrentPasswordInvalid, MsgCurrentPasswordInvalid)
	}
	if utf8.RuneCountInString(nueva1) < MinPasswordLength {
		return apperr.Validation(apperr.ErrPasswordTooShort, MsgPasswordTooShort)
	}
	if nueva1 != nueva2 {
		return apperr.Validation(apperr.ErrPasswordMismatch, MsgPasswordMismatch)
	}
	if len(nueva1) > security.MaxPasswordBytes {
		return apperr.Validation(apperr.ErrPasswordTooLong, MsgPasswordTooLong)
	}

	if err := s.SetPassword(ctx, est.ID, nueva1); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "student changed password", "estudiante_id", est.ID)
	return nil
}
