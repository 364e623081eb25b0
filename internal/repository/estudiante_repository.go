package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"universidad/internal/entity"
)

type EstudianteRepository struct {
	db *sqlx.DB
}

func NewEstudianteRepository(db *sqlx.DB) *EstudianteRepository {
	return &EstudianteRepository{db: db}
}

const estudianteColumns = `id, nombre, apellido, matricula, carrera, correo, clave`

func (r *EstudianteRepository) GetByID(ctx context.Context, id int64) (*entity.Estudiante, error) {
	var e entity.Estudiante
	err := r.db.GetContext(ctx, &e, `
		SELECT `+estudianteColumns+`
		FROM estudiantes
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// GetByMatricula looks up a student by exact student code.
func (r *EstudianteRepository) GetByMatricula(ctx context.Context, matricula string) (*entity.Estudiante, error) {
	var e entity.Estudiante
	err := r.db.GetContext(ctx, &e, `
		SELECT `+estudianteColumns+`
		FROM estudiantes
		WHERE matricula = $1
	`, matricula)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// UpdateClave stores an already hashed password.
func (r *EstudianteRepository) UpdateClave(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE estudiantes
		SET clave = $1
		WHERE id = $2
	`, hash, id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}
