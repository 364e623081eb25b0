package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"universidad/internal/entity"
)

type CalificacionRepository struct {
	db *sqlx.DB
}

func NewCalificacionRepository(db *sqlx.DB) *CalificacionRepository {
	return &CalificacionRepository{db: db}
}

// ListByEstudiante returns the student's grades with their course, ordered by course code.
func (r *CalificacionRepository) ListByEstudiante(ctx context.Context, estudianteID int64) ([]entity.Calificacion, error) {
	cals := []entity.Calificacion{}
	err := r.db.SelectContext(ctx, &cals, `
		SELECT c.id,
			c.estudiante_id,
			c.nota,
			a.id       AS "asignatura.id",
			a.codigo   AS "asignatura.codigo",
			a.nombre   AS "asignatura.nombre",
			a.creditos AS "asignatura.creditos",
			a.profesor AS "asignatura.profesor"
		FROM calificaciones c
		JOIN asignaturas a ON a.id = c.asignatura_id
		WHERE c.estudiante_id = $1
		ORDER BY a.codigo
	`, estudianteID)
	if err != nil {
		return nil, err
	}

	return cals, nil
}
