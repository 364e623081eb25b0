package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"universidad/internal/entity"
)

type HorarioRepository struct {
	db *sqlx.DB
}

func NewHorarioRepository(db *sqlx.DB) *HorarioRepository {
	return &HorarioRepository{db: db}
}

// ListByEstudiante returns the timetable of every course the student has a grade in,
// ordered Monday to Saturday and then by time.
func (r *HorarioRepository) ListByEstudiante(ctx context.Context, estudianteID int64) ([]entity.Horario, error) {
	hs := []entity.Horario{}
	err := r.db.SelectContext(ctx, &hs, `
		SELECT h.id,
			h.dia,
			h.hora,
			h.aula,
			a.id       AS "asignatura.id",
			a.codigo   AS "asignatura.codigo",
			a.nombre   AS "asignatura.nombre",
			a.creditos AS "asignatura.creditos",
			a.profesor AS "asignatura.profesor"
		FROM horarios h
		JOIN asignaturas a ON a.id = h.asignatura_id
		WHERE h.asignatura_id IN (
			SELECT asignatura_id FROM calificaciones WHERE estudiante_id = $1
		)
	`, estudianteID)
	if err != nil {
		return nil, err
	}

	entity.OrdenarHorarios(hs)
	return hs, nil
}
