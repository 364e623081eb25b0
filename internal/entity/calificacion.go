package entity

import "github.com/shopspring/decimal"

// NotaAprobatoria is the minimum grade that counts as a pass.
var NotaAprobatoria = decimal.NewFromInt(60)

type Calificacion struct {
	ID           int64           `json:"id" db:"id"`
	EstudianteID int64           `json:"estudiante_id" db:"estudiante_id"`
	Asignatura   Asignatura      `json:"asignatura" db:"asignatura"`
	Nota         decimal.Decimal `json:"nota" db:"nota"`
}

func (c *Calificacion) Aprobada() bool {
	return c.Nota.GreaterThanOrEqual(NotaAprobatoria)
}

// ResumenNotas aggregates a student's grades for the grade view.
type ResumenNotas struct {
	// Promedio is nil when the student has no grades.
	Promedio        *decimal.Decimal
	Total           int
	Aprobadas       int
	Reprobadas      int
	CreditosTotales int
}

func Resumir(cals []Calificacion) ResumenNotas {
	var r ResumenNotas
	if len(cals) == 0 {
		return r
	}

	sum := decimal.Zero
	for i := range cals {
		sum = sum.Add(cals[i].Nota)
		r.CreditosTotales += cals[i].Asignatura.Creditos
		if cals[i].Aprobada() {
			r.Aprobadas++
		}
	}

	r.Total = len(cals)
	r.Reprobadas = r.Total - r.Aprobadas
	avg := sum.Div(decimal.NewFromInt(int64(r.Total))).Round(2)
	r.Promedio = &avg

	return r
}
