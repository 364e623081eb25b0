package entity

import (
	"sort"
	"time"
)

type Dia string

const (
	Lunes     Dia = "LUN"
	Martes    Dia = "MAR"
	Miercoles Dia = "MIE"
	Jueves    Dia = "JUE"
	Viernes   Dia = "VIE"
	Sabado    Dia = "SAB"
)

var dias = []struct {
	code    Dia
	display string
}{
	{Lunes, "Lunes"},
	{Martes, "Martes"},
	{Miercoles, "Miércoles"},
	{Jueves, "Jueves"},
	{Viernes, "Viernes"},
	{Sabado, "Sábado"},
}

func (d Dia) Display() string {
	for _, v := range dias {
		if v.code == d {
			return v.display
		}
	}
	return string(d)
}

// Orden is the weekday position of d, with unknown codes sorted last.
func (d Dia) Orden() int {
	for i, v := range dias {
		if v.code == d {
			return i
		}
	}
	return len(dias)
}

type Horario struct {
	ID         int64      `json:"id" db:"id"`
	Asignatura Asignatura `json:"asignatura" db:"asignatura"`
	Dia        Dia        `json:"dia" db:"dia"`
	// Hora is the time of day; only hour and minute are meaningful.
	Hora time.Time `json:"hora" db:"hora"`
	Aula string    `json:"aula" db:"aula"`
}

func (h *Horario) HoraDisplay() string {
	return h.Hora.Format("15:04")
}

// OrdenarHorarios sorts by weekday, then time of day.
func OrdenarHorarios(hs []Horario) {
	sort.SliceStable(hs, func(i, j int) bool {
		oi, oj := hs[i].Dia.Orden(), hs[j].Dia.Orden()
		if oi != oj {
			return oi < oj
		}
		return clock(hs[i].Hora) < clock(hs[j].Hora)
	})
}

func clock(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
