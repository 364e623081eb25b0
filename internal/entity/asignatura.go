package entity

import "fmt"

type Asignatura struct {
	ID       int64  `json:"id" db:"id"`
	Codigo   string `json:"codigo" db:"codigo"`
	Nombre   string `json:"nombre" db:"nombre"`
	Creditos int    `json:"creditos" db:"creditos"`
	Profesor string `json:"profesor" db:"profesor"`
}

func (a *Asignatura) String() string {
	return fmt.Sprintf("%s - %s", a.Codigo, a.Nombre)
}
