package entity

import "fmt"

type Estudiante struct {
	ID        int64  `json:"id" db:"id"`
	Nombre    string `json:"nombre" db:"nombre"`
	Apellido  string `json:"apellido" db:"apellido"`
	Matricula string `json:"matricula" db:"matricula"`
	Carrera   string `json:"carrera" db:"carrera"`
	Correo    string `json:"correo" db:"correo"`
	// Clave holds the password hash; empty means login is disabled.
	Clave string `json:"-" db:"clave"`
}

func (e *Estudiante) FullName() string {
	return e.Nombre + " " + e.Apellido
}

func (e *Estudiante) HasClave() bool {
	return e.Clave != ""
}

func (e *Estudiante) String() string {
	return fmt.Sprintf("%s %s (%s)", e.Nombre, e.Apellido, e.Matricula)
}
