package entity

import "time"

// StudentSession is the identity carried by an authenticated portal session.
type StudentSession struct {
	EstudianteID int64
	Nombre       string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

func (s *StudentSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
