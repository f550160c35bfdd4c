package model

import (
	"time"

	"plugin-license-server/internal/domain"
)

// User owns licenses and subscriptions. Account CRUD lives in the storefront;
// this service only reads id/email.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

func NewUser(id, email, name string) (*User, error) {
	if id == "" || email == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{ID: id, Email: email, Name: name, CreatedAt: time.Now()}, nil
}
