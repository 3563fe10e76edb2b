package entities

import (
	"errors"
	"strings"
	"time"
)

// User represents an account listed by the users API
type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"-"`
}

// Validate checks the fields required to create a user
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}
