package model

import "time"

type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Confirmed reports whether the user has completed email confirmation.
func (u *User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}
