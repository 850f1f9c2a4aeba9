package entities

import "time"

type User struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	IsAdmin          bool      `json:"is_admin"`
	CreatedTimestamp time.Time `json:"created_timestamp"`
}
