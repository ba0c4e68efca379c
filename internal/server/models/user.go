package models

import "time"

// User is a stored account identity. RefreshToken holds the single active
// refresh token, or "" when the identity has no live session.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Public returns a copy with the password hash and refresh token removed.
func (u *User) Public() *User {
	c := *u
	c.PasswordHash = ""
	c.RefreshToken = ""
	return &c
}
