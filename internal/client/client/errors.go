package client

import "errors"

var (
	ErrUnavailable     = errors.New("server unavailable")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrAlreadyExists   = errors.New("username or email is taken")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTooManyAttempts = errors.New("too many attempts, try again later")
	ErrNotLoggedIn     = errors.New("not logged in")
)
