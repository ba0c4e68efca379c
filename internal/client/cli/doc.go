// Package cli implements the interactive tubeaccounts client: a small REPL
// for registering, logging in and managing the current session.
//
// The session (tokens and username) is kept in a local bbolt file, so a
// restarted client resumes where it left off. Passwords are read without
// echo.
package cli
