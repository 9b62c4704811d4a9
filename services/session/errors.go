package session

import (
	"errors"
	"fmt"

	"flexify/models"
)

var (
	// ErrSessionExpired is returned when a call stays unauthorized after one
	// refresh and retry. The session has already been torn down.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoRefreshToken means the session cannot be renewed.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrNotAuthenticated means there is no active session.
	ErrNotAuthenticated = errors.New("not signed in")

	// errSessionChanged means the session was replaced or ended while a
	// refresh was in flight. The new session must not be torn down for it.
	errSessionChanged = errors.New("session changed during refresh")
)

// AuthError is a login or refresh failure. Message is fit for a form-level
// error display.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// RoleMismatchError is returned when an account logs in through another
// role's login form.
type RoleMismatchError struct {
	Expected models.Role
	Actual   models.Role
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("You are a %s. Please use the %s login page.", e.Actual, e.Actual)
}
