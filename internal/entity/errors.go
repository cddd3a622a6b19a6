package entity

import "errors"

var (
	ErrInvalidAppIdentifier = errors.New("invalid app identifier")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidAuthMethod    = errors.New("invalid auth method")
	ErrInvalidProvider      = errors.New("invalid oauth provider")
	ErrPasswordRequired     = errors.New("password required for email-password registrations")
	ErrAlreadyRegistered    = errors.New("user already registered for this app")
	ErrRegistrationNotFound = errors.New("app registration not found")
)
