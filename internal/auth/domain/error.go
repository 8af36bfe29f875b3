package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrWeakPassword       = errors.New("password_too_short")
	ErrInvalidGlobalRole  = errors.New("invalid_global_role")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrUserExists         = errors.New("user_already_exists")
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrSessionExpired     = errors.New("session_expired")
	ErrSessionRevoked     = errors.New("session_revoked")
	ErrInvalidSession     = errors.New("invalid_session")
)
