package admin

import (
	"errors"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserConflict       = errors.New("user already exists")
	ErrEventTypeConflict  = errors.New("event type already exists")
	ErrUserNotFound       = errors.New("user does not exist")
	ErrEventTypeNotFound  = errors.New("event type does not exist")
	ErrLinksNotConfigured = errors.New("hashed links are not configured")
)
