package timesheet

import "errors"

// Sentinel errors for handlers to map to HTTP statuses.
var (
	ErrValidation         = errors.New("validation failed")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrProjectNameTaken   = errors.New("project name already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrEntryNotFound      = errors.New("work entry not found")
	ErrSelfDelete         = errors.New("cannot delete your own account")
)
