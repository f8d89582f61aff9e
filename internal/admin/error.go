package admin

import "errors"

var (
	ErrAdminNotFound  = errors.New("admin not found")
	ErrNotRegistered  = errors.New("account is authenticated but not registered as an admin")
	ErrUIDConflict    = errors.New("account email is linked to a different identity")
	ErrEmailExists    = errors.New("admin with this email already exists")
	ErrUsernameExists = errors.New("admin with this username already exists")
	ErrSelfDelete     = errors.New("admins cannot delete their own account")
	ErrValidation     = errors.New("validation error")
)
