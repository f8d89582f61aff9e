package client

import "errors"

var (
	ErrClientNotFound     = errors.New("client not found")
	ErrEmailExists        = errors.New("client with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation error")
)
