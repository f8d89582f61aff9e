package product

import "errors"

var (
	ErrValidation      = errors.New("validation error")
	ErrProductNotFound = errors.New("product not found")
	ErrProductExists   = errors.New("product already exists")
	ErrInvalidImage    = errors.New("invalid image")
)
