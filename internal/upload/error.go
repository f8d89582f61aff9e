package upload

import "errors"

var (
	ErrInvalidArchive = errors.New("invalid zip archive")
	ErrJobNotFound    = errors.New("upload job not found")
)
