package local

import "errors"

var (
	// ErrInvalidKey is returned when a key cannot be used as a file name
	ErrInvalidKey = errors.New("invalid key")
)
