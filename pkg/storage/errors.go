package storage

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported storage type")
	ErrInvalidID       = errors.New("invalid ID")
)
