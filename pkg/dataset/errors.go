package dataset

import "errors"

var (
	// ErrDataInvariant indicates that a sample matrix cannot be cut into whole
	// windows.
	ErrDataInvariant = errors.New("sample count is not an exact multiple of the window size")
	ErrInvalidColumn = errors.New("invalid column")
	ErrInvalidConfig = errors.New("invalid dataset config")
)
