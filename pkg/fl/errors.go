package fl

import "errors"

var (
	ErrNoUpdates       = errors.New("no updates provided for aggregation")
	ErrShapeMismatch   = errors.New("updates disagree on tensor layout")
	ErrOverflow        = errors.New("sample count overflow during aggregation")
	ErrInvalidRound    = errors.New("round numbers start at 1")
	ErrInvalidDetector = errors.New("invalid detector name")
)
