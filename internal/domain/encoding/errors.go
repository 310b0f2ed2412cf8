package encoding

import (
	"errors"
	"fmt"
)

// Sentinel kinds for encoding errors.
var (
	ErrUnknownLabel  = errors.New("unknown category label")
	ErrUnknownSkin   = errors.New("unknown skin")
	ErrInvalidTable  = errors.New("invalid category table")
	ErrInvalidSkin   = errors.New("invalid skin")
	ErrDuplicateSkin = errors.New("duplicate skin")
)

// UnknownLabelError is returned when a selection is not a key of its table.
type UnknownLabelError struct {
	Field string
	Label string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("unknown label %q for field %s", e.Label, e.Field)
}

// Is lets callers match with errors.Is(err, ErrUnknownLabel).
func (e *UnknownLabelError) Is(target error) bool { return target == ErrUnknownLabel }
