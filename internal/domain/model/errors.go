package model

import "errors"

// Sentinel kinds for model errors.
var (
	ErrInvalidRecord  = errors.New("invalid employee record")
	ErrUnknownOutcome = errors.New("unknown attrition outcome")
)
