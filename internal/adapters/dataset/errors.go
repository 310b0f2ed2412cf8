package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for dataset errors.
var (
	ErrEmptyDataset       = errors.New("dataset has no header row")
	ErrMissingLabelColumn = errors.New("dataset has no Attrition column")
	ErrMissingFeature     = errors.New("dataset is missing feature columns")
	ErrInvalidRow         = errors.New("invalid dataset row")
)

// MissingLabelColumnError is returned when the ground-truth column is absent.
type MissingLabelColumnError struct {
	Column string
}

func (e *MissingLabelColumnError) Error() string {
	return fmt.Sprintf("CSV must contain %q column", e.Column)
}

// Is lets callers match with errors.Is(err, ErrMissingLabelColumn).
func (e *MissingLabelColumnError) Is(target error) bool { return target == ErrMissingLabelColumn }

// MissingFeatureColumnError lists feature columns absent from the header.
type MissingFeatureColumnError struct {
	Columns []string
}

func (e *MissingFeatureColumnError) Error() string {
	return "CSV is missing feature columns: " + strings.Join(e.Columns, ", ")
}

// Is lets callers match with errors.Is(err, ErrMissingFeature).
func (e *MissingFeatureColumnError) Is(target error) bool { return target == ErrMissingFeature }

// RowError describes why one data row cannot be scored.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// Is lets callers match with errors.Is(err, ErrInvalidRow).
func (e *RowError) Is(target error) bool { return target == ErrInvalidRow }
