// Package encoding maps human-readable category selections to the ordinal
// codes the attrition classifier expects.
package encoding

import (
	"fmt"
	"strings"
)

// CategoryTable maps an ordered set of labels to codes 1..n.
// The zero value is an empty table; tables are never mutated after creation.
type CategoryTable struct {
	field  string
	labels []string
	codes  map[string]int
}

// NewCategoryTable builds a table whose i-th label encodes to i+1.
func NewCategoryTable(field string, labels ...string) (CategoryTable, error) {
	if field == "" {
		return CategoryTable{}, fmt.Errorf("%w: empty field name", ErrInvalidTable)
	}
	if len(labels) == 0 {
		return CategoryTable{}, fmt.Errorf("%w: %s has no labels", ErrInvalidTable, field)
	}
	t := CategoryTable{
		field:  field,
		labels: make([]string, len(labels)),
		codes:  make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return CategoryTable{}, fmt.Errorf("%w: %s has an empty label", ErrInvalidTable, field)
		}
		if _, dup := t.codes[l]; dup {
			return CategoryTable{}, fmt.Errorf("%w: %s repeats label %q", ErrInvalidTable, field, l)
		}
		t.labels[i] = l
		t.codes[l] = i + 1
	}
	return t, nil
}

// MustCategoryTable is NewCategoryTable for package-level literals.
func MustCategoryTable(field string, labels ...string) CategoryTable {
	t, err := NewCategoryTable(field, labels...)
	if err != nil {
		panic(err)
	}
	return t
}

// Field returns the feature the table encodes.
func (t CategoryTable) Field() string { return t.field }

// Len returns the number of labels, which is also the highest code.
func (t CategoryTable) Len() int { return len(t.labels) }

// Labels returns a copy of the labels in code order.
func (t CategoryTable) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Label returns the label for code, if any.
func (t CategoryTable) Label(code int) (string, bool) {
	if code < 1 || code > len(t.labels) {
		return "", false
	}
	return t.labels[code-1], true
}

// Encode returns the code for label or an UnknownLabelError.
func Encode(t CategoryTable, label string) (int, error) {
	code, ok := t.codes[strings.TrimSpace(label)]
	if !ok {
		return 0, &UnknownLabelError{Field: t.field, Label: label}
	}
	return code, nil
}
