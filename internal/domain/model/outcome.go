package model

import (
	"fmt"
	"strings"
)

// Outcome is the binary attrition label produced by the classifier.
type Outcome string

const (
	OutcomeYes Outcome = "Yes"
	OutcomeNo  Outcome = "No"
)

// LabelColumn is the dataset column and response field carrying the outcome.
const LabelColumn = "Attrition"

// ParseOutcome accepts "Yes" or "No", ignoring case and surrounding space.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return OutcomeYes, nil
	case "no":
		return OutcomeNo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, s)
	}
}

// Binary maps Yes to 1 and No to 0.
func (o Outcome) Binary() int {
	if o == OutcomeYes {
		return 1
	}
	return 0
}

func (o Outcome) String() string { return string(o) }
