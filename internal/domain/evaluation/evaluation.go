// Package evaluation computes classification-quality metrics for a batch
// of predicted and true attrition labels.
package evaluation

import (
	"fmt"
	"math"

	"github.com/okian/attrition/internal/domain/model"
)

// Confusion tallies predictions against ground truth, Yes being positive.
// Tallies are commutative: merging per-row counts in any order gives the
// same totals.
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// Add counts one predicted/actual pair.
func (c *Confusion) Add(predicted, actual model.Outcome) {
	switch p, a := predicted.Binary(), actual.Binary(); {
	case p == 1 && a == 1:
		c.TP++
	case p == 1 && a == 0:
		c.FP++
	case p == 0 && a == 0:
		c.TN++
	default:
		c.FN++
	}
}

// Merge returns the sum of two tallies.
func (c Confusion) Merge(o Confusion) Confusion {
	return Confusion{TP: c.TP + o.TP, FP: c.FP + o.FP, TN: c.TN + o.TN, FN: c.FN + o.FN}
}

// N is the number of pairs counted.
func (c Confusion) N() int { return c.TP + c.FP + c.TN + c.FN }

// Correct is the number of pairs where prediction matched truth.
func (c Confusion) Correct() int { return c.TP + c.TN }

// Result holds the four metrics at full precision.
// A metric whose denominator is zero is reported as 0 with its
// Undefined flag set.
type Result struct {
	Accuracy           float64   `json:"accuracy"`
	Precision          float64   `json:"precision"`
	Recall             float64   `json:"recall"`
	F1                 float64   `json:"f1"`
	PrecisionUndefined bool      `json:"precision_undefined,omitempty"`
	RecallUndefined    bool      `json:"recall_undefined,omitempty"`
	N                  int       `json:"n"`
	Confusion          Confusion `json:"confusion"`
}

// Compute derives the metrics from a tally.
func Compute(c Confusion) Result {
	r := Result{N: c.N(), Confusion: c}
	if r.N > 0 {
		r.Accuracy = float64(c.Correct()) / float64(r.N)
	}

	if d := c.TP + c.FP; d > 0 {
		r.Precision = float64(c.TP) / float64(d)
	} else {
		r.PrecisionUndefined = true
	}

	if d := c.TP + c.FN; d > 0 {
		r.Recall = float64(c.TP) / float64(d)
	} else {
		r.RecallUndefined = true
	}

	if s := r.Precision + r.Recall; s > 0 {
		r.F1 = 2 * r.Precision * r.Recall / s
	}
	return r
}

// Rounded returns a copy with every metric rounded to two decimals for display.
func (r Result) Rounded() Result {
	r.Accuracy = Round2(r.Accuracy)
	r.Precision = Round2(r.Precision)
	r.Recall = Round2(r.Recall)
	r.F1 = Round2(r.F1)
	return r
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Format renders a metric to two decimals, or "n/a" when undefined.
func Format(v float64, undefined bool) string {
	if undefined {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
