package model

// Risk headlines shown for each outcome.
const (
	RiskLow  = "Low Attrition Risk"
	RiskHigh = "High Attrition Risk"
)

// Assessment is the user-facing reading of a prediction.
type Assessment struct {
	Outcome         Outcome  `json:"outcome"`
	Risk            string   `json:"risk"`
	Message         string   `json:"message"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// HighRisk reports whether the employee is predicted to leave.
func (a Assessment) HighRisk() bool { return a.Outcome == OutcomeYes }

// AssessmentFor turns an outcome into its headline, message and advice.
func AssessmentFor(o Outcome) Assessment {
	if o == OutcomeYes {
		return Assessment{
			Outcome: o,
			Risk:    RiskHigh,
			Message: "Immediate retention action recommended.",
			Recommendations: []string{
				"Improve job and environment satisfaction",
				"Review salary and benefits",
				"Provide training and growth opportunities",
				"Encourage work-life balance",
				"Conduct exit interviews and feedback sessions",
			},
		}
	}
	return Assessment{
		Outcome: OutcomeNo,
		Risk:    RiskLow,
		Message: "Employee is likely to stay.",
	}
}
