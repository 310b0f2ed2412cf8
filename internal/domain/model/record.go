// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Feature names as the classifier expects them.
const (
	FeatureAge                     = "Age"
	FeatureDailyRate               = "DailyRate"
	FeatureDistanceFromHome        = "DistanceFromHome"
	FeatureEducation               = "Education"
	FeatureEnvironmentSatisfaction = "EnvironmentSatisfaction"
	FeatureJobInvolvement          = "JobInvolvement"
	FeatureJobLevel                = "JobLevel"
	FeatureJobSatisfaction         = "JobSatisfaction"
	FeatureMonthlyIncome           = "MonthlyIncome"
	FeatureNumCompaniesWorked      = "NumCompaniesWorked"
	FeaturePercentSalaryHike       = "PercentSalaryHike"
	FeaturePerformanceRating       = "PerformanceRating"
	FeatureTotalWorkingYears       = "TotalWorkingYears"
	FeatureWorkLifeBalance         = "WorkLifeBalance"
	FeatureYearsAtCompany          = "YearsAtCompany"
)

// Features lists every model input in canonical order.
var Features = []string{
	FeatureAge,
	FeatureDailyRate,
	FeatureDistanceFromHome,
	FeatureEducation,
	FeatureEnvironmentSatisfaction,
	FeatureJobInvolvement,
	FeatureJobLevel,
	FeatureJobSatisfaction,
	FeatureMonthlyIncome,
	FeatureNumCompaniesWorked,
	FeaturePercentSalaryHike,
	FeaturePerformanceRating,
	FeatureTotalWorkingYears,
	FeatureWorkLifeBalance,
	FeatureYearsAtCompany,
}

// Range documents the accepted bounds and the form default of a feature.
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// Ranges must agree with the validate tags on EmployeeRecord.
var Ranges = map[string]Range{
	FeatureAge:                     {Min: 18, Max: 60, Default: 30},
	FeatureDailyRate:               {Min: 100, Max: 2000, Default: 800},
	FeatureDistanceFromHome:        {Min: 0, Max: 50, Default: 5},
	FeatureEducation:               {Min: 1, Max: 5, Default: 1},
	FeatureEnvironmentSatisfaction: {Min: 1, Max: 4, Default: 1},
	FeatureJobInvolvement:          {Min: 1, Max: 4, Default: 1},
	FeatureJobLevel:                {Min: 1, Max: 5, Default: 1},
	FeatureJobSatisfaction:         {Min: 1, Max: 4, Default: 1},
	FeatureMonthlyIncome:           {Min: 1000, Max: 50000, Default: 5000},
	FeatureNumCompaniesWorked:      {Min: 0, Max: 10, Default: 1},
	FeaturePercentSalaryHike:       {Min: 5, Max: 30, Default: 13},
	FeaturePerformanceRating:       {Min: 1, Max: 4, Default: 1},
	FeatureTotalWorkingYears:       {Min: 0, Max: 40, Default: 8},
	FeatureWorkLifeBalance:         {Min: 1, Max: 4, Default: 1},
	FeatureYearsAtCompany:          {Min: 0, Max: 40, Default: 5},
}

// EmployeeRecord is the full feature vector sent to the classifier.
// Its JSON form is the flat {feature: number} mapping the endpoint accepts.
type EmployeeRecord struct {
	Age                     float64 `json:"Age" validate:"gte=18,lte=60"`
	DailyRate               float64 `json:"DailyRate" validate:"gte=100,lte=2000"`
	DistanceFromHome        float64 `json:"DistanceFromHome" validate:"gte=0,lte=50"`
	Education               float64 `json:"Education" validate:"gte=1,lte=5"`
	EnvironmentSatisfaction float64 `json:"EnvironmentSatisfaction" validate:"gte=1,lte=4"`
	JobInvolvement          float64 `json:"JobInvolvement" validate:"gte=1,lte=4"`
	JobLevel                float64 `json:"JobLevel" validate:"gte=1,lte=5"`
	JobSatisfaction         float64 `json:"JobSatisfaction" validate:"gte=1,lte=4"`
	MonthlyIncome           float64 `json:"MonthlyIncome" validate:"gte=1000,lte=50000"`
	NumCompaniesWorked      float64 `json:"NumCompaniesWorked" validate:"gte=0,lte=10"`
	PercentSalaryHike       float64 `json:"PercentSalaryHike" validate:"gte=5,lte=30"`
	PerformanceRating       float64 `json:"PerformanceRating" validate:"gte=1,lte=4"`
	TotalWorkingYears       float64 `json:"TotalWorkingYears" validate:"gte=0,lte=40"`
	WorkLifeBalance         float64 `json:"WorkLifeBalance" validate:"gte=1,lte=4"`
	YearsAtCompany          float64 `json:"YearsAtCompany" validate:"gte=0,lte=40"`
}

// DefaultRecord returns a record holding every documented default.
func DefaultRecord() EmployeeRecord {
	var r EmployeeRecord
	for name, rng := range Ranges {
		r.Set(name, rng.Default)
	}
	return r
}

func (r *EmployeeRecord) slots() map[string]*float64 {
	return map[string]*float64{
		FeatureAge:                     &r.Age,
		FeatureDailyRate:               &r.DailyRate,
		FeatureDistanceFromHome:        &r.DistanceFromHome,
		FeatureEducation:               &r.Education,
		FeatureEnvironmentSatisfaction: &r.EnvironmentSatisfaction,
		FeatureJobInvolvement:          &r.JobInvolvement,
		FeatureJobLevel:                &r.JobLevel,
		FeatureJobSatisfaction:         &r.JobSatisfaction,
		FeatureMonthlyIncome:           &r.MonthlyIncome,
		FeatureNumCompaniesWorked:      &r.NumCompaniesWorked,
		FeaturePercentSalaryHike:       &r.PercentSalaryHike,
		FeaturePerformanceRating:       &r.PerformanceRating,
		FeatureTotalWorkingYears:       &r.TotalWorkingYears,
		FeatureWorkLifeBalance:         &r.WorkLifeBalance,
		FeatureYearsAtCompany:          &r.YearsAtCompany,
	}
}

// Set assigns a feature by name. It reports false for unknown names.
func (r *EmployeeRecord) Set(name string, v float64) bool {
	slot, ok := r.slots()[name]
	if !ok {
		return false
	}
	*slot = v
	return true
}

// Get reads a feature by name.
func (r EmployeeRecord) Get(name string) (float64, bool) {
	slot, ok := r.slots()[name]
	if !ok {
		return 0, false
	}
	return *slot, true
}

// RecordFromMap builds a record from a complete feature mapping.
// Keys outside Features are ignored; missing keys are an error.
func RecordFromMap(values map[string]float64) (EmployeeRecord, error) {
	var r EmployeeRecord
	var missing []string
	for _, name := range Features {
		v, ok := values[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		r.Set(name, v)
	}
	if len(missing) > 0 {
		return EmployeeRecord{}, &InvalidRecordError{Fields: missing, Reason: "missing"}
	}
	return r, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks every feature against its documented range.
func (r EmployeeRecord) Validate() error {
	err := recordValidator().Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate record: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	sort.Strings(fields)
	return &InvalidRecordError{Fields: fields, Reason: "out of range"}
}

// InvalidRecordError reports features that are missing or out of range.
type InvalidRecordError struct {
	Fields []string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid employee record: %s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

// Is lets callers match with errors.Is(err, ErrInvalidRecord).
func (e *InvalidRecordError) Is(target error) bool { return target == ErrInvalidRecord }
