package encoding

import "github.com/okian/attrition/internal/domain/model"

// Built-in skin names.
const (
	SkinDashboard = "dashboard"
	SkinClassic   = "classic"
	SkinCorporate = "corporate"
)

var baseLabels = map[string]string{
	model.FeatureAge:                     "Age",
	model.FeatureDailyRate:               "Daily Rate",
	model.FeatureDistanceFromHome:        "Distance From Home",
	model.FeatureEducation:               "Education",
	model.FeatureEnvironmentSatisfaction: "Environment Satisfaction",
	model.FeatureJobInvolvement:          "Job Involvement",
	model.FeatureJobLevel:                "Job Level",
	model.FeatureJobSatisfaction:         "Job Satisfaction",
	model.FeatureMonthlyIncome:           "Monthly Income",
	model.FeatureNumCompaniesWorked:      "Companies Worked",
	model.FeaturePercentSalaryHike:       "Salary Hike %",
	model.FeaturePerformanceRating:       "Performance Rating",
	model.FeatureTotalWorkingYears:       "Total Working Years",
	model.FeatureWorkLifeBalance:         "Work Life Balance",
	model.FeatureYearsAtCompany:          "Years At Company",
}

func labelsWith(overrides map[string]string) map[string]string {
	out := make(map[string]string, len(baseLabels))
	for k, v := range baseLabels {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// DashboardSkin uses descriptive wording for every tier.
func DashboardSkin() Skin {
	return Skin{
		Name:  SkinDashboard,
		Title: "Employee Attrition Prediction System",
		Labels: labelsWith(map[string]string{
			model.FeatureDistanceFromHome:   "Distance From Home (km)",
			model.FeatureEducation:          "Education Level",
			model.FeatureNumCompaniesWorked: "Number of Companies Worked",
			model.FeaturePercentSalaryHike:  "Percent Salary Hike (%)",
		}),
		Tables: map[string]CategoryTable{
			model.FeatureEducation:               MustCategoryTable(model.FeatureEducation, "Below College", "College", "Bachelor", "Master", "Doctor"),
			model.FeatureJobSatisfaction:         MustCategoryTable(model.FeatureJobSatisfaction, "Very Dissatisfied", "Dissatisfied", "Satisfied", "Very Satisfied"),
			model.FeatureEnvironmentSatisfaction: MustCategoryTable(model.FeatureEnvironmentSatisfaction, "Poor", "Average", "Good", "Excellent"),
			model.FeatureJobInvolvement:          MustCategoryTable(model.FeatureJobInvolvement, "Low", "Medium", "High", "Very High"),
			model.FeatureWorkLifeBalance:         MustCategoryTable(model.FeatureWorkLifeBalance, "Poor", "Fair", "Good", "Excellent"),
			model.FeaturePerformanceRating:       MustCategoryTable(model.FeaturePerformanceRating, "Low", "Good", "Excellent", "Outstanding"),
			model.FeatureJobLevel:                MustCategoryTable(model.FeatureJobLevel, "Entry", "Junior", "Mid", "Senior", "Manager"),
		},
	}
}

// ClassicSkin selects the raw ordinal codes directly.
func ClassicSkin() Skin {
	tables := make(map[string]CategoryTable, len(CategoricalFields))
	for _, field := range CategoricalFields {
		n := int(model.Ranges[field].Max)
		labels := make([]string, n)
		for i := range labels {
			labels[i] = string(rune('1' + i))
		}
		tables[field] = MustCategoryTable(field, labels...)
	}
	return Skin{
		Name:   SkinClassic,
		Title:  "Employee Attrition Prediction App",
		Labels: labelsWith(nil),
		Tables: tables,
	}
}

// CorporateSkin spells tiers out in long form.
func CorporateSkin() Skin {
	return Skin{
		Name:  SkinCorporate,
		Title: "Attrition Risk Assessment",
		Labels: labelsWith(map[string]string{
			model.FeatureDailyRate:         "Daily Rate (USD)",
			model.FeatureMonthlyIncome:     "Monthly Income (USD)",
			model.FeaturePercentSalaryHike: "Last Salary Increase (%)",
		}),
		Tables: map[string]CategoryTable{
			model.FeatureEducation:               MustCategoryTable(model.FeatureEducation, "Below College", "College Degree", "Bachelor's Degree", "Master's Degree", "Doctorate"),
			model.FeatureJobSatisfaction:         MustCategoryTable(model.FeatureJobSatisfaction, "Very Dissatisfied", "Somewhat Dissatisfied", "Somewhat Satisfied", "Very Satisfied"),
			model.FeatureEnvironmentSatisfaction: MustCategoryTable(model.FeatureEnvironmentSatisfaction, "Poor Environment", "Average Environment", "Good Environment", "Excellent Environment"),
			model.FeatureJobInvolvement:          MustCategoryTable(model.FeatureJobInvolvement, "Low Involvement", "Medium Involvement", "High Involvement", "Very High Involvement"),
			model.FeatureWorkLifeBalance:         MustCategoryTable(model.FeatureWorkLifeBalance, "Poor Balance", "Fair Balance", "Good Balance", "Excellent Balance"),
			model.FeaturePerformanceRating:       MustCategoryTable(model.FeaturePerformanceRating, "Needs Improvement", "Meets Expectations", "Exceeds Expectations", "Outstanding"),
			model.FeatureJobLevel:                MustCategoryTable(model.FeatureJobLevel, "Entry Level", "Junior Level", "Mid Level", "Senior Level", "Management"),
		},
	}
}

// BuiltinSkins returns fresh copies of every built-in skin.
func BuiltinSkins() []Skin {
	return []Skin{DashboardSkin(), ClassicSkin(), CorporateSkin()}
}
