package domain

import "strings"

// Grade is a fuel product. The set is closed; see Grades.
type Grade string

const (
	GradeUnleaded95 Grade = "UNLEADED 95"
	GradeDiesel50   Grade = "DIESEL 50PPM"
)

// GradeInfo carries the codes and persisted column names for a grade.
type GradeInfo struct {
	Grade           Grade
	Code            string
	RateName        string
	OpeningColumn   string
	ClosingColumn   string
	DispensedColumn string
	RateUsedColumn  string
}

// Grades is ordered; report lines and exports follow this order.
var Grades = []GradeInfo{
	{
		Grade:           GradeUnleaded95,
		Code:            "01",
		RateName:        "rate_r22_12",
		OpeningColumn:   "unleaded_95_opening",
		ClosingColumn:   "unleaded_95_closing",
		DispensedColumn: "dispensed_ulp_95",
		RateUsedColumn:  "rate_ulp_95_used",
	},
	{
		Grade:           GradeDiesel50,
		Code:            "02",
		RateName:        "rate_r23_36",
		OpeningColumn:   "diesel_50_opening",
		ClosingColumn:   "diesel_50_closing",
		DispensedColumn: "dispensed_d50",
		RateUsedColumn:  "rate_d50_used",
	},
}

func LookupGrade(grade Grade) (GradeInfo, bool) {
	for _, info := range Grades {
		if info.Grade == grade {
			return info, true
		}
	}
	return GradeInfo{}, false
}

// ClassifyFuel maps a pump grade code or an item name to a grade. Anything it
// cannot place is non-fuel.
func ClassifyFuel(gradeCode string, itemName string) (Grade, bool) {
	switch strings.TrimSpace(gradeCode) {
	case "01":
		return GradeUnleaded95, true
	case "02":
		return GradeDiesel50, true
	}

	name := strings.ToUpper(itemName)
	switch {
	case strings.Contains(name, "DIESEL"):
		return GradeDiesel50, true
	case strings.Contains(name, "UNLEADED"), strings.Contains(name, "ULP"):
		return GradeUnleaded95, true
	default:
		return "", false
	}
}
