package plan

import (
	"fmt"
	"slices"
	"strings"
)

// Severity grades a detected gait problem.
type Severity string

const (
	Severe   Severity = "severe"
	Moderate Severity = "moderate"
	Mild     Severity = "mild"
)

// Problem categories, in priority order.
const (
	CategorySpeedRhythm     = "Speed & Rhythm"
	CategoryBalanceSymmetry = "Balance & Symmetry"
	CategoryGaitPattern     = "Gait Pattern"
)

// Problem is a gait abnormality detected by the analysis backend. Plans
// carry the problems their exercises target.
type Problem struct {
	Problem              string   `json:"problem"`
	Severity             Severity `json:"severity"`
	Category             string   `json:"category"`
	CurrentValue         float64  `json:"current_value"`
	NormalRange          string   `json:"normal_range,omitempty"`
	Percentile           int      `json:"percentile,omitempty"`
	Description          string   `json:"description"`
	Impact               string   `json:"impact,omitempty"`
	ClinicalSignificance string   `json:"clinical_significance,omitempty"`
	Recommendations      []string `json:"recommendations,omitempty"`
}

var (
	severityRank = map[Severity]int{Severe: 0, Moderate: 1, Mild: 2}
	categoryRank = map[string]int{CategorySpeedRhythm: 0, CategoryBalanceSymmetry: 1, CategoryGaitPattern: 2}
)

func rank[K comparable](m map[K]int, k K) int {
	if r, ok := m[k]; ok {
		return r
	}
	return 99
}

// PrioritizeProblems returns a copy of problems ordered by severity, then by
// category. Unknown severities and categories sort last; ties keep their
// input order.
func PrioritizeProblems(problems []Problem) []Problem {
	out := slices.Clone(problems)
	slices.SortStableFunc(out, func(a, b Problem) int {
		if sa, sb := rank(severityRank, a.Severity), rank(severityRank, b.Severity); sa != sb {
			return sa - sb
		}
		return rank(categoryRank, a.Category) - rank(categoryRank, b.Category)
	})
	return out
}

// Summary is the clinical overview of a set of problems.
type Summary struct {
	OverallStatus   string   `json:"overall_status"`
	RiskLevel       string   `json:"risk_level"`
	TotalProblems   int      `json:"total_problems"`
	SevereCount     int      `json:"severe_count"`
	ModerateCount   int      `json:"moderate_count"`
	Summary         string   `json:"summary"`
	PrimaryConcerns []string `json:"primary_concerns"`
}

// SummarizeProblems grades the overall risk:
// two or more severe problems need immediate attention; one severe or three
// moderate need attention; anything else needs improvement.
func SummarizeProblems(problems []Problem) Summary {
	if len(problems) == 0 {
		return Summary{
			OverallStatus:   "normal",
			RiskLevel:       "low",
			Summary:         "Your gait parameters are within normal ranges. Continue regular physical activity to maintain mobility.",
			PrimaryConcerns: []string{},
		}
	}

	ordered := PrioritizeProblems(problems)
	s := Summary{TotalProblems: len(ordered)}
	for _, p := range ordered {
		switch p.Severity {
		case Severe:
			s.SevereCount++
		case Moderate:
			s.ModerateCount++
		}
	}

	switch {
	case s.SevereCount >= 2:
		s.RiskLevel, s.OverallStatus = "high", "needs_immediate_attention"
	case s.SevereCount >= 1 || s.ModerateCount >= 3:
		s.RiskLevel, s.OverallStatus = "moderate", "needs_attention"
	default:
		s.RiskLevel, s.OverallStatus = "low_moderate", "needs_improvement"
	}

	for _, p := range ordered[:min(3, len(ordered))] {
		s.PrimaryConcerns = append(s.PrimaryConcerns, p.Description)
	}
	s.Summary = fmt.Sprintf("Detected %d gait abnormality(ies): %d severe, %d moderate. Physical therapy focusing on %s is recommended.",
		s.TotalProblems, s.SevereCount, s.ModerateCount, strings.ToLower(ordered[0].Category))
	return s
}
