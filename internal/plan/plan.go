// Package plan tracks progress through a daily exercise plan and unlocks the
// gait retest once every exercise is done.
package plan

import (
	"encoding/json"
	"math"
)

// Exercise is one item of a plan.
type Exercise struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	TargetProblem string `json:"target_problem,omitempty"`
	Completed     bool   `json:"completed"`
	// Rating is the user's 1-5 difficulty rating, set on completion.
	Rating *int   `json:"rating,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// Plan is a day's exercise plan. Completion figures are derived from the
// exercise list on demand and are never stored.
type Plan struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id,omitempty"`
	Date             string     `json:"date"`
	Exercises        []Exercise `json:"exercises"`
	DetectedProblems []Problem  `json:"detected_problems,omitempty"`
}

func (p *Plan) CompletedCount() int {
	n := 0
	for _, e := range p.Exercises {
		if e.Completed {
			n++
		}
	}
	return n
}

func (p *Plan) TotalCount() int {
	return len(p.Exercises)
}

// CompletionPercentage is completed/total as a rounded percentage; an empty
// plan is 0%.
func (p *Plan) CompletionPercentage() int {
	total := p.TotalCount()
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(p.CompletedCount()) / float64(total) * 100))
}

// CanRetestGait reports whether every exercise is completed. An empty plan
// has nothing left to do and so unlocks the retest.
func (p *Plan) CanRetestGait() bool {
	return p.CompletedCount() == p.TotalCount()
}

// indexOf returns the index of the exercise with the given id, or -1.
func (p *Plan) indexOf(exerciseID string) int {
	for i := range p.Exercises {
		if p.Exercises[i].ID == exerciseID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of p.
func (p *Plan) Clone() *Plan {
	c := *p
	c.Exercises = make([]Exercise, len(p.Exercises))
	for i, e := range p.Exercises {
		if e.Rating != nil {
			r := *e.Rating
			e.Rating = &r
		}
		c.Exercises[i] = e
	}
	c.DetectedProblems = append([]Problem(nil), p.DetectedProblems...)
	return &c
}

// MarshalJSON adds the derived completion fields to the encoded plan.
func (p Plan) MarshalJSON() ([]byte, error) {
	type plain Plan
	return json.Marshal(struct {
		plain
		CompletedCount       int  `json:"completed_count"`
		TotalCount           int  `json:"total_count"`
		CompletionPercentage int  `json:"completion_percentage"`
		CanRetestGait        bool `json:"can_retest_gait"`
	}{
		plain:                plain(p),
		CompletedCount:       p.CompletedCount(),
		TotalCount:           p.TotalCount(),
		CompletionPercentage: p.CompletionPercentage(),
		CanRetestGait:        p.CanRetestGait(),
	})
}
