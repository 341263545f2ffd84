package plan

import (
	"context"
	"fmt"
	"sync"

	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/monitoring"
)

// Service is the remote plan store. Mutating calls must succeed before the
// Tracker changes its local copy.
type Service interface {
	Today(ctx context.Context) (*Plan, error)
	Get(ctx context.Context, planID string) (*Plan, error)
	CompleteExercise(ctx context.Context, planID, exerciseID string, rating *int, notes string) error
	UndoExercise(ctx context.Context, planID, exerciseID string) error
	CompleteAll(ctx context.Context, planID string) error
}

// Tracker owns one plan and applies completion changes to it. It is safe for
// concurrent use.
type Tracker struct {
	mu   sync.Mutex
	plan *Plan
	svc  Service
}

// NewTracker tracks a copy of p. svc may be nil for a purely local plan.
func NewTracker(p *Plan, svc Service) (*Tracker, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no plan to track", apperrors.ErrBadInput)
	}
	return &Tracker{plan: p.Clone(), svc: svc}, nil
}

// LoadTracker fetches a plan from svc and tracks it. An empty planID loads
// today's plan.
func LoadTracker(ctx context.Context, svc Service, planID string) (*Tracker, error) {
	var (
		p   *Plan
		err error
	)
	if planID == "" {
		p, err = svc.Today(ctx)
	} else {
		p, err = svc.Get(ctx, planID)
	}
	if err != nil {
		return nil, err
	}
	return NewTracker(p, svc)
}

// Plan returns a snapshot of the tracked plan.
func (t *Tracker) Plan() *Plan {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.plan.Clone()
}

// MarkComplete completes an exercise with an optional 1-5 rating and notes.
// Completing an already completed exercise changes nothing, keeps the
// original rating and notes, and makes no remote call.
func (t *Tracker) MarkComplete(ctx context.Context, exerciseID string, rating *int, notes string) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return fmt.Errorf("%w: rating %d outside 1-5", apperrors.ErrBadInput, *rating)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.plan.indexOf(exerciseID)
	if i < 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrExerciseNotFound, exerciseID)
	}
	if t.plan.Exercises[i].Completed {
		return nil
	}

	if t.svc != nil {
		if err := t.svc.CompleteExercise(ctx, t.plan.ID, exerciseID, rating, notes); err != nil {
			return fmt.Errorf("complete exercise %s: %w", exerciseID, err)
		}
	}

	ex := &t.plan.Exercises[i]
	ex.Completed = true
	if rating != nil {
		r := *rating
		ex.Rating = &r
	}
	ex.Notes = notes
	monitoring.Logf("plan %s: exercise %s completed (%d/%d)", t.plan.ID, exerciseID, t.plan.CompletedCount(), t.plan.TotalCount())
	return nil
}

// UndoComplete reverts an exercise to not completed and clears its rating
// and notes. Undoing an incomplete exercise is a no-op.
func (t *Tracker) UndoComplete(ctx context.Context, exerciseID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.plan.indexOf(exerciseID)
	if i < 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrExerciseNotFound, exerciseID)
	}
	if !t.plan.Exercises[i].Completed {
		return nil
	}

	if t.svc != nil {
		if err := t.svc.UndoExercise(ctx, t.plan.ID, exerciseID); err != nil {
			return fmt.Errorf("undo exercise %s: %w", exerciseID, err)
		}
	}

	ex := &t.plan.Exercises[i]
	ex.Completed = false
	ex.Rating = nil
	ex.Notes = ""
	return nil
}

// MarkAllComplete completes every exercise in one step. Ratings and notes
// already recorded are kept.
func (t *Tracker) MarkAllComplete(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.svc != nil {
		if err := t.svc.CompleteAll(ctx, t.plan.ID); err != nil {
			return fmt.Errorf("complete plan %s: %w", t.plan.ID, err)
		}
	}

	for i := range t.plan.Exercises {
		t.plan.Exercises[i].Completed = true
	}
	monitoring.Logf("plan %s: all %d exercises completed, gait retest unlocked", t.plan.ID, t.plan.TotalCount())
	return nil
}

// CanRetestGait reports whether the plan unlocks a new gait recording.
func (t *Tracker) CanRetestGait() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.plan.CanRetestGait()
}
