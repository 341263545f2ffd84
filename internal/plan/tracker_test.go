package plan

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/monitoring"
)

type fakeService struct {
	plan  *Plan
	calls []string
	err   error
}

func (f *fakeService) Today(context.Context) (*Plan, error) {
	f.calls = append(f.calls, "today")
	if f.plan == nil {
		return nil, f.err
	}
	return f.plan.Clone(), f.err
}

func (f *fakeService) Get(_ context.Context, id string) (*Plan, error) {
	f.calls = append(f.calls, "get "+id)
	if f.err != nil {
		return nil, f.err
	}
	return f.plan.Clone(), nil
}

func (f *fakeService) CompleteExercise(_ context.Context, planID, exerciseID string, _ *int, _ string) error {
	f.calls = append(f.calls, "complete "+planID+"/"+exerciseID)
	return f.err
}

func (f *fakeService) UndoExercise(_ context.Context, planID, exerciseID string) error {
	f.calls = append(f.calls, "undo "+planID+"/"+exerciseID)
	return f.err
}

func (f *fakeService) CompleteAll(_ context.Context, planID string) error {
	f.calls = append(f.calls, "complete-all "+planID)
	return f.err
}

func intPtr(v int) *int { return &v }

func track(t *testing.T, p *Plan, svc Service) *Tracker {
	t.Helper()
	tr, err := NewTracker(p, svc)
	require.NoError(t, err)
	return tr
}

func TestTracker_MarkAllCompleteOnSeven(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	tr := track(t, newPlan(7), nil)

	require.NoError(t, tr.MarkAllComplete(context.Background()))

	p := tr.Plan()
	assert.Equal(t, 7, p.CompletedCount())
	assert.Equal(t, 100, p.CompletionPercentage())
	assert.True(t, p.CanRetestGait())
	assert.True(t, tr.CanRetestGait())
}

func TestTracker_MarkCompleteIsIdempotent(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	svc := &fakeService{}
	tr := track(t, newPlan(3), svc)
	ctx := context.Background()

	require.NoError(t, tr.MarkComplete(ctx, "ex-2", intPtr(4), "felt easy"))
	require.NoError(t, tr.MarkComplete(ctx, "ex-2", intPtr(1), "second try"))

	ex := tr.Plan().Exercises[1]
	assert.True(t, ex.Completed)
	require.NotNil(t, ex.Rating)
	assert.Equal(t, 4, *ex.Rating, "first rating is kept")
	assert.Equal(t, "felt easy", ex.Notes)
	assert.Equal(t, []string{"complete plan-1/ex-2"}, svc.calls, "no remote call for an already completed exercise")
	assert.Equal(t, 33, tr.Plan().CompletionPercentage())
}

func TestTracker_UndoClearsRatingAndNotes(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	tr := track(t, newPlan(2), nil)
	ctx := context.Background()

	require.NoError(t, tr.MarkComplete(ctx, "ex-1", intPtr(5), "hard"))
	require.NoError(t, tr.UndoComplete(ctx, "ex-1"))

	ex := tr.Plan().Exercises[0]
	assert.False(t, ex.Completed)
	assert.Nil(t, ex.Rating)
	assert.Empty(t, ex.Notes)

	require.NoError(t, tr.UndoComplete(ctx, "ex-1"), "undo of an incomplete exercise is a no-op")
}

func TestTracker_UnknownExercise(t *testing.T) {
	svc := &fakeService{}
	tr := track(t, newPlan(2), svc)
	ctx := context.Background()

	assert.ErrorIs(t, tr.MarkComplete(ctx, "nope", nil, ""), apperrors.ErrExerciseNotFound)
	assert.ErrorIs(t, tr.UndoComplete(ctx, "nope"), apperrors.ErrExerciseNotFound)
	assert.Empty(t, svc.calls, "local id check happens before any remote call")
}

func TestTracker_RejectsOutOfRangeRating(t *testing.T) {
	tr := track(t, newPlan(1), nil)
	err := tr.MarkComplete(context.Background(), "ex-1", intPtr(6), "")
	assert.ErrorIs(t, err, apperrors.ErrBadInput)
	assert.False(t, tr.Plan().Exercises[0].Completed)
}

func TestTracker_RemoteFailureLeavesLocalStateUntouched(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	svc := &fakeService{}
	tr := track(t, newPlan(3), svc)
	ctx := context.Background()
	require.NoError(t, tr.MarkComplete(ctx, "ex-3", nil, ""))

	svc.err = apperrors.ErrServiceUnavailable

	assert.ErrorIs(t, tr.MarkComplete(ctx, "ex-1", nil, ""), apperrors.ErrServiceUnavailable)
	assert.ErrorIs(t, tr.UndoComplete(ctx, "ex-3"), apperrors.ErrServiceUnavailable)
	assert.ErrorIs(t, tr.MarkAllComplete(ctx), apperrors.ErrServiceUnavailable)

	p := tr.Plan()
	assert.False(t, p.Exercises[0].Completed)
	assert.True(t, p.Exercises[2].Completed)
	assert.Equal(t, 1, p.CompletedCount())
	assert.False(t, p.CanRetestGait())
}

func TestTracker_PlanIsSnapshot(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	source := newPlan(2)
	tr := track(t, source, nil)

	snap := tr.Plan()
	snap.Exercises[0].Completed = true
	source.Exercises[1].Completed = true

	assert.Equal(t, 0, tr.Plan().CompletedCount())
}

func TestTracker_InvariantsAcrossOperationSequences(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for run := 0; run < 20; run++ {
		n := rng.Intn(8)
		tr := track(t, newPlan(n), &fakeService{})
		for step := 0; step < 30; step++ {
			id := "ex-" + string(rune('1'+rng.Intn(max(n, 1))))
			switch rng.Intn(3) {
			case 0:
				tr.MarkComplete(ctx, id, intPtr(1+rng.Intn(5)), "")
			case 1:
				tr.UndoComplete(ctx, id)
			case 2:
				if rng.Intn(5) == 0 {
					require.NoError(t, tr.MarkAllComplete(ctx))
				}
			}
			assertDerived(t, tr.Plan())
		}
	}
}

func TestLoadTracker(t *testing.T) {
	svc := &fakeService{plan: newPlan(2)}
	ctx := context.Background()

	tr, err := LoadTracker(ctx, svc, "")
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Plan().TotalCount())

	_, err = LoadTracker(ctx, svc, "plan-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"today", "get plan-9"}, svc.calls)

	svc.err = apperrors.ErrPlanNotFound
	_, err = LoadTracker(ctx, svc, "plan-9")
	assert.ErrorIs(t, err, apperrors.ErrPlanNotFound)
}

func TestTracker_NilPlan(t *testing.T) {
	_, err := NewTracker(nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrBadInput)

	_, err = LoadTracker(context.Background(), &fakeService{}, "")
	assert.ErrorIs(t, err, apperrors.ErrBadInput)
}

func TestLoadTracker_TracksCopy(t *testing.T) {
	svc := &fakeService{plan: newPlan(2)}
	tr, err := LoadTracker(context.Background(), svc, "")
	require.NoError(t, err)

	tr.plan.Exercises[0].Completed = true
	assert.False(t, svc.plan.Exercises[0].Completed)
}
