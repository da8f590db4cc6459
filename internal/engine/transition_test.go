package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard/internal/domain"
)

func pendingApp(at time.Time) domain.Application {
	return domain.Application{
		ID:            "a1",
		Status:        domain.StatusPending,
		StatusHistory: domain.Start("u1", at),
	}
}

func TestApplyTransitionAppends(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	app := pendingApp(t0)

	next, change, err := ApplyTransition(app, domain.StatusReviewing, "e1", t1)
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.Equal(t, domain.StatusReviewing, next.Status)
	require.Len(t, next.StatusHistory, 2)
	assert.Equal(t, 2, change.Seq)
	assert.Equal(t, domain.StatusPending, *change.PreviousStatus)
	assert.Equal(t, "e1", change.ChangedBy)
	require.NotNil(t, next.RespondedAt)
	assert.True(t, next.RespondedAt.Equal(t1))
	assert.True(t, next.StatusHistory.Consistent(next.Status))

	// the input is untouched
	assert.Len(t, app.StatusHistory, 1)
	assert.Equal(t, domain.StatusPending, app.Status)
	assert.Nil(t, app.RespondedAt)
}

func TestApplyTransitionSameStatusIsNoop(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	app := pendingApp(t0)
	responded := t0.Add(time.Minute)
	app.RespondedAt = &responded

	next, change, err := ApplyTransition(app, domain.StatusPending, "e1", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, change)
	assert.Len(t, next.StatusHistory, 1)
	assert.Equal(t, responded, *next.RespondedAt)
}

func TestApplyTransitionRejectsUnknownStatus(t *testing.T) {
	_, _, err := ApplyTransition(pendingApp(time.Now()), domain.AppStatus("HIRED"), "e1", time.Now())
	var it InvalidTransitionError
	require.True(t, errors.As(err, &it))
	assert.Equal(t, "HIRED", it.To)
}

func TestAnyDifferentStatusIsAccepted(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	app := pendingApp(t0)
	for i, s := range []domain.AppStatus{domain.StatusRejected, domain.StatusReviewing, domain.StatusAccepted, domain.StatusWithdrawn, domain.StatusPending} {
		var err error
		app, _, err = ApplyTransition(app, s, "e1", t0.Add(time.Duration(i+1)*time.Minute))
		require.NoError(t, err)
		assert.True(t, app.StatusHistory.Consistent(app.Status))
	}
	assert.Len(t, app.StatusHistory, 6)
	for i, c := range app.StatusHistory {
		assert.Equal(t, i+1, c.Seq)
	}
}
