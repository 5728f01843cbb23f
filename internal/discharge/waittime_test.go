package discharge

import (
	"testing"
	"time"

	"wisefido-discharge-board/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brt São Paulo offset without DST, matches the hospital's local clock
var brt = time.FixedZone("BRT", -3*60*60)

func local(day, hour, minute, sec int) time.Time {
	// March 2024: the 11th is a Monday
	return time.Date(2024, 3, day, hour, minute, sec, 0, brt)
}

func TestComputeWaitTime_ClampsBeforeBase(t *testing.T) {
	got := ComputeWaitTime(local(11, 3, 0, 0), local(11, 4, 0, 0), brt)
	assert.Equal(t, WaitTimeResult{Hours: 0, Minutes: 0, IsOverdue: false}, got)
	assert.False(t, RequiresJustification(got))
}

func TestComputeWaitTime_OverdueThreshold(t *testing.T) {
	requested := local(11, 7, 0, 0)

	got := ComputeWaitTime(requested, local(11, 12, 0, 0), brt)
	assert.Equal(t, 5, got.Hours)
	assert.Equal(t, 0, got.Minutes)
	assert.True(t, got.IsOverdue)
	assert.True(t, RequiresJustification(got))

	got = ComputeWaitTime(requested, local(11, 11, 59, 59), brt)
	assert.Equal(t, WaitTimeResult{Hours: 4, Minutes: 59, IsOverdue: false}, got)
}

func TestComputeWaitTime_BaseIsRequestDayNotRequestInstant(t *testing.T) {
	// requested mid-afternoon, the clock still starts at 07:00 of that day
	got := ComputeWaitTime(local(11, 15, 0, 0), local(11, 15, 30, 0), brt)
	assert.Equal(t, 8, got.Hours)
	assert.Equal(t, 30, got.Minutes)
	assert.True(t, got.IsOverdue)
}

func TestComputeWaitTime_CrossesMidnight(t *testing.T) {
	// Monday 22:00 -> Tuesday 08:00
	got := ComputeWaitTime(local(11, 22, 0, 0), local(12, 8, 0, 0), brt)
	assert.Equal(t, 25, got.Hours)
	assert.Equal(t, 0, got.Minutes)
	assert.True(t, got.IsOverdue)
}

func TestComputeWaitTime_UsesReferenceLocation(t *testing.T) {
	// 02:00 UTC on the 12th is 23:00 on the 11th in BRT, so the base is the 11th at 07:00 BRT
	requested := time.Date(2024, 3, 12, 2, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 12, 3, 0, 0, 0, time.UTC)

	got := ComputeWaitTime(requested, now, brt)
	assert.Equal(t, 17, got.Hours)

	utc := ComputeWaitTime(requested, now, time.UTC)
	assert.Equal(t, 0, utc.Hours, "in UTC the base is still in the future")
}

func TestComputeWaitTime_NilLocationIsUTC(t *testing.T) {
	requested := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 11, 9, 45, 0, 0, time.UTC)
	assert.Equal(t, WaitTimeResult{Hours: 2, Minutes: 45}, ComputeWaitTime(requested, now, nil))
}

func TestComputeWaitTime_Idempotent(t *testing.T) {
	requested, now := local(11, 9, 12, 0), local(11, 16, 40, 0)
	assert.Equal(t, ComputeWaitTime(requested, now, brt), ComputeWaitTime(requested, now, brt))
}

func TestWaitClock(t *testing.T) {
	clock := NewWaitClock(brt)
	assert.Same(t, brt, clock.Location())
	assert.Equal(t,
		ComputeWaitTime(local(11, 8, 0, 0), local(11, 13, 5, 0), brt),
		clock.Compute(local(11, 8, 0, 0), local(11, 13, 5, 0)))

	assert.Equal(t, time.UTC, NewWaitClock(nil).Location())
}

func TestEvaluatePending(t *testing.T) {
	requests := []models.DischargeRequest{
		{RequestID: "late", RequestedAt: local(11, 10, 0, 0), Status: models.RequestPending},
		{RequestID: "done", RequestedAt: local(11, 6, 0, 0), Status: models.RequestCompleted},
		{RequestID: "early", RequestedAt: local(11, 8, 0, 0), Status: models.RequestPending},
		{RequestID: "gone", RequestedAt: local(11, 7, 0, 0), Status: models.RequestCancelled},
	}

	got := EvaluatePending(requests, local(11, 12, 30, 0), brt)

	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].Request.RequestID)
	assert.Equal(t, "late", got[1].Request.RequestID)
	assert.Equal(t, WaitTimeResult{Hours: 5, Minutes: 30, IsOverdue: true}, got[0].Wait)

	overdue := Overdue(got)
	assert.Len(t, overdue, 2, "both share the 07:00 base of the same day")

	got = EvaluatePending(requests, local(11, 11, 0, 0), brt)
	assert.Empty(t, Overdue(got))
}
