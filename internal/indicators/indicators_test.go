package indicators

import (
	"testing"
	"time"

	"wisefido-discharge-board/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeOccupancy(t *testing.T) {
	beds := []models.Bed{
		{BedID: "1", Department: "UTI", Status: models.BedOccupied},
		{BedID: "2", Department: "UTI", Status: models.BedPendingDischarge},
		{BedID: "3", Department: "UTI", Status: models.BedAvailable},
		{BedID: "4", Department: "UTI", Status: models.BedBlocked},
		{BedID: "5", Department: "Clínica", Status: models.BedReserved},
		{BedID: "6", Department: "Clínica", Status: models.BedAvailable},
	}

	got := ComputeOccupancy(beds)

	assert.Equal(t, 6, got.Total.Total)
	assert.Equal(t, 1, got.Total.Occupied)
	assert.Equal(t, 1, got.Total.PendingDischarge)
	assert.Equal(t, 1, got.Total.Blocked)
	assert.InDelta(t, 2.0/5.0, got.Total.OccupancyRate, 1e-9)

	require.Len(t, got.Departments, 2)
	assert.Equal(t, "Clínica", got.Departments[0].Department)
	assert.InDelta(t, 0.0, got.Departments[0].OccupancyRate, 1e-9)
	assert.Equal(t, "UTI", got.Departments[1].Department)
	assert.InDelta(t, 2.0/3.0, got.Departments[1].OccupancyRate, 1e-9)
}

func TestComputeOccupancy_Empty(t *testing.T) {
	got := ComputeOccupancy(nil)
	assert.Equal(t, 0, got.Total.Total)
	assert.Equal(t, 0.0, got.Total.OccupancyRate)
	assert.Empty(t, got.Departments)
}

func TestComputeDischargeTiming(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2024, 3, 11, h, m, 0, 0, time.UTC) }
	at := func(t time.Time) *time.Time { return &t }

	requests := []models.DischargeRequest{
		// 2h wait
		{Status: models.RequestCompleted, RequestedAt: day(8, 0), CompletedAt: at(day(9, 0))},
		// 6h wait, justified
		{Status: models.RequestCompleted, RequestedAt: day(10, 0), CompletedAt: at(day(13, 0)), CompletionJustification: "TFD"},
		// 8h wait, no justification (imported data)
		{Status: models.RequestCompleted, RequestedAt: day(11, 0), CompletedAt: at(day(15, 0))},
		{Status: models.RequestCancelled, RequestedAt: day(9, 0)},
		{Status: models.RequestPending, RequestedAt: day(12, 0)},
	}

	got := ComputeDischargeTiming(requests, time.UTC)

	assert.Equal(t, 5, got.Requested)
	assert.Equal(t, 3, got.Completed)
	assert.Equal(t, 1, got.Cancelled)
	assert.Equal(t, 1, got.Pending)
	assert.Equal(t, 2, got.OverdueCompleted)
	assert.Equal(t, 1, got.Justified)
	assert.InDelta(t, (120.0+360.0+480.0)/3.0, got.MeanWaitMinutes, 1e-9)
	assert.InDelta(t, 0.5, got.JustificationCoverage, 1e-9)
}

func TestComputeDischargeTiming_NoOverdue(t *testing.T) {
	got := ComputeDischargeTiming(nil, time.UTC)
	assert.Equal(t, 0, got.Completed)
	assert.Equal(t, 0.0, got.MeanWaitMinutes)
	assert.Equal(t, 1.0, got.JustificationCoverage)
}

func TestComputeTimingBetween_CountsEventsInTheirOwnDay(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	at := func(t time.Time) *time.Time { return &t }
	from := time.Date(2024, 3, 12, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)

	requests := []models.DischargeRequest{
		// asked yesterday 16:00, discharged today 08:00: wait clock runs from yesterday 07:00
		{Status: models.RequestCompleted, RequestedAt: from.Add(-8 * time.Hour), CompletedAt: at(from.Add(8 * time.Hour)), CompletionJustification: "aguardando transporte"},
		// asked and cancelled yesterday: outside the day
		{Status: models.RequestCancelled, RequestedAt: from.Add(-6 * time.Hour), CancelledAt: at(from.Add(-5 * time.Hour))},
		// asked yesterday, cancelled today
		{Status: models.RequestCancelled, RequestedAt: from.Add(-4 * time.Hour), CancelledAt: at(from.Add(9 * time.Hour))},
		// asked today, still pending
		{Status: models.RequestPending, RequestedAt: from.Add(10 * time.Hour)},
		// asked today 09:00, discharged 10:00
		{Status: models.RequestCompleted, RequestedAt: from.Add(9 * time.Hour), CompletedAt: at(from.Add(10 * time.Hour))},
	}

	got := ComputeTimingBetween(requests, from, to, loc)

	assert.Equal(t, 2, got.Requested)
	assert.Equal(t, 1, got.Pending)
	assert.Equal(t, 2, got.Completed)
	assert.Equal(t, 1, got.Cancelled)
	assert.Equal(t, 1, got.OverdueCompleted)
	assert.Equal(t, 1, got.Justified)
	assert.InDelta(t, 1.0, got.JustificationCoverage, 1e-9)
	// 25h from yesterday 07:00 plus 3h from today 07:00
	assert.InDelta(t, (25.0*60+3.0*60)/2.0, got.MeanWaitMinutes, 1e-9)
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	// 01:30 UTC on the 12th is still the 11th in BRT
	instant := time.Date(2024, 3, 12, 1, 30, 0, 0, time.UTC)

	start, end := DayBounds(instant, loc)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, loc), end)
	assert.Equal(t, "2024-03-11", DayKey(instant, loc))
}
