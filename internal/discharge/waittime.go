package discharge

import "time"

const (
	// WaitBaseHour local hour of the request day the wait clock starts from.
	WaitBaseHour = 7
	// OverdueAfterHours elapsed whole hours at which a pending request becomes overdue.
	OverdueAfterHours = 5
)

// WaitTimeResult elapsed wait of a discharge request
type WaitTimeResult struct {
	Hours     int  `json:"hours"`
	Minutes   int  `json:"minutes"`
	IsOverdue bool `json:"is_overdue"`
}

// WaitBase returns 07:00 on the calendar day of requestedAt in loc, computed as local
// midnight plus seven hours. A nil loc means UTC.
func WaitBase(requestedAt time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := requestedAt.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.Add(WaitBaseHour * time.Hour)
}

// ComputeWaitTime measures the wait from WaitBase to now. The wait never goes negative:
// requests made before 07:00 show zero until the base instant passes.
func ComputeWaitTime(requestedAt, now time.Time, loc *time.Location) WaitTimeResult {
	elapsed := now.Sub(WaitBase(requestedAt, loc))
	if elapsed < 0 {
		elapsed = 0
	}
	hours := int(elapsed / time.Hour)
	minutes := int((elapsed % time.Hour) / time.Minute)
	return WaitTimeResult{
		Hours:     hours,
		Minutes:   minutes,
		IsOverdue: hours >= OverdueAfterHours,
	}
}

// RequiresJustification reports whether completing the request needs a written justification.
func RequiresJustification(result WaitTimeResult) bool {
	return result.IsOverdue
}

// WaitClock binds the wait computation to the configured reference location.
type WaitClock struct {
	loc *time.Location
}

// NewWaitClock nil loc means UTC
func NewWaitClock(loc *time.Location) *WaitClock {
	if loc == nil {
		loc = time.UTC
	}
	return &WaitClock{loc: loc}
}

func (c *WaitClock) Location() *time.Location {
	return c.loc
}

func (c *WaitClock) Compute(requestedAt, now time.Time) WaitTimeResult {
	return ComputeWaitTime(requestedAt, now, c.loc)
}
