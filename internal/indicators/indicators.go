// Package indicators computes the bed-management indicators shown next to the discharge board:
// bed occupancy per department and discharge timing measured with the 07:00 wait clock.
package indicators

import (
	"sort"
	"strings"
	"time"

	"wisefido-discharge-board/internal/discharge"
	"wisefido-discharge-board/internal/models"
)

// Occupancy bed counts of one department, or of the whole hospital
type Occupancy struct {
	Department       string  `json:"department,omitempty"`
	Total            int     `json:"total"`
	Occupied         int     `json:"occupied"`
	Available        int     `json:"available"`
	Reserved         int     `json:"reserved"`
	PendingDischarge int     `json:"pending_discharge"`
	Blocked          int     `json:"blocked"`
	OccupancyRate    float64 `json:"occupancy_rate"`
}

// OccupancyReport hospital total plus one entry per department, sorted by name
type OccupancyReport struct {
	Total       Occupancy   `json:"total"`
	Departments []Occupancy `json:"departments"`
}

func (o *Occupancy) add(status models.BedStatus) {
	o.Total++
	switch status {
	case models.BedOccupied:
		o.Occupied++
	case models.BedAvailable:
		o.Available++
	case models.BedReserved:
		o.Reserved++
	case models.BedPendingDischarge:
		o.PendingDischarge++
	case models.BedBlocked:
		o.Blocked++
	}
}

// rate beds held by a patient over beds that can be used
func (o *Occupancy) rate() {
	usable := o.Total - o.Blocked
	if usable <= 0 {
		o.OccupancyRate = 0
		return
	}
	o.OccupancyRate = float64(o.Occupied+o.PendingDischarge) / float64(usable)
}

// ComputeOccupancy counts beds per status.
func ComputeOccupancy(beds []models.Bed) OccupancyReport {
	var report OccupancyReport
	byDept := map[string]*Occupancy{}
	for _, b := range beds {
		report.Total.add(b.Status)
		dept := strings.TrimSpace(b.Department)
		o, ok := byDept[dept]
		if !ok {
			o = &Occupancy{Department: dept}
			byDept[dept] = o
		}
		o.add(b.Status)
	}

	report.Total.rate()
	report.Departments = make([]Occupancy, 0, len(byDept))
	for _, o := range byDept {
		o.rate()
		report.Departments = append(report.Departments, *o)
	}
	sort.Slice(report.Departments, func(i, j int) bool {
		return report.Departments[i].Department < report.Departments[j].Department
	})
	return report
}

// DischargeTiming outcome of the discharge requests of a period
type DischargeTiming struct {
	Requested        int `json:"requested"`
	Completed        int `json:"completed"`
	Cancelled        int `json:"cancelled"`
	Pending          int `json:"pending"`
	OverdueCompleted int `json:"overdue_completed"`
	Justified        int `json:"justified"`
	// MeanWaitMinutes average wait of completed requests, measured from 07:00 of the request day
	MeanWaitMinutes float64 `json:"mean_wait_minutes"`
	// JustificationCoverage share of overdue completions carrying a justification; 1 when there were none
	JustificationCoverage float64 `json:"justification_coverage"`
}

// ComputeDischargeTiming summarizes requests using loc for the wait clock.
func ComputeDischargeTiming(requests []models.DischargeRequest, loc *time.Location) DischargeTiming {
	return ComputeTimingBetween(requests, time.Time{}, time.Time{}, loc)
}

// ComputeTimingBetween counts each event in the window it happened in:
// requests and pending by requested_at, completions and cancellations by their own timestamp.
// A zero from or to leaves that side open.
func ComputeTimingBetween(requests []models.DischargeRequest, from, to time.Time, loc *time.Location) DischargeTiming {
	var t DischargeTiming
	var totalWait time.Duration

	for _, req := range requests {
		requestedIn := within(req.RequestedAt, from, to)
		if requestedIn {
			t.Requested++
		}
		switch req.Status {
		case models.RequestPending:
			if requestedIn {
				t.Pending++
			}
		case models.RequestCancelled:
			at := req.RequestedAt
			if req.CancelledAt != nil {
				at = *req.CancelledAt
			}
			if within(at, from, to) {
				t.Cancelled++
			}
		case models.RequestCompleted:
			if req.CompletedAt == nil {
				if requestedIn {
					t.Completed++
				}
				continue
			}
			if !within(*req.CompletedAt, from, to) {
				continue
			}
			t.Completed++
			wait := discharge.ComputeWaitTime(req.RequestedAt, *req.CompletedAt, loc)
			totalWait += time.Duration(wait.Hours)*time.Hour + time.Duration(wait.Minutes)*time.Minute
			if wait.IsOverdue {
				t.OverdueCompleted++
				if strings.TrimSpace(req.CompletionJustification) != "" {
					t.Justified++
				}
			}
		}
	}

	if t.Completed > 0 {
		t.MeanWaitMinutes = totalWait.Minutes() / float64(t.Completed)
	}
	t.JustificationCoverage = 1
	if t.OverdueCompleted > 0 {
		t.JustificationCoverage = float64(t.Justified) / float64(t.OverdueCompleted)
	}
	return t
}

func within(at, from, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}

// Snapshot indicators of one day, as persisted by the history store
type Snapshot struct {
	Day       string          `json:"day"` // YYYY-MM-DD in the reference timezone
	TakenAt   time.Time       `json:"taken_at"`
	Occupancy OccupancyReport `json:"occupancy"`
	Timing    DischargeTiming `json:"timing"`
}

// DayBounds returns [start, end) of the calendar day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// DayKey YYYY-MM-DD of t in loc
func DayKey(t time.Time, loc *time.Location) string {
	start, _ := DayBounds(t, loc)
	return start.Format("2006-01-02")
}
