package discharge

import (
	"sort"
	"time"

	"wisefido-discharge-board/internal/models"
)

// PendingDischarge a pending request paired with its current wait
type PendingDischarge struct {
	Request models.DischargeRequest `json:"request"`
	Wait    WaitTimeResult          `json:"wait"`
}

// EvaluatePending computes the wait of every pending request, oldest request first.
// Completed and cancelled requests are skipped.
func EvaluatePending(requests []models.DischargeRequest, now time.Time, loc *time.Location) []PendingDischarge {
	out := make([]PendingDischarge, 0, len(requests))
	for _, req := range requests {
		if req.Status != models.RequestPending {
			continue
		}
		out = append(out, PendingDischarge{
			Request: req,
			Wait:    ComputeWaitTime(req.RequestedAt, now, loc),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Request.RequestedAt.Before(out[j].Request.RequestedAt)
	})
	return out
}

// Overdue filters the overdue entries, keeping order.
func Overdue(pending []PendingDischarge) []PendingDischarge {
	var out []PendingDischarge
	for _, p := range pending {
		if p.Wait.IsOverdue {
			out = append(out, p)
		}
	}
	return out
}
