package discharge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"wisefido-discharge-board/internal/models"
)

var (
	// ErrRequestNotPending the request already reached a terminal status.
	ErrRequestNotPending = errors.New("discharge request is not pending")
	// ErrJustificationRequired an overdue request was completed without a justification.
	ErrJustificationRequired = errors.New("justification required to complete an overdue discharge request")
)

// CompleteRequest returns the completed copy of req. Overdue requests need a non-blank
// justification; on rejection req is returned unchanged together with the wait that caused it.
func CompleteRequest(req models.DischargeRequest, justification string, now time.Time, loc *time.Location) (models.DischargeRequest, WaitTimeResult, error) {
	if req.Status != models.RequestPending {
		return req, WaitTimeResult{}, fmt.Errorf("%w: %s is %s", ErrRequestNotPending, req.RequestID, req.Status)
	}

	wait := ComputeWaitTime(req.RequestedAt, now, loc)
	justification = strings.TrimSpace(justification)
	if RequiresJustification(wait) && justification == "" {
		return req, wait, ErrJustificationRequired
	}

	completed := req
	completedAt := now
	completed.Status = models.RequestCompleted
	completed.CompletionJustification = justification
	completed.CompletedAt = &completedAt
	return completed, wait, nil
}

// CancelRequest returns the cancelled copy of req. Cancellation has no wait-time implications.
func CancelRequest(req models.DischargeRequest, now time.Time) (models.DischargeRequest, error) {
	if req.Status != models.RequestPending {
		return req, fmt.Errorf("%w: %s is %s", ErrRequestNotPending, req.RequestID, req.Status)
	}

	cancelled := req
	cancelledAt := now
	cancelled.Status = models.RequestCancelled
	cancelled.CancelledAt = &cancelledAt
	return cancelled, nil
}
