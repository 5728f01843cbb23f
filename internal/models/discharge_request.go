package models

import "time"

// RequestStatus discharge request lifecycle status
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestCompleted RequestStatus = "completed"
	RequestCancelled RequestStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestCompleted, RequestCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestCancelled
}

// DischargeRequest 出院申请
type DischargeRequest struct {
	RequestID               string        `json:"request_id"`
	PatientID               string        `json:"patient_id"`
	PatientName             string        `json:"patient_name"`
	Department              string        `json:"department"`
	BedID                   string        `json:"bed_id"`
	RequestedAt             time.Time     `json:"requested_at"`
	Status                  RequestStatus `json:"status"`
	CompletionJustification string        `json:"completion_justification,omitempty"`
	CompletedAt             *time.Time    `json:"completed_at,omitempty"`
	CancelledAt             *time.Time    `json:"cancelled_at,omitempty"`
}
