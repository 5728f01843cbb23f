package models

import "time"

// DischargeBoard 出院看板快照 (what the dashboard renders; cached in Redis as JSON)
type DischargeBoard struct {
	GeneratedAt       time.Time        `json:"generated_at"`
	ReferenceTimezone string           `json:"reference_timezone"`
	Within24h         []BoardPatient   `json:"within_24h"`
	Within48h         []BoardPatient   `json:"within_48h"`
	PendingDischarges []BoardDischarge `json:"pending_discharges"`

	Within24hCount   int `json:"within_24h_count"`
	Within48hCount   int `json:"within_48h_count"`
	PendingCount     int `json:"pending_count"`
	OverdueCount     int `json:"overdue_count"`
	ReferralsDueSoon int `json:"referrals_due_soon"` // TFD patients inside the 48h horizon
}

// BoardPatient a patient inside a discharge window
type BoardPatient struct {
	PatientDischargeRecord
	HoursUntilDischarge int    `json:"hours_until_discharge"`
	Bucket              string `json:"bucket"`
}

// BoardDischarge a pending discharge request with its wait clock
type BoardDischarge struct {
	DischargeRequest
	WaitHours             int  `json:"wait_hours"`
	WaitMinutes           int  `json:"wait_minutes"`
	IsOverdue             bool `json:"is_overdue"`
	RequiresJustification bool `json:"requires_justification"`
}
