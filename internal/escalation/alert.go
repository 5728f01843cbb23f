package escalation

import (
	"fmt"
	"time"

	"wisefido-discharge-board/internal/discharge"
)

// Alert 超时出院告警
type Alert struct {
	RequestID   string    `json:"request_id"`
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Department  string    `json:"department"`
	BedID       string    `json:"bed_id"`
	RequestedAt time.Time `json:"requested_at"`
	WaitHours   int       `json:"wait_hours"`
	WaitMinutes int       `json:"wait_minutes"`
	DetectedAt  time.Time `json:"detected_at"`
}

func NewAlert(p discharge.PendingDischarge, now time.Time) Alert {
	return Alert{
		RequestID:   p.Request.RequestID,
		PatientID:   p.Request.PatientID,
		PatientName: p.Request.PatientName,
		Department:  p.Request.Department,
		BedID:       p.Request.BedID,
		RequestedAt: p.Request.RequestedAt,
		WaitHours:   p.Wait.Hours,
		WaitMinutes: p.Wait.Minutes,
		DetectedAt:  now,
	}
}

// Text one-line human readable summary
func (a Alert) Text() string {
	return fmt.Sprintf("Alta pendente há %dh%02dm: %s (%s, leito %s). Conclusão exige justificativa.",
		a.WaitHours, a.WaitMinutes, a.PatientName, a.Department, a.BedID)
}
