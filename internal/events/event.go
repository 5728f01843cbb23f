package events

import (
	"encoding/json"
	"fmt"
	"time"

	rediscommon "wisefido-discharge-board/internal/common/redis"
)

// 床位/出院变更事件类型
const (
	PatientAdmitted        = "patient.admitted"
	PatientTransferred     = "patient.transferred"
	PatientForecastChanged = "patient.forecast_changed"
	DischargeRequested     = "discharge.requested"
	DischargeCompleted     = "discharge.completed"
	DischargeCancelled     = "discharge.cancelled"
	BedStatusChanged       = "bed.status_changed"
)

// Event change event carried on the discharge stream
type Event struct {
	EventType  string                 `json:"event_type"`
	PatientID  string                 `json:"patient_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	BedID      string                 `json:"bed_id,omitempty"`
	Department string                 `json:"department,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// New stamps the event with now
func New(eventType string, now time.Time) Event {
	return Event{EventType: eventType, Timestamp: now.Unix()}
}

// AffectsBoard reports whether the event type changes what the board shows.
func AffectsBoard(eventType string) bool {
	switch eventType {
	case PatientAdmitted, PatientTransferred, PatientForecastChanged,
		DischargeRequested, DischargeCompleted, DischargeCancelled,
		BedStatusChanged:
		return true
	}
	return false
}

// Parse decodes a stream message, either a JSON "data" field or flat fields.
func Parse(msg rediscommon.StreamMessage) (*Event, error) {
	if dataStr, ok := msg.Values["data"].(string); ok {
		var event Event
		if err := json.Unmarshal([]byte(dataStr), &event); err != nil {
			return nil, fmt.Errorf("invalid event payload: %w", err)
		}
		if event.EventType == "" {
			return nil, fmt.Errorf("invalid event: missing event_type")
		}
		return &event, nil
	}

	event := &Event{}
	if v, ok := msg.Values["event_type"].(string); ok {
		event.EventType = v
	}
	if v, ok := msg.Values["patient_id"].(string); ok {
		event.PatientID = v
	}
	if v, ok := msg.Values["request_id"].(string); ok {
		event.RequestID = v
	}
	if v, ok := msg.Values["bed_id"].(string); ok {
		event.BedID = v
	}
	if v, ok := msg.Values["department"].(string); ok {
		event.Department = v
	}

	if event.EventType == "" {
		return nil, fmt.Errorf("invalid event: missing event_type")
	}
	return event, nil
}
