package service

import (
	"context"
	"time"

	"wisefido-discharge-board/internal/board"
	"wisefido-discharge-board/internal/discharge"
	"wisefido-discharge-board/internal/indicators"
	"wisefido-discharge-board/internal/models"
)

// BoardReader read side used by the board and the indicators
type BoardReader interface {
	board.Source
	ListBeds(ctx context.Context) ([]models.Bed, error)
	ListRequestsBetween(ctx context.Context, from, to time.Time) ([]models.DischargeRequest, error)
}

// RequestRepository persistence of discharge requests
type RequestRepository interface {
	GetAdmittedPatient(ctx context.Context, patientID string) (*models.PatientDischargeRecord, error)
	GetDischargeRequest(ctx context.Context, requestID string) (*models.DischargeRequest, error)
	ListDischargeRequests(ctx context.Context, status models.RequestStatus) ([]models.DischargeRequest, error)
	CreateDischargeRequest(ctx context.Context, req models.DischargeRequest) error
	SaveCompletion(ctx context.Context, req models.DischargeRequest) error
	SaveCancellation(ctx context.Context, req models.DischargeRequest) error
	UpdateExpectedDischarge(ctx context.Context, patientID string, expected *time.Time) error
}

// HistoryStore daily indicator snapshots
type HistoryStore interface {
	Save(ctx context.Context, snap indicators.Snapshot) error
	List(ctx context.Context, from, to string) ([]indicators.Snapshot, error)
}

// OverdueNotifier escalates overdue pending requests
type OverdueNotifier interface {
	NotifyOverdue(ctx context.Context, pending []discharge.PendingDischarge, now time.Time) (int, error)
}
