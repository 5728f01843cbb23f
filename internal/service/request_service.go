package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wisefido-discharge-board/internal/discharge"
	"wisefido-discharge-board/internal/events"
	"wisefido-discharge-board/internal/models"
	"wisefido-discharge-board/internal/repository"
	"wisefido-discharge-board/internal/telemetry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidInput request payload failed validation
var ErrInvalidInput = errors.New("invalid input")

// CreateRequestInput 出院申请参数. Empty fields are filled from the admitted patient.
type CreateRequestInput struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	Department  string `json:"department"`
	BedID       string `json:"bed_id"`
}

// RequestService 出院申请服务
type RequestService struct {
	repo      RequestRepository
	publisher events.Publisher
	clock     *discharge.WaitClock
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	onChange  func(ctx context.Context, reason string)

	now   func() time.Time
	newID func() string
}

func NewRequestService(
	repo RequestRepository,
	publisher events.Publisher,
	clock *discharge.WaitClock,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// OnChange registers a hook run after every committed change.
func (s *RequestService) OnChange(fn func(ctx context.Context, reason string)) {
	s.onChange = fn
}

// Create opens a pending discharge request for an admitted patient.
func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*models.DischargeRequest, error) {
	in.PatientID = strings.TrimSpace(in.PatientID)
	if in.PatientID == "" {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}

	patient, err := s.repo.GetAdmittedPatient(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if in.BedID != "" && in.BedID != patient.BedID {
		return nil, fmt.Errorf("%w: patient %s is in bed %s, not %s", ErrInvalidInput, patient.PatientID, patient.BedID, in.BedID)
	}

	req := models.DischargeRequest{
		RequestID:   s.newID(),
		PatientID:   patient.PatientID,
		PatientName: firstNonEmpty(in.PatientName, patient.PatientName),
		Department:  firstNonEmpty(in.Department, patient.Department),
		BedID:       patient.BedID,
		RequestedAt: s.now().UTC(),
		Status:      models.RequestPending,
	}
	if err := s.repo.CreateDischargeRequest(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("Discharge requested",
		zap.String("request_id", req.RequestID),
		zap.String("patient_id", req.PatientID),
		zap.String("bed_id", req.BedID),
	)
	s.metrics.RecordTransition(ctx, string(models.RequestPending))
	s.changed(ctx, events.DischargeRequested, req)
	return &req, nil
}

// Complete closes a pending request. Overdue requests need a justification
// (discharge.ErrJustificationRequired); the returned wait is the one the rule was checked against.
func (s *RequestService) Complete(ctx context.Context, requestID, justification string) (*models.DischargeRequest, discharge.WaitTimeResult, error) {
	req, err := s.repo.GetDischargeRequest(ctx, requestID)
	if err != nil {
		return nil, discharge.WaitTimeResult{}, err
	}

	completed, wait, err := discharge.CompleteRequest(*req, justification, s.now(), s.clock.Location())
	if err != nil {
		if errors.Is(err, discharge.ErrJustificationRequired) {
			s.metrics.RecordRejectedCompletion(ctx, req.Department)
			s.logger.Warn("Completion rejected without justification",
				zap.String("request_id", req.RequestID),
				zap.Int("wait_hours", wait.Hours),
			)
		}
		return req, wait, err
	}

	if err := s.repo.SaveCompletion(ctx, completed); err != nil {
		return nil, wait, mapStale(err)
	}

	s.logger.Info("Discharge completed",
		zap.String("request_id", completed.RequestID),
		zap.Int("wait_hours", wait.Hours),
		zap.Int("wait_minutes", wait.Minutes),
		zap.Bool("overdue", wait.IsOverdue),
	)
	s.metrics.RecordTransition(ctx, string(models.RequestCompleted))
	s.changed(ctx, events.DischargeCompleted, completed)
	return &completed, wait, nil
}

// Cancel withdraws a pending request; the patient keeps the bed.
func (s *RequestService) Cancel(ctx context.Context, requestID string) (*models.DischargeRequest, error) {
	req, err := s.repo.GetDischargeRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	cancelled, err := discharge.CancelRequest(*req, s.now())
	if err != nil {
		return req, err
	}
	if err := s.repo.SaveCancellation(ctx, cancelled); err != nil {
		return nil, mapStale(err)
	}

	s.logger.Info("Discharge cancelled", zap.String("request_id", cancelled.RequestID))
	s.metrics.RecordTransition(ctx, string(models.RequestCancelled))
	s.changed(ctx, events.DischargeCancelled, cancelled)
	return &cancelled, nil
}

// SetExpectedDischarge records (or clears, with nil) the expected discharge of a patient.
func (s *RequestService) SetExpectedDischarge(ctx context.Context, patientID string, expected *time.Time) error {
	if strings.TrimSpace(patientID) == "" {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if err := s.repo.UpdateExpectedDischarge(ctx, patientID, expected); err != nil {
		return err
	}

	event := events.New(events.PatientForecastChanged, s.now())
	event.PatientID = patientID
	s.publish(ctx, event)
	s.notify(ctx, event.EventType)
	return nil
}

// ListPending pending requests with their current wait, oldest first.
func (s *RequestService) ListPending(ctx context.Context) ([]discharge.PendingDischarge, error) {
	requests, err := s.repo.ListDischargeRequests(ctx, models.RequestPending)
	if err != nil {
		return nil, err
	}
	return discharge.EvaluatePending(requests, s.now(), s.clock.Location()), nil
}

func (s *RequestService) changed(ctx context.Context, eventType string, req models.DischargeRequest) {
	event := events.New(eventType, s.now())
	event.RequestID = req.RequestID
	event.PatientID = req.PatientID
	event.BedID = req.BedID
	event.Department = req.Department
	s.publish(ctx, event)
	s.notify(ctx, eventType)
}

// publish failures are logged: the change is already committed
func (s *RequestService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish change event",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

func (s *RequestService) notify(ctx context.Context, reason string) {
	if s.onChange != nil {
		s.onChange(ctx, reason)
	}
}

func mapStale(err error) error {
	if errors.Is(err, repository.ErrStaleRequest) {
		return fmt.Errorf("%w: %v", discharge.ErrRequestNotPending, err)
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
