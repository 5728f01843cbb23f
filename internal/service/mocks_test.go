package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"wisefido-discharge-board/internal/discharge"
	"wisefido-discharge-board/internal/events"
	"wisefido-discharge-board/internal/indicators"
	"wisefido-discharge-board/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockRepository 是 BoardRepository 的 mock 实现
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListAdmittedPatients(ctx context.Context, department string) ([]models.PatientDischargeRecord, error) {
	args := m.Called(ctx, department)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PatientDischargeRecord), args.Error(1)
}

func (m *MockRepository) ListDischargeRequests(ctx context.Context, status models.RequestStatus) ([]models.DischargeRequest, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DischargeRequest), args.Error(1)
}

func (m *MockRepository) ListBeds(ctx context.Context) ([]models.Bed, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Bed), args.Error(1)
}

func (m *MockRepository) ListRequestsBetween(ctx context.Context, from, to time.Time) ([]models.DischargeRequest, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DischargeRequest), args.Error(1)
}

func (m *MockRepository) GetAdmittedPatient(ctx context.Context, patientID string) (*models.PatientDischargeRecord, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PatientDischargeRecord), args.Error(1)
}

func (m *MockRepository) GetDischargeRequest(ctx context.Context, requestID string) (*models.DischargeRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DischargeRequest), args.Error(1)
}

func (m *MockRepository) CreateDischargeRequest(ctx context.Context, req models.DischargeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockRepository) SaveCompletion(ctx context.Context, req models.DischargeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockRepository) SaveCancellation(ctx context.Context, req models.DischargeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockRepository) UpdateExpectedDischarge(ctx context.Context, patientID string, expected *time.Time) error {
	return m.Called(ctx, patientID, expected).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	return m.Called(ctx, event).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyOverdue(ctx context.Context, pending []discharge.PendingDischarge, now time.Time) (int, error) {
	args := m.Called(ctx, pending, now)
	return args.Int(0), args.Error(1)
}

// stallingNotifier blocks its first NotifyOverdue call until unblock; later calls return at once.
type stallingNotifier struct {
	mu      sync.Mutex
	n       int
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStallingNotifier() *stallingNotifier {
	return &stallingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *stallingNotifier) NotifyOverdue(ctx context.Context, pending []discharge.PendingDischarge, now time.Time) (int, error) {
	s.mu.Lock()
	s.n++
	first := s.n == 1
	s.mu.Unlock()
	if !first {
		return 0, nil
	}
	close(s.entered)
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return len(pending), nil
}

func (s *stallingNotifier) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *stallingNotifier) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-s.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("escalation never started")
	}
}

func (s *stallingNotifier) unblock() {
	s.once.Do(func() { close(s.release) })
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) Save(ctx context.Context, snap indicators.Snapshot) error {
	return m.Called(ctx, snap).Error(0)
}

func (m *MockHistory) List(ctx context.Context, from, to string) ([]indicators.Snapshot, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]indicators.Snapshot), args.Error(1)
}

// brt hospital clock used across the tests (UTC-3, no DST)
var brt = time.FixedZone("BRT", -3*60*60)

// local 2024-03-<day> hh:mm in brt
func local(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, brt)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
