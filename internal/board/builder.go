package board

import (
	"context"
	"fmt"
	"time"

	"wisefido-discharge-board/internal/discharge"
	"wisefido-discharge-board/internal/models"

	"go.uber.org/zap"
)

// Source read side of the repository the board needs
type Source interface {
	ListAdmittedPatients(ctx context.Context, department string) ([]models.PatientDischargeRecord, error)
	ListDischargeRequests(ctx context.Context, status models.RequestStatus) ([]models.DischargeRequest, error)
}

// Builder 看板构建器: loads patients and pending requests and runs the discharge rules over them.
type Builder struct {
	source     Source
	clock      *discharge.WaitClock
	department string
	logger     *zap.Logger
}

func NewBuilder(source Source, clock *discharge.WaitClock, department string, logger *zap.Logger) *Builder {
	return &Builder{
		source:     source,
		clock:      clock,
		department: department,
		logger:     logger,
	}
}

// Clock wait clock used for pending requests
func (b *Builder) Clock() *discharge.WaitClock {
	return b.clock
}

// Build snapshot at now with the default ordering
func (b *Builder) Build(ctx context.Context, now time.Time) (*models.DischargeBoard, error) {
	return b.BuildWithOrder(ctx, now, discharge.Ordering{})
}

// BuildWithOrder snapshot at now with the discharge windows sorted by order
func (b *Builder) BuildWithOrder(ctx context.Context, now time.Time, order discharge.Ordering) (*models.DischargeBoard, error) {
	patients, err := b.source.ListAdmittedPatients(ctx, b.department)
	if err != nil {
		return nil, fmt.Errorf("failed to load admitted patients: %w", err)
	}
	requests, err := b.source.ListDischargeRequests(ctx, models.RequestPending)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending requests: %w", err)
	}

	classification := discharge.Classify(patients, now, order)
	pending := discharge.EvaluatePending(requests, now, b.clock.Location())

	board := &models.DischargeBoard{
		GeneratedAt:       now,
		ReferenceTimezone: b.clock.Location().String(),
		Within24h:         toBoardPatients(classification.Within24h),
		Within48h:         toBoardPatients(classification.Within48h),
		PendingDischarges: make([]models.BoardDischarge, 0, len(pending)),
	}
	for _, p := range pending {
		if b.department != "" && p.Request.Department != b.department {
			continue
		}
		board.PendingDischarges = append(board.PendingDischarges, models.BoardDischarge{
			DischargeRequest:      p.Request,
			WaitHours:             p.Wait.Hours,
			WaitMinutes:           p.Wait.Minutes,
			IsOverdue:             p.Wait.IsOverdue,
			RequiresJustification: discharge.RequiresJustification(p.Wait),
		})
		if p.Wait.IsOverdue {
			board.OverdueCount++
		}
	}

	board.Within24hCount = len(board.Within24h)
	board.Within48hCount = len(board.Within48h)
	board.PendingCount = len(board.PendingDischarges)
	for _, list := range [][]models.BoardPatient{board.Within24h, board.Within48h} {
		for _, p := range list {
			if p.IsReferral {
				board.ReferralsDueSoon++
			}
		}
	}

	if b.logger.Core().Enabled(zap.DebugLevel) {
		for _, p := range patients {
			if !p.HasForecast() {
				b.logger.Debug("Patient without expected discharge left off the board",
					zap.String("patient_id", p.PatientID),
					zap.String("bed_id", p.BedID),
				)
			}
		}
	}

	return board, nil
}

func toBoardPatients(results []discharge.ClassificationResult) []models.BoardPatient {
	out := make([]models.BoardPatient, 0, len(results))
	for _, r := range results {
		out = append(out, models.BoardPatient{
			PatientDischargeRecord: r.Record,
			HoursUntilDischarge:    r.HoursUntilDischarge,
			Bucket:                 string(r.Bucket),
		})
	}
	return out
}
