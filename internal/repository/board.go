package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wisefido-discharge-board/internal/models"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"
)

const (
	tablePatients = "patients"
	tableBeds     = "beds"
	tableRequests = "discharge_requests"
)

var patientColumns = []interface{}{
	"patient_id", "patient_name", "department", "bed_id", "origin_city",
	"diagnosis", "is_referral", "referral_type", "expected_discharge_at",
}

var requestColumns = []interface{}{
	"request_id", "patient_id", "patient_name", "department", "bed_id", "requested_at",
	"status", "completion_justification", "completed_at", "cancelled_at",
}

// sqlBuilder any goqu dataset
type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

// BoardRepository 床位/出院申请仓库
type BoardRepository struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
	logger  *zap.Logger
}

// NewBoardRepository dialect must match the driver behind db (postgres, mysql).
func NewBoardRepository(db *sql.DB, dialect goqu.DialectWrapper, logger *zap.Logger) *BoardRepository {
	return &BoardRepository{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

// ListAdmittedPatients patients currently holding a bed. Empty department lists the whole hospital.
func (r *BoardRepository) ListAdmittedPatients(ctx context.Context, department string) ([]models.PatientDischargeRecord, error) {
	ds := r.dialect.From(tablePatients).Prepared(true).
		Select(patientColumns...).
		Where(goqu.C("discharged_at").IsNull())
	if department != "" {
		ds = ds.Where(goqu.Ex{"department": department})
	}
	ds = ds.Order(goqu.C("bed_id").Asc())

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build patients query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query admitted patients: %w", err)
	}
	defer rows.Close()

	var patients []models.PatientDischargeRecord
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patients: %w", err)
	}
	return patients, nil
}

// GetAdmittedPatient ErrNotFound when the patient is unknown or already discharged.
func (r *BoardRepository) GetAdmittedPatient(ctx context.Context, patientID string) (*models.PatientDischargeRecord, error) {
	query, args, err := r.dialect.From(tablePatients).Prepared(true).
		Select(patientColumns...).
		Where(goqu.Ex{"patient_id": patientID}, goqu.C("discharged_at").IsNull()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build patient query: %w", err)
	}

	p, err := scanPatient(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("patient %s: %w", patientID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListBeds all beds ordered by department and label
func (r *BoardRepository) ListBeds(ctx context.Context) ([]models.Bed, error) {
	query, args, err := r.dialect.From(tableBeds).Prepared(true).
		Select("bed_id", "label", "department", "status").
		Order(goqu.C("department").Asc(), goqu.C("label").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build beds query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query beds: %w", err)
	}
	defer rows.Close()

	var beds []models.Bed
	for rows.Next() {
		var b models.Bed
		var status string
		if err := rows.Scan(&b.BedID, &b.Label, &b.Department, &status); err != nil {
			return nil, fmt.Errorf("failed to scan bed: %w", err)
		}
		b.Status = models.BedStatus(status)
		beds = append(beds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate beds: %w", err)
	}
	return beds, nil
}

// ListDischargeRequests requests with the given status, oldest first. Empty status lists all.
func (r *BoardRepository) ListDischargeRequests(ctx context.Context, status models.RequestStatus) ([]models.DischargeRequest, error) {
	ds := r.dialect.From(tableRequests).Prepared(true).Select(requestColumns...)
	if status != "" {
		ds = ds.Where(goqu.Ex{"status": string(status)})
	}
	return r.queryRequests(ctx, ds.Order(goqu.C("requested_at").Asc()))
}

// ListRequestsBetween requests made, completed or cancelled in [from, to), oldest first.
func (r *BoardRepository) ListRequestsBetween(ctx context.Context, from, to time.Time) ([]models.DischargeRequest, error) {
	from, to = from.UTC(), to.UTC()
	within := func(col string) goqu.Expression {
		return goqu.And(goqu.C(col).Gte(from), goqu.C(col).Lt(to))
	}
	ds := r.dialect.From(tableRequests).Prepared(true).
		Select(requestColumns...).
		Where(goqu.Or(within("requested_at"), within("completed_at"), within("cancelled_at"))).
		Order(goqu.C("requested_at").Asc())
	return r.queryRequests(ctx, ds)
}

func (r *BoardRepository) queryRequests(ctx context.Context, ds *goqu.SelectDataset) ([]models.DischargeRequest, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build requests query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query discharge requests: %w", err)
	}
	defer rows.Close()

	var requests []models.DischargeRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate discharge requests: %w", err)
	}
	return requests, nil
}

// GetDischargeRequest ErrNotFound when absent
func (r *BoardRepository) GetDischargeRequest(ctx context.Context, requestID string) (*models.DischargeRequest, error) {
	query, args, err := r.dialect.From(tableRequests).Prepared(true).
		Select(requestColumns...).
		Where(goqu.Ex{"request_id": requestID}).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build request query: %w", err)
	}

	req, err := scanRequest(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("discharge request %s: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateDischargeRequest inserts a pending request and flags the bed pending_discharge.
func (r *BoardRepository) CreateDischargeRequest(ctx context.Context, req models.DischargeRequest) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		countQuery, args, err := r.dialect.From(tableRequests).Prepared(true).
			Select(goqu.COUNT(goqu.Star())).
			Where(goqu.Ex{"patient_id": req.PatientID, "status": string(models.RequestPending)}).
			ToSQL()
		if err != nil {
			return fmt.Errorf("failed to build pending count query: %w", err)
		}
		var pending int
		if err := tx.QueryRowContext(ctx, countQuery, args...).Scan(&pending); err != nil {
			return fmt.Errorf("failed to count pending requests: %w", err)
		}
		if pending > 0 {
			return fmt.Errorf("patient %s: %w", req.PatientID, ErrPendingRequestExists)
		}

		insert := r.dialect.Insert(tableRequests).Prepared(true).Rows(goqu.Record{
			"request_id":   req.RequestID,
			"patient_id":   req.PatientID,
			"patient_name": req.PatientName,
			"department":   req.Department,
			"bed_id":       req.BedID,
			"requested_at": req.RequestedAt.UTC(),
			"status":       string(models.RequestPending),
		})
		if _, err := execTx(ctx, tx, insert); err != nil {
			// a concurrent create won the partial unique index
			if isUniqueViolation(err) {
				return fmt.Errorf("patient %s: %w", req.PatientID, ErrPendingRequestExists)
			}
			return fmt.Errorf("failed to insert discharge request: %w", err)
		}

		return r.setBedStatus(ctx, tx, req.BedID, models.BedPendingDischarge)
	})
}

// SaveCompletion persists a completed request: patient discharged, bed released.
func (r *BoardRepository) SaveCompletion(ctx context.Context, req models.DischargeRequest) error {
	if req.CompletedAt == nil {
		return fmt.Errorf("discharge request %s has no completion time", req.RequestID)
	}
	completedAt := req.CompletedAt.UTC()

	return r.withTx(ctx, func(tx *sql.Tx) error {
		update := r.dialect.Update(tableRequests).Prepared(true).
			Set(goqu.Record{
				"status":                   string(models.RequestCompleted),
				"completion_justification": req.CompletionJustification,
				"completed_at":             completedAt,
			}).
			Where(goqu.Ex{"request_id": req.RequestID, "status": string(models.RequestPending)})
		if err := r.expectOneRow(ctx, tx, update, req.RequestID); err != nil {
			return err
		}

		discharge := r.dialect.Update(tablePatients).Prepared(true).
			Set(goqu.Record{"discharged_at": completedAt}).
			Where(goqu.Ex{"patient_id": req.PatientID})
		if _, err := execTx(ctx, tx, discharge); err != nil {
			return fmt.Errorf("failed to discharge patient %s: %w", req.PatientID, err)
		}

		return r.setBedStatus(ctx, tx, req.BedID, models.BedAvailable)
	})
}

// SaveCancellation persists a cancelled request; the patient keeps the bed.
func (r *BoardRepository) SaveCancellation(ctx context.Context, req models.DischargeRequest) error {
	if req.CancelledAt == nil {
		return fmt.Errorf("discharge request %s has no cancellation time", req.RequestID)
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		update := r.dialect.Update(tableRequests).Prepared(true).
			Set(goqu.Record{
				"status":       string(models.RequestCancelled),
				"cancelled_at": req.CancelledAt.UTC(),
			}).
			Where(goqu.Ex{"request_id": req.RequestID, "status": string(models.RequestPending)})
		if err := r.expectOneRow(ctx, tx, update, req.RequestID); err != nil {
			return err
		}

		return r.setBedStatus(ctx, tx, req.BedID, models.BedOccupied)
	})
}

// UpdateExpectedDischarge records the DPA of an admitted patient; nil clears it.
func (r *BoardRepository) UpdateExpectedDischarge(ctx context.Context, patientID string, expected *time.Time) error {
	var value interface{}
	if expected != nil {
		value = expected.UTC()
	}

	query, args, err := r.dialect.Update(tablePatients).Prepared(true).
		Set(goqu.Record{"expected_discharge_at": value}).
		Where(goqu.Ex{"patient_id": patientID}, goqu.C("discharged_at").IsNull()).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build forecast update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update expected discharge: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("patient %s: %w", patientID, ErrNotFound)
	}
	return nil
}

func (r *BoardRepository) setBedStatus(ctx context.Context, tx *sql.Tx, bedID string, status models.BedStatus) error {
	if bedID == "" {
		return nil
	}
	update := r.dialect.Update(tableBeds).Prepared(true).
		Set(goqu.Record{"status": string(status)}).
		Where(goqu.Ex{"bed_id": bedID})
	res, err := execTx(ctx, tx, update)
	if err != nil {
		return fmt.Errorf("failed to set bed %s to %s: %w", bedID, status, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.logger.Warn("Bed not found while updating status",
			zap.String("bed_id", bedID),
			zap.String("status", string(status)),
		)
	}
	return nil
}

func (r *BoardRepository) expectOneRow(ctx context.Context, tx *sql.Tx, ds sqlBuilder, requestID string) error {
	res, err := execTx(ctx, tx, ds)
	if err != nil {
		return fmt.Errorf("failed to update discharge request %s: %w", requestID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("discharge request %s: %w", requestID, ErrStaleRequest)
	}
	return nil
}

func (r *BoardRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func execTx(ctx context.Context, tx *sql.Tx, ds sqlBuilder) (sql.Result, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build statement: %w", err)
	}
	return tx.ExecContext(ctx, query, args...)
}
