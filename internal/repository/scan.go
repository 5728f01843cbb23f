package repository

import (
	"database/sql"
	"fmt"
	"time"

	"wisefido-discharge-board/internal/models"
)

// rowScanner *sql.Row or *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (models.PatientDischargeRecord, error) {
	var p models.PatientDischargeRecord
	var originCity, diagnosis, referralType sql.NullString
	var expected sql.NullTime

	err := row.Scan(
		&p.PatientID,
		&p.PatientName,
		&p.Department,
		&p.BedID,
		&originCity,
		&diagnosis,
		&p.IsReferral,
		&referralType,
		&expected,
	)
	if err == sql.ErrNoRows {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("failed to scan patient: %w", err)
	}

	p.OriginCity = originCity.String
	p.Diagnosis = diagnosis.String
	if p.IsReferral && referralType.Valid {
		p.ReferralType = &referralType.String
	}
	p.ExpectedDischargeAt = nullTime(expected)
	return p, nil
}

func scanRequest(row rowScanner) (models.DischargeRequest, error) {
	var req models.DischargeRequest
	var status string
	var justification sql.NullString
	var completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&req.RequestID,
		&req.PatientID,
		&req.PatientName,
		&req.Department,
		&req.BedID,
		&req.RequestedAt,
		&status,
		&justification,
		&completedAt,
		&cancelledAt,
	)
	if err == sql.ErrNoRows {
		return req, err
	}
	if err != nil {
		return req, fmt.Errorf("failed to scan discharge request: %w", err)
	}

	req.Status = models.RequestStatus(status)
	if !req.Status.Valid() {
		return req, fmt.Errorf("discharge request %s has unknown status %q", req.RequestID, status)
	}
	req.RequestedAt = req.RequestedAt.UTC()
	req.CompletionJustification = justification.String
	req.CompletedAt = nullTime(completedAt)
	req.CancelledAt = nullTime(cancelledAt)
	return req, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
