package models

import "time"

// PatientDischargeRecord 住院患者出院预测记录 (one admitted patient occupying a bed)
type PatientDischargeRecord struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	// ExpectedDischargeAt is the DPA (data provável de alta); nil when no forecast was recorded.
	ExpectedDischargeAt *time.Time `json:"expected_discharge_at,omitempty"`
	Department          string     `json:"department"`
	BedID               string     `json:"bed_id"`
	OriginCity          string     `json:"origin_city,omitempty"`
	Diagnosis           string     `json:"diagnosis,omitempty"`
	IsReferral          bool       `json:"is_referral"`             // TFD
	ReferralType        *string    `json:"referral_type,omitempty"` // TFD type, only when IsReferral
}

// HasForecast reports whether an expected discharge instant was recorded.
func (r PatientDischargeRecord) HasForecast() bool {
	return r.ExpectedDischargeAt != nil && !r.ExpectedDischargeAt.IsZero()
}
