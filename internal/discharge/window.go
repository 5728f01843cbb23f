package discharge

import (
	"sort"
	"time"

	"wisefido-discharge-board/internal/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Bucket discharge window of a patient relative to now
type Bucket string

const (
	BucketWithin24h Bucket = "within24h"
	BucketWithin48h Bucket = "within48h"
	BucketNotDue    Bucket = "notDue"
)

const (
	// UrgentHorizon upper bound (inclusive) of the within24h bucket.
	UrgentHorizon = 24 * time.Hour
	// OuterHorizon upper bound (inclusive) of the within48h bucket; later forecasts are excluded.
	OuterHorizon = 48 * time.Hour
)

// ClassificationResult one patient placed in a discharge window
type ClassificationResult struct {
	Record              models.PatientDischargeRecord `json:"record"`
	HoursUntilDischarge int                           `json:"hours_until_discharge"`
	Bucket              Bucket                        `json:"bucket"`
}

// Classification output of Classify
type Classification struct {
	Within24h []ClassificationResult `json:"within_24h"`
	Within48h []ClassificationResult `json:"within_48h"`
}

// SortKey ordering key inside a bucket
type SortKey int

const (
	SortByExpectedDischarge SortKey = iota
	SortByPatientName
	SortByDepartment
	SortByBed
)

// ParseSortKey maps an API sort name to a SortKey. Unknown names fall back to the default.
func ParseSortKey(name string) SortKey {
	switch name {
	case "name", "patient_name":
		return SortByPatientName
	case "department":
		return SortByDepartment
	case "bed", "bed_id":
		return SortByBed
	default:
		return SortByExpectedDischarge
	}
}

// Ordering caller-chosen order of each bucket. The zero value sorts by expected discharge, ascending.
type Ordering struct {
	Key        SortKey
	Descending bool
}

// HoursUntil returns ceil((expected - now) / 1h).
func HoursUntil(expected, now time.Time) int {
	d := expected.Sub(now)
	hours := d / time.Hour
	if d%time.Hour > 0 {
		hours++
	}
	return int(hours)
}

// BucketFor places a single record. Records without a forecast, already past, or further than
// 48h out are BucketNotDue and never appear in Classify output.
func BucketFor(record models.PatientDischargeRecord, now time.Time) Bucket {
	if !record.HasForecast() {
		return BucketNotDue
	}
	expected := *record.ExpectedDischargeAt
	if expected.Before(now) || expected.After(now.Add(OuterHorizon)) {
		return BucketNotDue
	}
	if !expected.After(now.Add(UrgentHorizon)) {
		return BucketWithin24h
	}
	return BucketWithin48h
}

// Classify partitions records into the 24h and 48h discharge windows relative to now.
// Excluded records are dropped silently.
func Classify(records []models.PatientDischargeRecord, now time.Time, order Ordering) Classification {
	var out Classification
	for _, record := range records {
		bucket := BucketFor(record, now)
		if bucket == BucketNotDue {
			continue
		}
		result := ClassificationResult{
			Record:              record,
			HoursUntilDischarge: HoursUntil(*record.ExpectedDischargeAt, now),
			Bucket:              bucket,
		}
		if bucket == BucketWithin24h {
			out.Within24h = append(out.Within24h, result)
		} else {
			out.Within48h = append(out.Within48h, result)
		}
	}

	less := lessFunc(order.Key)
	sortResults(out.Within24h, less, order.Descending)
	sortResults(out.Within48h, less, order.Descending)
	return out
}

func sortResults(results []ClassificationResult, less func(a, b ClassificationResult) bool, desc bool) {
	sort.SliceStable(results, func(i, j int) bool {
		if desc {
			return less(results[j], results[i])
		}
		return less(results[i], results[j])
	})
}

func lessFunc(key SortKey) func(a, b ClassificationResult) bool {
	switch key {
	case SortByPatientName:
		// pt-BR collation so accented names sort next to their base letter
		c := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
		return func(a, b ClassificationResult) bool {
			return c.CompareString(a.Record.PatientName, b.Record.PatientName) < 0
		}
	case SortByDepartment:
		c := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
		return func(a, b ClassificationResult) bool {
			return c.CompareString(a.Record.Department, b.Record.Department) < 0
		}
	case SortByBed:
		return func(a, b ClassificationResult) bool {
			return a.Record.BedID < b.Record.BedID
		}
	default:
		return func(a, b ClassificationResult) bool {
			return a.Record.ExpectedDischargeAt.Before(*b.Record.ExpectedDischargeAt)
		}
	}
}
