package discharge

import (
	"testing"
	"time"

	"wisefido-discharge-board/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

func patient(id string, expected *time.Time) models.PatientDischargeRecord {
	return models.PatientDischargeRecord{
		PatientID:           id,
		PatientName:         "Paciente " + id,
		ExpectedDischargeAt: expected,
		Department:          "Clínica Médica",
		BedID:               "bed-" + id,
	}
}

func at(t time.Time) *time.Time {
	return &t
}

func ids(results []ClassificationResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Record.PatientID)
	}
	return out
}

func TestClassify_Boundaries(t *testing.T) {
	records := []models.PatientDischargeRecord{
		patient("exact24", at(refNow.Add(24*time.Hour))),
		patient("exact48", at(refNow.Add(48*time.Hour))),
		patient("beyond48", at(refNow.Add(48*time.Hour+time.Millisecond))),
		patient("now", at(refNow)),
	}

	got := Classify(records, refNow, Ordering{})

	require.Len(t, got.Within24h, 2)
	assert.Equal(t, []string{"now", "exact24"}, ids(got.Within24h))
	assert.Equal(t, 0, got.Within24h[0].HoursUntilDischarge)
	assert.Equal(t, 24, got.Within24h[1].HoursUntilDischarge)
	assert.Equal(t, BucketWithin24h, got.Within24h[1].Bucket)

	require.Len(t, got.Within48h, 1)
	assert.Equal(t, "exact48", got.Within48h[0].Record.PatientID)
	assert.Equal(t, 48, got.Within48h[0].HoursUntilDischarge)
	assert.Equal(t, BucketWithin48h, got.Within48h[0].Bucket)
}

func TestClassify_ExcludesPastAndMissing(t *testing.T) {
	records := []models.PatientDischargeRecord{
		patient("past", at(refNow.Add(-time.Minute))),
		patient("missing", nil),
		patient("zero", at(time.Time{})),
	}

	got := Classify(records, refNow, Ordering{})

	assert.Empty(t, got.Within24h)
	assert.Empty(t, got.Within48h)
	for _, r := range records {
		assert.Equal(t, BucketNotDue, BucketFor(r, refNow), r.PatientID)
	}
}

func TestClassify_MixedScenario(t *testing.T) {
	records := []models.PatientDischargeRecord{
		patient("p50", at(refNow.Add(50*time.Hour))),
		patient("p30", at(refNow.Add(30*time.Hour))),
		patient("p2", at(refNow.Add(2*time.Hour))),
	}

	got := Classify(records, refNow, Ordering{})

	require.Len(t, got.Within24h, 1)
	assert.Equal(t, "p2", got.Within24h[0].Record.PatientID)
	assert.Equal(t, 2, got.Within24h[0].HoursUntilDischarge)
	require.Len(t, got.Within48h, 1)
	assert.Equal(t, "p30", got.Within48h[0].Record.PatientID)
	assert.Equal(t, 30, got.Within48h[0].HoursUntilDischarge)
}

func TestClassify_Idempotent(t *testing.T) {
	records := []models.PatientDischargeRecord{
		patient("a", at(refNow.Add(5*time.Hour))),
		patient("b", at(refNow.Add(26*time.Hour))),
		patient("c", at(refNow.Add(time.Hour))),
	}

	first := Classify(records, refNow, Ordering{})
	second := Classify(records, refNow, Ordering{})

	assert.Equal(t, first, second)
	assert.Equal(t, "a", records[0].PatientID, "input order must not change")
}

func TestClassify_Ordering(t *testing.T) {
	records := []models.PatientDischargeRecord{
		{PatientID: "1", PatientName: "Óscar", Department: "UTI", BedID: "B2", ExpectedDischargeAt: at(refNow.Add(3 * time.Hour))},
		{PatientID: "2", PatientName: "ana", Department: "Cirurgia", BedID: "B3", ExpectedDischargeAt: at(refNow.Add(1 * time.Hour))},
		{PatientID: "3", PatientName: "Bruno", Department: "Pediatria", BedID: "B1", ExpectedDischargeAt: at(refNow.Add(2 * time.Hour))},
	}

	tests := []struct {
		name  string
		order Ordering
		want  []string
	}{
		{"default expected ascending", Ordering{}, []string{"2", "3", "1"}},
		{"expected descending", Ordering{Descending: true}, []string{"1", "3", "2"}},
		{"name collated", Ordering{Key: SortByPatientName}, []string{"2", "3", "1"}},
		{"department", Ordering{Key: SortByDepartment}, []string{"2", "3", "1"}},
		{"bed descending", Ordering{Key: SortByBed, Descending: true}, []string{"2", "1", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(records, refNow, tt.order)
			assert.Equal(t, tt.want, ids(got.Within24h))
		})
	}
}

func TestClassify_StableTies(t *testing.T) {
	same := refNow.Add(4 * time.Hour)
	records := []models.PatientDischargeRecord{
		patient("first", at(same)),
		patient("second", at(same)),
		patient("third", at(same)),
	}

	got := Classify(records, refNow, Ordering{})
	assert.Equal(t, []string{"first", "second", "third"}, ids(got.Within24h))
}

func TestHoursUntil_RoundsUp(t *testing.T) {
	assert.Equal(t, 1, HoursUntil(refNow.Add(time.Minute), refNow))
	assert.Equal(t, 1, HoursUntil(refNow.Add(time.Hour), refNow))
	assert.Equal(t, 2, HoursUntil(refNow.Add(time.Hour+time.Nanosecond), refNow))
	assert.Equal(t, 0, HoursUntil(refNow, refNow))
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortByPatientName, ParseSortKey("name"))
	assert.Equal(t, SortByDepartment, ParseSortKey("department"))
	assert.Equal(t, SortByBed, ParseSortKey("bed"))
	assert.Equal(t, SortByExpectedDischarge, ParseSortKey(""))
	assert.Equal(t, SortByExpectedDischarge, ParseSortKey("whatever"))
}
