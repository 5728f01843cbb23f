package events

import (
	"context"
	"testing"
	"time"

	rediscommon "wisefido-discharge-board/internal/common/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DataField(t *testing.T) {
	msg := rediscommon.StreamMessage{ID: "1-0", Values: map[string]interface{}{
		"data":      `{"event_type":"discharge.requested","request_id":"r-1","bed_id":"B-01","timestamp":1710000000}`,
		"timestamp": "1710000000",
	}}

	event, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, DischargeRequested, event.EventType)
	assert.Equal(t, "r-1", event.RequestID)
	assert.Equal(t, "B-01", event.BedID)
}

func TestParse_FlatFields(t *testing.T) {
	msg := rediscommon.StreamMessage{ID: "1-0", Values: map[string]interface{}{
		"event_type": "bed.status_changed",
		"bed_id":     "B-07",
		"department": "UTI",
	}}

	event, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, BedStatusChanged, event.EventType)
	assert.Equal(t, "UTI", event.Department)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(rediscommon.StreamMessage{Values: map[string]interface{}{"data": "{"}})
	assert.Error(t, err)

	_, err = Parse(rediscommon.StreamMessage{Values: map[string]interface{}{"bed_id": "B-01"}})
	assert.Error(t, err)
}

func TestAffectsBoard(t *testing.T) {
	for _, et := range []string{PatientAdmitted, PatientTransferred, PatientForecastChanged,
		DischargeRequested, DischargeCompleted, DischargeCancelled, BedStatusChanged} {
		assert.True(t, AffectsBoard(et), et)
	}
	assert.False(t, AffectsBoard("device.bound"))
}

func TestStreamPublisher_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := NewStreamPublisher(client, "discharge:events")
	event := New(DischargeCompleted, time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC))
	event.RequestID = "r-9"
	require.NoError(t, pub.Publish(context.Background(), event))

	entries, err := client.XRange(context.Background(), "discharge:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	parsed, err := Parse(rediscommon.StreamMessage{ID: entries[0].ID, Values: entries[0].Values})
	require.NoError(t, err)
	assert.Equal(t, DischargeCompleted, parsed.EventType)
	assert.Equal(t, "r-9", parsed.RequestID)
	assert.Equal(t, event.Timestamp, parsed.Timestamp)
}
