package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wisefido-discharge-board/internal/board"
	"wisefido-discharge-board/internal/discharge"
	"wisefido-discharge-board/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSink struct {
	mu     sync.Mutex
	name   string
	err    error
	alerts []Alert
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Send(_ context.Context, alert Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return f.err
}

func newClaims(t *testing.T) (*miniredis.Miniredis, *board.RedisKVStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, board.NewRedisKVStore(client)
}

func pendingFixture(now time.Time) []discharge.PendingDischarge {
	requests := []models.DischargeRequest{
		{RequestID: "r-late", PatientName: "Maria", Department: "UTI", BedID: "B-01",
			RequestedAt: now.Add(-2 * time.Hour), Status: models.RequestPending},
		{RequestID: "r-old", PatientName: "João", Department: "UTI", BedID: "B-02",
			RequestedAt: now.Add(-30 * time.Hour), Status: models.RequestPending},
	}
	return discharge.EvaluatePending(requests, now, time.UTC)
}

func TestNotifyOverdue_OncePerRequest(t *testing.T) {
	mr, claims := newClaims(t)
	mqttSink := &fakeSink{name: "mqtt"}
	slackSink := &fakeSink{name: "slack"}
	n := NewNotifier(claims, []Sink{mqttSink, slackSink}, nil, zap.NewNop())

	// 10:00 UTC: r-late (08:00 today) waits 3h, r-old (04:00 yesterday) waits 27h
	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)
	sent, err := n.NotifyOverdue(context.Background(), pendingFixture(now), now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, mqttSink.alerts, 1)
	assert.Equal(t, "r-old", mqttSink.alerts[0].RequestID)
	assert.Equal(t, 27, mqttSink.alerts[0].WaitHours)
	assert.Len(t, slackSink.alerts, 1)

	assert.True(t, mr.Exists("discharge-board:escalated:r-old"))
	assert.Equal(t, EscalatedKeyTTL, mr.TTL("discharge-board:escalated:r-old"))

	sent, err = n.NotifyOverdue(context.Background(), pendingFixture(now), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, mqttSink.alerts, 1)
}

func TestNotifyOverdue_PartialSinkFailure(t *testing.T) {
	_, claims := newClaims(t)
	broken := &fakeSink{name: "webhook", err: errors.New("503")}
	ok := &fakeSink{name: "mqtt"}
	n := NewNotifier(claims, []Sink{broken, ok}, nil, zap.NewNop())

	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)
	sent, err := n.NotifyOverdue(context.Background(), pendingFixture(now), now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Len(t, broken.alerts, 1)
	assert.Len(t, ok.alerts, 1)
}

func TestNotifyOverdue_AllSinksFailReleasesClaim(t *testing.T) {
	mr, claims := newClaims(t)
	broken := &fakeSink{name: "slack", err: errors.New("invalid_auth")}
	n := NewNotifier(claims, []Sink{broken}, nil, zap.NewNop())

	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)
	sent, err := n.NotifyOverdue(context.Background(), pendingFixture(now), now)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.False(t, mr.Exists("discharge-board:escalated:r-old"))

	// retried on the next pass
	_, err = n.NotifyOverdue(context.Background(), pendingFixture(now), now)
	require.NoError(t, err)
	assert.Len(t, broken.alerts, 2)
}

func TestNotifyOverdue_NoSinks(t *testing.T) {
	mr, claims := newClaims(t)
	n := NewNotifier(claims, nil, nil, zap.NewNop())

	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)
	sent, err := n.NotifyOverdue(context.Background(), pendingFixture(now), now)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, mr.Keys())
}

func TestAlertText(t *testing.T) {
	a := Alert{PatientName: "Maria", Department: "UTI", BedID: "B-01", WaitHours: 6, WaitMinutes: 5}
	assert.Equal(t, "Alta pendente há 6h05m: Maria (UTI, leito B-01). Conclusão exige justificativa.", a.Text())
}
