package escalation

import (
	"context"
	"fmt"
	"time"

	"wisefido-discharge-board/internal/discharge"
	"wisefido-discharge-board/internal/telemetry"

	"go.uber.org/zap"
)

// EscalatedKeyTTL how long an escalated request stays marked
const EscalatedKeyTTL = 48 * time.Hour

// Claims marks requests as escalated; board.KVStore satisfies it.
type Claims interface {
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// Notifier 超时告警通知器: alerts once per overdue request on every sink.
type Notifier struct {
	claims  Claims
	sinks   []Sink
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

func NewNotifier(claims Claims, sinks []Sink, metrics *telemetry.Metrics, logger *zap.Logger) *Notifier {
	return &Notifier{
		claims:  claims,
		sinks:   sinks,
		metrics: metrics,
		logger:  logger,
	}
}

func escalatedKey(requestID string) string {
	return fmt.Sprintf("discharge-board:escalated:%s", requestID)
}

// NotifyOverdue alerts the overdue entries of pending that were not alerted before and returns
// how many were sent. A failing sink is logged and does not stop the others; when every sink
// fails the claim is released so the next rebuild retries.
func (n *Notifier) NotifyOverdue(ctx context.Context, pending []discharge.PendingDischarge, now time.Time) (int, error) {
	if len(n.sinks) == 0 {
		return 0, nil
	}

	sent := 0
	for _, p := range discharge.Overdue(pending) {
		key := escalatedKey(p.Request.RequestID)
		first, err := n.claims.SetNX(ctx, key, now.UTC().Format(time.RFC3339), EscalatedKeyTTL)
		if err != nil {
			return sent, fmt.Errorf("failed to claim escalation for %s: %w", p.Request.RequestID, err)
		}
		if !first {
			continue
		}

		alert := NewAlert(p, now)
		delivered := 0
		for _, sink := range n.sinks {
			err := sink.Send(ctx, alert)
			n.metrics.RecordEscalation(ctx, sink.Name(), err)
			if err != nil {
				n.logger.Warn("Escalation sink failed",
					zap.String("sink", sink.Name()),
					zap.String("request_id", alert.RequestID),
					zap.Error(err),
				)
				continue
			}
			delivered++
		}

		if delivered == 0 {
			if err := n.claims.Del(ctx, key); err != nil {
				n.logger.Warn("Failed to release escalation claim", zap.String("key", key), zap.Error(err))
			}
			continue
		}

		n.logger.Info("Overdue discharge escalated",
			zap.String("request_id", alert.RequestID),
			zap.String("bed_id", alert.BedID),
			zap.Int("wait_hours", alert.WaitHours),
			zap.Int("sinks", delivered),
		)
		sent++
	}
	return sent, nil
}
