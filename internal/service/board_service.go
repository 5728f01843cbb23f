package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-discharge-board/internal/board"
	"wisefido-discharge-board/internal/discharge"
	"wisefido-discharge-board/internal/indicators"
	"wisefido-discharge-board/internal/models"
	"wisefido-discharge-board/internal/telemetry"

	"go.uber.org/zap"
)

// ErrHistoryDisabled no history store configured
var ErrHistoryDisabled = errors.New("indicator history is disabled")

// Components collaborators of the board service; NewBoardService builds them from config.
type Components struct {
	Reader   BoardReader
	Cache    board.KVStore
	Notifier OverdueNotifier // nil disables escalation
	History  HistoryStore    // nil disables snapshots
	Metrics  *telemetry.Metrics
}

// Board 出院看板服务: board rebuilds, escalation and indicators.
type Board struct {
	reader   BoardReader
	builder  *board.Builder
	cache    *board.CacheManager
	notifier OverdueNotifier
	history  HistoryStore
	metrics  *telemetry.Metrics
	logger   *zap.Logger

	loc *time.Location
	now func() time.Time

	rebuildMu sync.Mutex
}

// NewBoard wires the board over its collaborators.
func NewBoard(c Components, loc *time.Location, department string, cacheTTL time.Duration, logger *zap.Logger) *Board {
	if loc == nil {
		loc = time.UTC
	}
	return &Board{
		reader:   c.Reader,
		builder:  board.NewBuilder(c.Reader, discharge.NewWaitClock(loc), department, logger),
		cache:    board.NewCacheManager(c.Cache, cacheTTL, logger),
		notifier: c.Notifier,
		history:  c.History,
		metrics:  c.Metrics,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
	}
}

// Location reference timezone of the board
func (b *Board) Location() *time.Location {
	return b.loc
}

// Clock wait clock of the board
func (b *Board) Clock() *discharge.WaitClock {
	return b.builder.Clock()
}

// Rebuild rebuilds and caches the board, then escalates newly overdue requests.
func (b *Board) Rebuild(ctx context.Context, reason string) error {
	_, err := b.rebuild(ctx, reason)
	return err
}

func (b *Board) rebuild(ctx context.Context, reason string) (*models.DischargeBoard, error) {
	snapshot, now, err := b.buildAndCache(ctx, reason)
	if err != nil {
		return nil, err
	}
	// escalation runs outside rebuildMu; a slow sink must not hold up other rebuilds.
	// Concurrent runs are deduplicated by the notifier's per-request marker.
	b.escalate(ctx, snapshot, now)
	return snapshot, nil
}

func (b *Board) buildAndCache(ctx context.Context, reason string) (*models.DischargeBoard, time.Time, error) {
	b.rebuildMu.Lock()
	defer b.rebuildMu.Unlock()

	start := time.Now()
	now := b.now()

	snapshot, err := b.builder.Build(ctx, now)
	if err != nil {
		b.metrics.RecordRebuild(ctx, reason, time.Since(start), err)
		return nil, now, fmt.Errorf("board rebuild (%s): %w", reason, err)
	}
	// an unreachable cache still serves the live board; readers rebuild on miss
	cacheErr := b.cache.UpdateBoardCache(ctx, snapshot)
	if cacheErr != nil {
		b.logger.Warn("Failed to cache board", zap.String("reason", reason), zap.Error(cacheErr))
	}
	b.metrics.RecordRebuild(ctx, reason, time.Since(start), cacheErr)

	b.logger.Debug("Board rebuilt",
		zap.String("reason", reason),
		zap.Int("within_24h", snapshot.Within24hCount),
		zap.Int("within_48h", snapshot.Within48hCount),
		zap.Int("pending", snapshot.PendingCount),
		zap.Int("overdue", snapshot.OverdueCount),
		zap.Duration("duration", time.Since(start)),
	)
	return snapshot, now, nil
}

func (b *Board) escalate(ctx context.Context, snapshot *models.DischargeBoard, now time.Time) {
	if b.notifier == nil || snapshot.OverdueCount == 0 {
		return
	}
	sent, err := b.notifier.NotifyOverdue(ctx, pendingFromBoard(snapshot), now)
	if err != nil {
		b.logger.Error("Failed to escalate overdue discharges", zap.Error(err))
	} else if sent > 0 {
		b.logger.Info("Escalated overdue discharges", zap.Int("count", sent))
	}
}

// Current cached board; a cache miss rebuilds it.
func (b *Board) Current(ctx context.Context) (*models.DischargeBoard, error) {
	cached, err := b.cache.GetBoard(ctx)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, board.ErrCacheMiss) {
		b.logger.Warn("Board cache unavailable, building live", zap.Error(err))
	}
	// reads never escalate; the refresh loop does
	snapshot, _, err := b.buildAndCache(ctx, "cache_miss")
	return snapshot, err
}

// Sorted live board with a caller ordering; not cached.
func (b *Board) Sorted(ctx context.Context, order discharge.Ordering) (*models.DischargeBoard, error) {
	return b.builder.BuildWithOrder(ctx, b.now(), order)
}

// Indicators live occupancy and today's discharge timing.
func (b *Board) Indicators(ctx context.Context) (*indicators.Snapshot, error) {
	now := b.now()

	beds, err := b.reader.ListBeds(ctx)
	if err != nil {
		return nil, err
	}
	from, to := indicators.DayBounds(now, b.loc)
	requests, err := b.reader.ListRequestsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &indicators.Snapshot{
		Day:       indicators.DayKey(now, b.loc),
		TakenAt:   now.UTC(),
		Occupancy: indicators.ComputeOccupancy(beds),
		Timing:    indicators.ComputeTimingBetween(requests, from, to, b.loc),
	}, nil
}

// TakeSnapshot stores today's indicators in the history.
func (b *Board) TakeSnapshot(ctx context.Context) (*indicators.Snapshot, error) {
	if b.history == nil {
		return nil, ErrHistoryDisabled
	}
	snap, err := b.Indicators(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.history.Save(ctx, *snap); err != nil {
		return nil, err
	}
	b.logger.Info("Indicator snapshot saved",
		zap.String("day", snap.Day),
		zap.Float64("occupancy_rate", snap.Occupancy.Total.OccupancyRate),
		zap.Int("completed", snap.Timing.Completed),
	)
	return snap, nil
}

// History stored snapshots between from and to (YYYY-MM-DD, inclusive; empty = open).
func (b *Board) History(ctx context.Context, from, to string) ([]indicators.Snapshot, error) {
	if b.history == nil {
		return nil, ErrHistoryDisabled
	}
	return b.history.List(ctx, from, to)
}

func pendingFromBoard(snapshot *models.DischargeBoard) []discharge.PendingDischarge {
	pending := make([]discharge.PendingDischarge, 0, len(snapshot.PendingDischarges))
	for _, d := range snapshot.PendingDischarges {
		pending = append(pending, discharge.PendingDischarge{
			Request: d.DischargeRequest,
			Wait: discharge.WaitTimeResult{
				Hours:     d.WaitHours,
				Minutes:   d.WaitMinutes,
				IsOverdue: d.IsOverdue,
			},
		})
	}
	return pending
}
