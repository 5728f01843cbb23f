package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"wisefido-discharge-board/internal/board"
	"wisefido-discharge-board/internal/common/database"
	mqttcommon "wisefido-discharge-board/internal/common/mqtt"
	rediscommon "wisefido-discharge-board/internal/common/redis"
	"wisefido-discharge-board/internal/config"
	"wisefido-discharge-board/internal/consumer"
	"wisefido-discharge-board/internal/escalation"
	"wisefido-discharge-board/internal/events"
	"wisefido-discharge-board/internal/history"
	"wisefido-discharge-board/internal/repository"
	"wisefido-discharge-board/internal/telemetry"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// BoardService 出院看板服务进程: owns the connections and runs the rebuild loop,
// the event consumer, the indicator schedule and the HTTP server.
type BoardService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	history     *history.Store

	board    *Board
	requests *RequestService
	consumer *consumer.EventConsumer
	metrics  *telemetry.Metrics
	// refresh 写入后的重建请求, coalesced into one pending rebuild
	refresh chan string

	handler http.Handler
	server  *http.Server
	wg      sync.WaitGroup
}

// NewBoardService connects the database, Redis and the optional MQTT broker, history store and
// escalation sinks.
func NewBoardService(cfg *config.Config, metrics *telemetry.Metrics, logger *zap.Logger) (*BoardService, error) {
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	repo := repository.NewBoardRepository(db, database.Dialect(&cfg.Database), logger)

	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	kv := board.NewRedisKVStore(redisClient)

	s := &BoardService{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		metrics:     metrics,
		refresh:     make(chan string, 1),
	}

	var store HistoryStore
	if cfg.Indicators.HistoryPath != "" {
		h, err := history.Open(ctx, cfg.Indicators.HistoryPath)
		if err != nil {
			s.closeConnections()
			return nil, fmt.Errorf("failed to open indicator history: %w", err)
		}
		s.history = h
		store = h
	}

	var notifier OverdueNotifier
	if cfg.Escalation.Enabled {
		sinks := s.escalationSinks()
		if len(sinks) > 0 {
			notifier = escalation.NewNotifier(kv, sinks, metrics, logger)
		} else {
			logger.Warn("Escalation enabled but no sink configured")
		}
	}

	publisher := events.NewStreamPublisher(redisClient, cfg.Board.EventStream)
	s.board = NewBoard(Components{
		Reader:   repo,
		Cache:    kv,
		Notifier: notifier,
		History:  store,
		Metrics:  metrics,
	}, cfg.Location, cfg.Board.Department, cfg.CacheTTL(), logger)
	s.requests = NewRequestService(repo, publisher, s.board.Clock(), metrics, logger)

	if cfg.Board.TriggerMode == "events" {
		s.consumer = consumer.NewEventConsumer(
			redisClient,
			s.board,
			logger,
			cfg.Board.EventStream,
			cfg.Board.ConsumerGroup,
			cfg.Board.ConsumerName,
			int64(cfg.Board.BatchSize),
		)
	} else {
		// polling mode has no consumer; writes wake the refresh loop
		s.requests.OnChange(s.requestRefresh)
	}

	return s, nil
}

// escalationSinks MQTT when a broker is configured, Slack when a token is, the webhook when a URL is
func (s *BoardService) escalationSinks() []escalation.Sink {
	cfg := s.config
	var sinks []escalation.Sink

	if cfg.MQTT.Broker != "" && cfg.Escalation.MQTTTopic != "" {
		client, err := mqttcommon.NewClient(&cfg.MQTT, s.logger)
		if err != nil {
			s.logger.Warn("MQTT escalation disabled", zap.Error(err))
		} else {
			s.mqttClient = client
			sinks = append(sinks, escalation.NewMQTTSink(client, cfg.Escalation.MQTTTopic, client.QoS()))
		}
	}
	if cfg.Escalation.SlackToken != "" && cfg.Escalation.SlackChannel != "" {
		sinks = append(sinks, escalation.NewSlackSink(slack.New(cfg.Escalation.SlackToken), cfg.Escalation.SlackChannel))
	}
	if cfg.Escalation.WebhookURL != "" {
		sinks = append(sinks, escalation.NewWebhookSink(cfg.Escalation.WebhookURL))
	}
	return sinks
}

// Board board operations
func (s *BoardService) Board() *Board {
	return s.board
}

// Requests request operations
func (s *BoardService) Requests() *RequestService {
	return s.requests
}

// SetHandler HTTP handler served on cfg.HTTP.Addr by Start
func (s *BoardService) SetHandler(h http.Handler) {
	s.handler = h
}

// Start 启动服务; blocks until ctx is cancelled or a component fails.
func (s *BoardService) Start(ctx context.Context) error {
	s.logger.Info("Starting discharge board service",
		zap.String("trigger_mode", s.config.Board.TriggerMode),
		zap.String("reference_timezone", s.config.Discharge.ReferenceTimezone),
		zap.String("department", s.config.Board.Department),
	)

	errChan := make(chan error, 3)

	if s.handler != nil {
		s.server = &http.Server{
			Addr:              s.config.HTTP.Addr,
			Handler:           s.handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.logger.Info("HTTP server listening", zap.String("addr", s.config.HTTP.Addr))
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if s.history != nil {
		if err := s.startIndicatorSchedule(ctx); err != nil {
			return err
		}
	}

	if s.consumer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.consumer.Start(ctx); err != nil {
				errChan <- fmt.Errorf("event consumer: %w", err)
			}
		}()
	}

	// wait times grow with the clock, so the board is refreshed periodically in both modes
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPolling(ctx)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

// requestRefresh queues a rebuild without waiting for it. A rebuild already queued absorbs the request.
func (s *BoardService) requestRefresh(_ context.Context, reason string) {
	select {
	case s.refresh <- reason:
	default:
		s.logger.Debug("Board refresh already queued", zap.String("reason", reason))
	}
}

// runPolling 轮询重建看板
func (s *BoardService) runPolling(ctx context.Context) {
	interval := s.config.PollingInterval()
	s.logger.Info("Board refresh loop started", zap.Duration("interval", interval))

	if err := s.board.Rebuild(ctx, "startup"); err != nil {
		s.logger.Error("Initial board rebuild failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.board.Rebuild(ctx, "poll"); err != nil {
				s.logger.Error("Board rebuild failed", zap.Error(err))
			}
		case reason := <-s.refresh:
			if err := s.board.Rebuild(ctx, reason); err != nil {
				s.logger.Warn("Board rebuild after change failed", zap.String("reason", reason), zap.Error(err))
			}
		}
	}
}

// ParseSchedule 5-field cron expression (minute hour dom month dow)
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid indicators schedule %q: %w", expr, err)
	}
	return sched, nil
}

func (s *BoardService) startIndicatorSchedule(ctx context.Context) error {
	expr := strings.TrimSpace(s.config.Indicators.Schedule)
	if expr == "" {
		s.logger.Info("Indicator snapshots disabled (no schedule)")
		return nil
	}
	sched, err := ParseSchedule(expr)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runSchedule(ctx, sched, s.board.Location(), s.logger, func(ctx context.Context) {
			if _, err := s.board.TakeSnapshot(ctx); err != nil {
				s.logger.Error("Indicator snapshot failed", zap.Error(err))
			}
		})
	}()
	return nil
}

// runSchedule calls job at every activation of sched in loc until ctx is cancelled.
func runSchedule(ctx context.Context, sched cron.Schedule, loc *time.Location, logger *zap.Logger, job func(context.Context)) {
	for {
		now := time.Now().In(loc)
		next := sched.Next(now)
		logger.Info("Next indicator snapshot", zap.Time("at", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			job(ctx)
		}
	}
}

// Stop 停止服务
func (s *BoardService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping discharge board service")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP server shutdown", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for background loops")
	}

	s.closeConnections()
	return nil
}

func (s *BoardService) closeConnections() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warn("Failed to close history store", zap.Error(err))
		}
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}
