package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // REFERENCE_TIMEZONE must resolve on hosts without a zoneinfo database

	"wisefido-discharge-board/internal/common/config"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingTimezone REFERENCE_TIMEZONE was not configured
var ErrMissingTimezone = errors.New("reference timezone is required (REFERENCE_TIMEZONE)")

// Config 出院看板服务配置
type Config struct {
	Database config.DatabaseConfig `yaml:"database"`
	Redis    config.RedisConfig    `yaml:"redis"`
	MQTT     config.MQTTConfig     `yaml:"mqtt"`

	Board struct {
		// polling: rebuild every Polling.Interval seconds; events: rebuild on Redis Streams events
		TriggerMode string `yaml:"trigger_mode"`
		Polling     struct {
			Interval int `yaml:"interval"` // seconds
		} `yaml:"polling"`
		CacheTTL      int    `yaml:"cache_ttl"` // seconds
		EventStream   string `yaml:"event_stream"`
		ConsumerGroup string `yaml:"consumer_group"`
		ConsumerName  string `yaml:"consumer_name"`
		BatchSize     int    `yaml:"batch_size"`
		Department    string `yaml:"department"` // empty = whole hospital
	} `yaml:"board"`

	Discharge struct {
		ReferenceTimezone string `yaml:"reference_timezone"`
	} `yaml:"discharge"`

	Escalation struct {
		Enabled      bool   `yaml:"enabled"`
		MQTTTopic    string `yaml:"mqtt_topic"`
		SlackToken   string `yaml:"slack_token"`
		SlackChannel string `yaml:"slack_channel"`
		WebhookURL   string `yaml:"webhook_url"`
	} `yaml:"escalation"`

	Indicators struct {
		Schedule    string `yaml:"schedule"` // 5-field cron, evaluated in the reference timezone
		HistoryPath string `yaml:"history_path"`
	} `yaml:"indicators"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Telemetry struct {
		OTLPEndpoint string `yaml:"otlp_endpoint"`
	} `yaml:"telemetry"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	// Location resolved from Discharge.ReferenceTimezone
	Location *time.Location `yaml:"-"`
}

// Load 加载配置: defaults, then config.yaml (CONFIG_PATH), then environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	path := getEnv("CONFIG_PATH", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Discharge.ReferenceTimezone == "" {
		return nil, ErrMissingTimezone
	}
	loc, err := time.LoadLocation(cfg.Discharge.ReferenceTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid reference timezone %q: %w", cfg.Discharge.ReferenceTimezone, err)
	}
	cfg.Location = loc

	if cfg.Board.TriggerMode != "polling" && cfg.Board.TriggerMode != "events" {
		return nil, fmt.Errorf("invalid trigger mode %q (polling|events)", cfg.Board.TriggerMode)
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}

	cfg.Database.Driver = "postgres"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "leitos"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5

	cfg.Redis.Addr = "localhost:6379"

	cfg.MQTT.ClientID = "discharge-board"
	cfg.MQTT.QoS = 1

	cfg.Board.TriggerMode = "polling"
	cfg.Board.Polling.Interval = 60
	cfg.Board.CacheTTL = 300
	cfg.Board.EventStream = "discharge:events"
	cfg.Board.ConsumerGroup = "discharge-board-group"
	cfg.Board.ConsumerName = "discharge-board-1"
	cfg.Board.BatchSize = 10

	cfg.Escalation.Enabled = true
	cfg.Escalation.MQTTTopic = "hospital/discharge/overdue"

	cfg.Indicators.Schedule = "0 19 * * *"
	cfg.Indicators.HistoryPath = "./discharge-history.db"

	cfg.HTTP.Addr = ":8090"

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.Database.LoadFromEnv("DB")
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Board.TriggerMode = getEnv("BOARD_TRIGGER_MODE", cfg.Board.TriggerMode)
	cfg.Board.Polling.Interval = getEnvInt("BOARD_POLLING_INTERVAL", cfg.Board.Polling.Interval)
	cfg.Board.CacheTTL = getEnvInt("BOARD_CACHE_TTL", cfg.Board.CacheTTL)
	cfg.Board.EventStream = getEnv("BOARD_EVENT_STREAM", cfg.Board.EventStream)
	cfg.Board.ConsumerGroup = getEnv("BOARD_CONSUMER_GROUP", cfg.Board.ConsumerGroup)
	cfg.Board.ConsumerName = getEnv("BOARD_CONSUMER_NAME", cfg.Board.ConsumerName)
	cfg.Board.BatchSize = getEnvInt("BOARD_BATCH_SIZE", cfg.Board.BatchSize)
	cfg.Board.Department = getEnv("BOARD_DEPARTMENT", cfg.Board.Department)

	cfg.Discharge.ReferenceTimezone = getEnv("REFERENCE_TIMEZONE", cfg.Discharge.ReferenceTimezone)

	if v := os.Getenv("ESCALATION_ENABLED"); v != "" {
		cfg.Escalation.Enabled = v == "true"
	}
	cfg.Escalation.MQTTTopic = getEnv("ESCALATION_MQTT_TOPIC", cfg.Escalation.MQTTTopic)
	cfg.Escalation.SlackToken = getEnv("SLACK_BOT_TOKEN", cfg.Escalation.SlackToken)
	cfg.Escalation.SlackChannel = getEnv("SLACK_CHANNEL", cfg.Escalation.SlackChannel)
	cfg.Escalation.WebhookURL = getEnv("ESCALATION_WEBHOOK_URL", cfg.Escalation.WebhookURL)

	cfg.Indicators.Schedule = getEnv("INDICATORS_SCHEDULE", cfg.Indicators.Schedule)
	cfg.Indicators.HistoryPath = getEnv("INDICATORS_HISTORY_PATH", cfg.Indicators.HistoryPath)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Telemetry.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

// CacheTTL board cache expiry
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Board.CacheTTL) * time.Second
}

// PollingInterval board rebuild cadence in polling mode
func (c *Config) PollingInterval() time.Duration {
	return time.Duration(c.Board.Polling.Interval) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}
