package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/slack-go/slack"
)

// Sink one delivery channel for overdue alerts
type Sink interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// MQTTPublisher implemented by common/mqtt.Client
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTSink publishes the alert JSON to a topic
type MQTTSink struct {
	client MQTTPublisher
	topic  string
	qos    byte
}

func NewMQTTSink(client MQTTPublisher, topic string, qos byte) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: qos}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Send(_ context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	return s.client.Publish(s.topic, s.qos, false, payload)
}

// SlackSink posts the alert text to a channel
type SlackSink struct {
	api     *slack.Client
	channel string
}

func NewSlackSink(api *slack.Client, channel string) *SlackSink {
	return &SlackSink{api: api, channel: channel}
}

func (s *SlackSink) Name() string { return "slack" }

func (s *SlackSink) Send(ctx context.Context, alert Alert) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(":rotating_light: "+alert.Text(), false),
	)
	if err != nil {
		return fmt.Errorf("failed to post to slack channel %s: %w", s.channel, err)
	}
	return nil
}

// WebhookSink POSTs the alert JSON to a URL
type WebhookSink struct {
	client *resty.Client
	url    string
}

func NewWebhookSink(url string) *WebhookSink {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Content-Type", "application/json")
	return &WebhookSink{client: client, url: url}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, alert Alert) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(alert).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
