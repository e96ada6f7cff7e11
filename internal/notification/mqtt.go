package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"loom-maintenance-backend/config"
	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/model"
)

const mqttTimeout = 5 * time.Second

var errMQTTTimeout = errors.New("mqtt: timed out")

// publisher is the part of mqtt.Client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes notifications as JSON to <prefix>/notifications, so
// shop-floor displays can subscribe to them.
type MQTTSink struct {
	client mqtt.Client
	pub    publisher
	topic  string
}

// NewMQTTSink connects to the configured broker.
func NewMQTTSink(cfg config.MQTTConfig) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts = opts.SetAutoReconnect(true).SetConnectTimeout(mqttTimeout)
	if cfg.Username != "" {
		opts = opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", cfg.Broker, errMQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", cfg.Broker, err)
	}
	logs.Logger.WithField("broker", cfg.Broker).Info("connected to MQTT broker")
	return &MQTTSink{client: client, pub: client, topic: notificationTopic(cfg.TopicPrefix)}, nil
}

func notificationTopic(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return "notifications"
	}
	return prefix + "/notifications"
}

func (m *MQTTSink) Name() string { return "mqtt" }

func (m *MQTTSink) Deliver(ctx context.Context, n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	token := m.pub.Publish(m.topic, 0, false, data)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttTimeout):
		return errMQTTTimeout
	}
}

// Close disconnects from the broker.
func (m *MQTTSink) Close() {
	if m.client != nil {
		m.client.Disconnect(250)
	}
}
