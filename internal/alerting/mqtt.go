// Package alerting publishes twin state changes to an MQTT broker so
// external consumers (wall displays, alert relays) can follow the room
// without polling the HTTP API.
package alerting

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"farmlab_twin/internal/logger"
	"farmlab_twin/internal/models"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	deviceTopicFmt  = "farmlab/devices/%s"
	warningTopicFmt = "farmlab/warnings/%s"
)

// Config holds the broker connection settings.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
}

// MQTTNotifier implements the notifier seam over an MQTT broker.
// Publishes are best-effort: a failed publish is logged, never surfaced
// to the caller.
type MQTTNotifier struct {
	client mqtt.Client
	log    *logger.Logger
}

type devicePayload struct {
	Device string `json:"device"`
	State  string `json:"state"`
	At     string `json:"at"`
}

type warningPayload struct {
	Channel string `json:"channel"`
	Level   string `json:"level"`
	At      string `json:"at"`
}

// New connects to the broker, retrying with exponential backoff so a
// broker that comes up after us does not sink the whole process.
func New(cfg Config, log *logger.Logger) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)

	connect := func() error {
		token := client.Connect()
		if !token.WaitTimeout(connectTimeout) {
			return fmt.Errorf("mqtt connect to %s: timeout", cfg.BrokerURL)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect to %s: %w", cfg.BrokerURL, err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = time.Minute
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, err
	}

	log.Infow("mqtt notifier connected", "broker", cfg.BrokerURL, "client_id", cfg.ClientID)
	return &MQTTNotifier{client: client, log: log}, nil
}

// DeviceChanged publishes the new state to farmlab/devices/<device>.
func (n *MQTTNotifier) DeviceChanged(d models.Device, state models.DeviceState) {
	n.publish(fmt.Sprintf(deviceTopicFmt, d), devicePayload{
		Device: string(d),
		State:  string(state),
		At:     time.Now().UTC().Format(time.RFC3339),
	})
}

// WarningChanged publishes the new level to farmlab/warnings/<channel>,
// retained so late subscribers see the current level immediately.
func (n *MQTTNotifier) WarningChanged(ch models.Channel, level models.WarningLevel) {
	n.publishRetained(fmt.Sprintf(warningTopicFmt, ch), warningPayload{
		Channel: string(ch),
		Level:   string(level),
		At:      time.Now().UTC().Format(time.RFC3339),
	})
}

// Close disconnects from the broker, flushing outstanding publishes.
func (n *MQTTNotifier) Close() {
	n.client.Disconnect(uint(publishTimeout.Milliseconds()))
}

func (n *MQTTNotifier) publish(topic string, v any) {
	n.publishWith(topic, v, false)
}

func (n *MQTTNotifier) publishRetained(topic string, v any) {
	n.publishWith(topic, v, true)
}

func (n *MQTTNotifier) publishWith(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		n.log.Errorw("mqtt payload marshal failed", "topic", topic, "err", err)
		return
	}
	token := n.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		n.log.Warnw("mqtt publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		n.log.Warnw("mqtt publish failed", "topic", topic, "err", err)
	}
}
