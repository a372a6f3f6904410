// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"spectrallog/internal/log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig holds the broker connection settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retained bool
	Timeout  time.Duration
}

// publisher is the part of mqtt.Client the transport uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTTransport publishes every snapshot as a JSON message on one topic.
type MQTTTransport struct {
	client  publisher
	closer  func()
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
}

// NewMQTTTransport connects to the broker and returns a transport publishing
// on cfg.Topic.
func NewMQTTTransport(cfg MQTTConfig) (*MQTTTransport, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Infof("MQTTTransport: Connection established")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("MQTTTransport: Connection lost: %v", err)
	})
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	log.Infof("MQTTTransport: Connected to broker %s, topic %s", cfg.Broker, cfg.Topic)

	t := newMQTTTransport(client, cfg)
	t.closer = func() { client.Disconnect(250) }
	return t, nil
}

func newMQTTTransport(client publisher, cfg MQTTConfig) *MQTTTransport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &MQTTTransport{
		client:  client,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		retain:  cfg.Retained,
		timeout: timeout,
	}
}

// Send publishes s and waits up to the configured timeout for the broker to
// acknowledge it.
func (t *MQTTTransport) Send(s *Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	token := t.client.Publish(t.topic, t.qos, t.retain, payload)
	if !token.WaitTimeout(t.timeout) {
		return fmt.Errorf("publish to %s timed out after %s", t.topic, t.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", t.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (t *MQTTTransport) Close() error {
	if t.closer != nil {
		t.closer()
		log.Infof("MQTTTransport: Disconnected")
	}
	return nil
}

var _ Transport = (*MQTTTransport)(nil)
