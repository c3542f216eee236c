package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout    = 10 * time.Second
	maxReconnectDelay = time.Minute
	quiesceMillis     = 250
)

var (
	ErrTimeout    = errors.New("timeout waiting for MQTT broker")
	errEmptyTopic = errors.New("empty topic")
	errEmptyID    = errors.New("empty ID")
	errNoBroker   = errors.New("empty broker URL")
)

type Handler func(topic string, msg map[string]any) error

type PubSub interface {
	Publish(ctx context.Context, topic string, msg any) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Unsubscribe(ctx context.Context, topic string) error
	Disconnect(ctx context.Context) error
}

// Config holds the broker connection settings. An empty URL disables
// publishing.
type Config struct {
	URL      string        `env:"URL"      envDefault:""`
	Username string        `env:"USERNAME" envDefault:""`
	Password string        `env:"PASSWORD" envDefault:""`
	QoS      byte          `env:"QOS"      envDefault:"1"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"30s"`
}

type pubsub struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	subs map[string]Handler
}

// NewPubSub connects to the broker as id. The session is clean, so active
// subscriptions are restored on every reconnect. A last will on
// StatusTopic(id) tells subscribers when the process disappears.
func NewPubSub(cfg Config, id string, logger *slog.Logger) (PubSub, error) {
	switch {
	case id == "":
		return nil, errEmptyID
	case cfg.URL == "":
		return nil, errNoBroker
	}

	ps := &pubsub{
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
		logger:  logger.With(slog.String("mqtt_client_id", id)),
		subs:    make(map[string]Handler),
	}

	will, err := json.Marshal(map[string]string{"state": "offline", "client_id": id})
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(id).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetMaxReconnectInterval(maxReconnectDelay).
		SetBinaryWill(StatusTopic(id), will, cfg.QoS, false).
		SetOnConnectHandler(ps.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			ps.logger.Warn("MQTT connection lost", slog.Any("error", err))
		})

	ps.client = mqtt.NewClient(opts)
	if err := ps.wait(context.Background(), ps.client.Connect()); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.URL, err)
	}

	return ps, nil
}

func (ps *pubsub) Publish(ctx context.Context, topic string, msg any) error {
	if topic == "" {
		return errEmptyTopic
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", topic, err)
	}

	return ps.wait(ctx, ps.client.Publish(topic, ps.qos, false, data))
}

func (ps *pubsub) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if topic == "" {
		return errEmptyTopic
	}

	if err := ps.wait(ctx, ps.client.Subscribe(topic, ps.qos, ps.messageHandler(handler))); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	ps.mu.Lock()
	ps.subs[topic] = handler
	ps.mu.Unlock()

	return nil
}

func (ps *pubsub) Unsubscribe(ctx context.Context, topic string) error {
	if topic == "" {
		return errEmptyTopic
	}

	ps.mu.Lock()
	delete(ps.subs, topic)
	ps.mu.Unlock()

	if err := ps.wait(ctx, ps.client.Unsubscribe(topic)); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", topic, err)
	}

	return nil
}

func (ps *pubsub) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ps.client.Disconnect(quiesceMillis)

	return nil
}

// wait blocks until the token completes, ctx is done or the configured
// timeout elapses, whichever happens first.
func (ps *pubsub) wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(ps.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}

func (ps *pubsub) onConnect(c mqtt.Client) {
	ps.mu.Lock()
	subs := maps.Clone(ps.subs)
	ps.mu.Unlock()

	ps.logger.Info("MQTT connection established", slog.Int("subscriptions", len(subs)))
	for topic, h := range subs {
		// Waiting on the token inside the connect callback would block paho.
		c.Subscribe(topic, ps.qos, ps.messageHandler(h))
	}
}

func (ps *pubsub) messageHandler(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		defer m.Ack()

		var msg map[string]any
		if err := json.Unmarshal(m.Payload(), &msg); err != nil {
			ps.logger.Warn("Failed to decode MQTT message", slog.String("topic", m.Topic()), slog.Any("error", err))

			return
		}

		if err := h(m.Topic(), msg); err != nil {
			ps.logger.Warn("Failed to handle MQTT message", slog.String("topic", m.Topic()), slog.Any("error", err))
		}
	}
}
