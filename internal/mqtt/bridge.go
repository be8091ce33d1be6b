// Package mqtt accepts commands from an MQTT topic and publishes their
// outcome to another.
package mqtt

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightcmd/internal/config"
	"github.com/dokzlo13/lightcmd/internal/eventbus"
	"github.com/dokzlo13/lightcmd/internal/interpreter"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// ErrUnauthorized is returned for messages whose key does not match.
var ErrUnauthorized = errors.New("unauthorized")

// Executor runs a single command.
type Executor interface {
	Execute(ctx context.Context, req interpreter.Request) error
}

// publisher is the part of pahomqtt.Client used to send results.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// Bridge connects the broker to the interpreter.
type Bridge struct {
	cfg  config.MQTTConfig
	key  string
	exec Executor

	client pahomqtt.Client

	mu  sync.RWMutex
	pub publisher // set once connected
}

// NewBridge creates a bridge. Messages must carry key to be executed.
func NewBridge(cfg config.MQTTConfig, key string, exec Executor) *Bridge {
	return &Bridge{cfg: cfg, key: key, exec: exec}
}

// Subscribe publishes the outcome of every MQTT-originated command to the
// result topic.
func (b *Bridge) Subscribe(bus *eventbus.Bus) {
	bus.SubscribeAll(func(e eventbus.Event) {
		pub := b.resultPublisher()
		if e.Source != "mqtt" || pub == nil {
			return
		}
		payload, err := resultPayload(e)
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode MQTT result")
			return
		}
		token := pub.Publish(b.cfg.ResultTopic, b.cfg.QoS, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			log.Warn().Str("request_id", e.RequestID).Msg("MQTT result publish timed out")
			return
		}
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("request_id", e.RequestID).Msg("MQTT result publish failed")
		}
	})
}

// Run connects to the broker and processes commands until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetOrderMatters(false)

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}

	// Subscribing in the connect handler restores the subscription after reconnects.
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		log.Info().Str("broker", b.cfg.Broker).Str("topic", b.cfg.CommandTopic).Msg("MQTT connected")
		c.Subscribe(b.cfg.CommandTopic, b.cfg.QoS, func(_ pahomqtt.Client, msg pahomqtt.Message) {
			if err := b.handle(ctx, msg.Payload()); err != nil {
				log.Warn().Err(err).Str("topic", msg.Topic()).Msg("MQTT command not executed")
			}
		})
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		b.client.Disconnect(disconnectQuiesce)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect failed: %w", err)
	}
	b.setPublisher(b.client)

	<-ctx.Done()
	b.client.Disconnect(disconnectQuiesce)
	log.Info().Msg("MQTT bridge stopped")
	return nil
}

func (b *Bridge) setPublisher(p publisher) {
	b.mu.Lock()
	b.pub = p
	b.mu.Unlock()
}

func (b *Bridge) resultPublisher() publisher {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pub
}

// handle executes one command message.
func (b *Bridge) handle(ctx context.Context, payload []byte) error {
	msg, err := parseCommand(payload)
	if err != nil {
		return err
	}
	if msg.Key == "" || subtle.ConstantTimeCompare([]byte(msg.Key), []byte(b.key)) != 1 {
		return ErrUnauthorized
	}

	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := log.With().Str("request_id", id).Str("source", "mqtt").Logger()

	return b.exec.Execute(logger.WithContext(ctx), interpreter.Request{
		ID:      id,
		Source:  "mqtt",
		Command: msg.Command,
	})
}
