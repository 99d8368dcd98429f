package ignition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/iEdgir01/traffic-manager/observability"
)

type SubscriberConfig struct {
	BrokerURL      string
	Topic          string
	ClientIDPrefix string
	QoS            byte
	Username       string
	Password       string
}

// Subscriber feeds decoded ignition reports from an MQTT topic onto a channel.
// The paho callback never blocks: reports are dropped when the channel is full.
type Subscriber struct {
	cfg    SubscriberConfig
	out    chan<- Message
	logger *slog.Logger
	client mqtt.Client
}

func NewSubscriber(cfg SubscriberConfig, out chan<- Message, logger *slog.Logger) *Subscriber {
	if cfg.ClientIDPrefix == "" {
		cfg.ClientIDPrefix = "traffic-monitor"
	}
	s := &Subscriber{cfg: cfg, out: out, logger: logger.With("component", "mqtt")}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientIDPrefix + "-" + uuid.NewString()[:8])
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg)
	})
	opts.OnConnect = func(client mqtt.Client) {
		token := client.Subscribe(cfg.Topic, cfg.QoS, nil)
		token.Wait()
		if token.Error() != nil {
			s.logger.Error("mqtt subscribe failed", "topic", cfg.Topic, "error", token.Error())
			return
		}
		s.logger.Info("subscribed", "topic", cfg.Topic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.logger.Warn("mqtt connection lost", "error", err)
	}

	s.client = mqtt.NewClient(opts)
	return s
}

func (s *Subscriber) Connect(ctx context.Context) error {
	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", s.cfg.BrokerURL, err)
	}
	s.logger.Info("mqtt connected", "broker", s.cfg.BrokerURL)
	return nil
}

func (s *Subscriber) Disconnect() {
	s.client.Disconnect(250)
}

func (s *Subscriber) handleMessage(msg mqtt.Message) {
	observability.MQTTMessagesReceived.Inc()

	parsed, err := ParsePayload(msg.Payload(), time.Now())
	if err != nil {
		observability.MQTTDecodeFailures.Inc()
		s.logger.Warn("dropping ignition message", "topic", msg.Topic(), "error", err)
		return
	}

	select {
	case s.out <- parsed:
	default:
		observability.MQTTMessagesDropped.Inc()
		s.logger.Warn("monitor queue full, dropping ignition message", "topic", msg.Topic())
	}
}
