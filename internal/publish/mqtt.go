package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/seatsense/seat-monitor/pkg/types"
)

// MQTTOptions configures NewMQTTClient.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// NewMQTTClient connects to the broker with auto-reconnect enabled.
func NewMQTTClient(opts MQTTOptions) (mqtt.Client, error) {
	o := mqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		o.SetPassword(opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetCleanSession(true)

	client := mqtt.NewClient(o)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// mqttPublisher is the part of mqtt.Client the sink needs.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes the status_update event on <topic> and a retained status code per seat
// on <topic>/<SEAT>, so late subscribers see current occupancy at once.
type MQTTSink struct {
	client mqttPublisher
	topic  string
	qos    byte
	log    *zap.Logger
}

// NewMQTTSink wraps a connected client.
func NewMQTTSink(client mqttPublisher, topic string, qos byte, log *zap.Logger) *MQTTSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &MQTTSink{client: client, topic: topic, qos: qos, log: log.Named("mqtt")}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Publish(ctx context.Context, r *types.FrameResult) error {
	update := NewStatusUpdate(r)
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	if err := s.send(ctx, s.topic, false, payload); err != nil {
		return err
	}
	for _, seat := range r.Seats {
		topic := s.topic + "/" + strings.ToUpper(seat.SeatID)
		if err := s.send(ctx, topic, true, []byte(strconv.Itoa(seat.Status.Code()))); err != nil {
			return err
		}
	}
	return nil
}

func (s *MQTTSink) send(ctx context.Context, topic string, retained bool, payload []byte) error {
	token := s.client.Publish(topic, s.qos, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to topic %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
